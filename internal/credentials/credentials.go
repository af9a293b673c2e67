// Package credentials persists the FOLIO server URL, tenant id and bearer
// token, and validates the user-supplied parts before any network call.
package credentials

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode"

	"golang.org/x/crypto/nacl/secretbox"

	"boffo/internal/props"
)

// Property keys.
const (
	KeyURL    = "folio_url"
	KeyTenant = "folio_tenant"
	KeyToken  = "folio_token"
)

const sealedPrefix = "sealed:"

// ErrInvalidKey is returned when a sealing key is not 32 bytes.
var ErrInvalidKey = errors.New("sealing key must be 32 bytes")

// Credentials identifies a FOLIO tenant and, once logged in, the bearer token.
type Credentials struct {
	ServerURL string
	TenantID  string
	Token     string
}

// WellFormed reports whether URL and tenant pass format validation.
func (c Credentials) WellFormed() bool {
	return ValidateURL(c.ServerURL) && ValidateTenantID(c.TenantID)
}

// Store reads and writes Credentials on top of a property store.
type Store struct {
	props props.Store
	key   *[32]byte
}

// NewStore wraps p. When key is non-nil the token is sealed at rest.
func NewStore(p props.Store, key []byte) (*Store, error) {
	s := &Store{props: p}
	if key != nil {
		if len(key) != 32 {
			return nil, ErrInvalidKey
		}
		s.key = new([32]byte)
		copy(s.key[:], key)
	}
	return s, nil
}

// Load returns the persisted credentials. Missing values load as empty strings.
func (s *Store) Load(ctx context.Context) (Credentials, error) {
	var c Credentials
	var err error
	if c.ServerURL, _, err = s.props.Get(ctx, KeyURL); err != nil {
		return Credentials{}, fmt.Errorf("load server url: %w", err)
	}
	if c.TenantID, _, err = s.props.Get(ctx, KeyTenant); err != nil {
		return Credentials{}, fmt.Errorf("load tenant: %w", err)
	}
	raw, _, err := s.props.Get(ctx, KeyToken)
	if err != nil {
		return Credentials{}, fmt.Errorf("load token: %w", err)
	}
	c.Token = s.open(raw)
	return c, nil
}

// Save stores url (without trailing slashes), tenant and token. An empty
// token removes any stored token.
func (s *Store) Save(ctx context.Context, url, tenantID, token string) error {
	url = TrimURL(url)
	if err := s.props.Set(ctx, KeyURL, url); err != nil {
		return fmt.Errorf("save server url: %w", err)
	}
	if err := s.props.Set(ctx, KeyTenant, strings.TrimSpace(tenantID)); err != nil {
		return fmt.Errorf("save tenant: %w", err)
	}
	if token == "" {
		return s.ClearToken(ctx)
	}
	sealed, err := s.seal(token)
	if err != nil {
		return err
	}
	if err := s.props.Set(ctx, KeyToken, sealed); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// ClearToken forgets the bearer token but keeps URL and tenant.
func (s *Store) ClearToken(ctx context.Context) error {
	if err := s.props.Delete(ctx, KeyToken); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

func (s *Store) seal(token string) (string, error) {
	if s.key == nil {
		return token, nil
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(token), &nonce, s.key)
	return sealedPrefix + base64.StdEncoding.EncodeToString(box), nil
}

// open reverses seal. Anything that cannot be opened loads as no token, which
// sends the user back through login instead of failing the operation.
func (s *Store) open(raw string) string {
	if !strings.HasPrefix(raw, sealedPrefix) {
		if raw != "" && s.key != nil {
			log.Printf("credentials: discarding unsealed token")
			return ""
		}
		return raw
	}
	if s.key == nil {
		log.Printf("credentials: stored token is sealed but no key is configured")
		return ""
	}
	box, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(raw, sealedPrefix))
	if err != nil || len(box) < 24 {
		log.Printf("credentials: stored token is corrupt")
		return ""
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, s.key)
	if !ok {
		log.Printf("credentials: stored token does not open with the configured key")
		return ""
	}
	return string(plain)
}

// TrimURL removes surrounding space and every trailing slash.
func TrimURL(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), "/")
}

// ValidateURL reports whether url is non-empty and uses https.
func ValidateURL(url string) bool {
	url = strings.TrimSpace(url)
	return url != "" && strings.HasPrefix(url, "https://")
}

// ValidateTenantID is a heuristic: tenant ids carry at least one digit and
// users sometimes paste the server URL into the tenant box.
func ValidateTenantID(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" || looksLikeURL(id) {
		return false
	}
	return strings.IndexFunc(id, unicode.IsDigit) >= 0
}

func looksLikeURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "://") ||
		strings.HasPrefix(lower, "http") ||
		strings.HasPrefix(lower, "www.") ||
		strings.Contains(lower, "/")
}
