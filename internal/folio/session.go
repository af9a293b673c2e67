package folio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"boffo/internal/credentials"
)

// State describes where the stored credentials stand.
type State int

const (
	NoCredentials State = iota
	HaveCredentialsNoToken
	HaveValidToken
	TokenExpiredOrInvalid
)

func (s State) String() string {
	switch s {
	case NoCredentials:
		return "no credentials"
	case HaveCredentialsNoToken:
		return "credentials without token"
	case HaveValidToken:
		return "valid token"
	case TokenExpiredOrInvalid:
		return "token expired or invalid"
	default:
		return "unknown"
	}
}

// LoginRequest is what the user types at a credential prompt.
type LoginRequest struct {
	ServerURL string
	TenantID  string
	Username  string
	Password  string
}

// Prompter asks the user for credentials. current holds the stored values
// to prefill; lastErr is the failure of the previous attempt, or nil.
// Returning ErrCancelled (or any error) ends the login loop.
type Prompter interface {
	PromptCredentials(ctx context.Context, current credentials.Credentials, lastErr error) (LoginRequest, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, current credentials.Credentials, lastErr error) (LoginRequest, error)

func (f PrompterFunc) PromptCredentials(ctx context.Context, current credentials.Credentials, lastErr error) (LoginRequest, error) {
	return f(ctx, current, lastErr)
}

// SessionManager owns the stored token and produces Sessions.
type SessionManager struct {
	client     *Client
	store      *credentials.Store
	prompter   Prompter
	maxPrompts int
	now        func() time.Time

	// Shared by every manager derived with WithPrompter.
	mu *sync.Mutex
}

// NewSessionManager builds a manager. prompter may be nil for hosts that
// cannot ask the user anything; EnsureSession then fails with
// ErrNeedCredentials instead of prompting.
func NewSessionManager(client *Client, store *credentials.Store, prompter Prompter, maxPrompts int) *SessionManager {
	if maxPrompts < 1 {
		maxPrompts = 3
	}
	return &SessionManager{
		client:     client,
		store:      store,
		prompter:   prompter,
		maxPrompts: maxPrompts,
		now:        time.Now,
		mu:         new(sync.Mutex),
	}
}

// WithPrompter returns a manager over the same store and lock that asks p
// for credentials.
func (m *SessionManager) WithPrompter(p Prompter) *SessionManager {
	derived := *m
	derived.prompter = p
	return &derived
}

// State inspects the stored credentials, probing the server when a token
// is present.
func (m *SessionManager) State(ctx context.Context) (State, error) {
	creds, err := m.store.Load(ctx)
	if err != nil {
		return NoCredentials, err
	}
	if !creds.WellFormed() {
		return NoCredentials, nil
	}
	if creds.Token == "" {
		return HaveCredentialsNoToken, nil
	}
	if m.usable(ctx, creds) {
		return HaveValidToken, nil
	}
	return TokenExpiredOrInvalid, nil
}

// EnsureSession returns a session backed by a token the server accepts.
// With force set, the stored token is ignored and the user is always asked
// to log in.
func (m *SessionManager) EnsureSession(ctx context.Context, force bool) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	creds, err := m.store.Load(ctx)
	if err != nil {
		return Session{}, err
	}
	if !force && creds.WellFormed() && creds.Token != "" && m.usable(ctx, creds) {
		return Session{ServerURL: creds.ServerURL, TenantID: creds.TenantID, Token: creds.Token}, nil
	}

	if m.prompter == nil {
		return Session{}, &Error{Kind: KindAuth, Op: "session", Detail: "no valid FOLIO session", Err: ErrNeedCredentials}
	}

	var lastErr error
	for attempt := 1; attempt <= m.maxPrompts; attempt++ {
		req, err := m.prompter.PromptCredentials(ctx, creds, lastErr)
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				log.Printf("folio: credential prompt cancelled")
			}
			return Session{}, err
		}

		s, err := m.login(ctx, req)
		if err == nil {
			return s, nil
		}
		switch KindOf(err) {
		case KindConfig, KindAuth:
			log.Printf("folio: login attempt %d of %d rejected: %v", attempt, m.maxPrompts, err)
			lastErr = err
			creds = credentials.Credentials{ServerURL: req.ServerURL, TenantID: req.TenantID}
		default:
			return Session{}, err
		}
	}
	return Session{}, fmt.Errorf("gave up after %d login attempts: %w", m.maxPrompts, lastErr)
}

// Login authenticates with req and stores the resulting token.
func (m *SessionManager) Login(ctx context.Context, req LoginRequest) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.login(ctx, req)
}

func (m *SessionManager) login(ctx context.Context, req LoginRequest) (Session, error) {
	if !credentials.ValidateURL(req.ServerURL) {
		return Session{}, &Error{Kind: KindConfig, Op: "login", Detail: "server URL must begin with https://"}
	}
	if !credentials.ValidateTenantID(req.TenantID) {
		return Session{}, &Error{Kind: KindConfig, Op: "login", Detail: "tenant id must contain a digit and must not be a URL"}
	}
	if req.Username == "" || req.Password == "" {
		return Session{}, &Error{Kind: KindAuth, Op: "login", Detail: "username and password are required"}
	}

	serverURL := credentials.TrimURL(req.ServerURL)
	tenant := strings.TrimSpace(req.TenantID)
	token, err := m.client.Login(ctx, serverURL, tenant, req.Username, req.Password)
	if err != nil {
		return Session{}, err
	}
	if err := m.store.Save(ctx, serverURL, tenant, token); err != nil {
		return Session{}, fmt.Errorf("failed to store credentials: %w", err)
	}
	log.Printf("folio: logged in to %s as tenant %s", serverURL, tenant)
	return Session{ServerURL: serverURL, TenantID: tenant, Token: token}, nil
}

// CheckTokenValid probes the server with token. Any status below 400 means
// the token is accepted; a network failure means it is not.
func (m *SessionManager) CheckTokenValid(ctx context.Context, serverURL, tenantID, token string) bool {
	status, err := m.client.Probe(ctx, Session{ServerURL: serverURL, TenantID: tenantID, Token: token})
	if err != nil {
		return false
	}
	return status < http.StatusBadRequest
}

// Invalidate forgets the stored token.
func (m *SessionManager) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.ClearToken(ctx); err != nil {
		return err
	}
	log.Printf("folio: session token cleared")
	return nil
}

func (m *SessionManager) usable(ctx context.Context, creds credentials.Credentials) bool {
	if tokenExpired(creds.Token, m.now()) {
		log.Printf("folio: stored token has expired")
		return false
	}
	return m.CheckTokenValid(ctx, creds.ServerURL, creds.TenantID, creds.Token)
}
