// Package testutil provides an in-memory FOLIO server for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Default identity of a FakeFolio.
const (
	Tenant   = "fs00001137"
	Username = "circ-admin"
	Password = "correct horse"
	Token    = "fake-okapi-token"
)

var (
	literalRe  = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
	callRe     = regexp.MustCompile(`effectiveCallNumberComponents\.callNumber==("(?:[^"\\]|\\.)*")`)
	lowRe      = regexp.MustCompile(`effectiveShelvingOrder>=("(?:[^"\\]|\\.)*")`)
	highRe     = regexp.MustCompile(`effectiveShelvingOrder<=("(?:[^"\\]|\\.)*")`)
	locationRe = regexp.MustCompile(`effectiveLocationId==("(?:[^"\\]|\\.)*")`)
	unescapeRe = regexp.MustCompile(`\\(.)`)
)

// FakeFolio answers the subset of the Okapi API Boffo uses, evaluating the
// CQL forms Boffo generates against Items.
type FakeFolio struct {
	mu        sync.Mutex
	Items     []map[string]any
	Locations []map[string]any
	// ItemStatus forces every /inventory/items response to this status.
	ItemStatus int
	// Token is the token issued on login and required on reads.
	Token string
	// RevokeAfter, when positive, revokes Token once that many authorized
	// requests have been served; later logins issue a renewed token.
	RevokeAfter int
	revoked     bool

	Logins   int
	Requests int
	Queries  []string
}

func NewFakeFolio() *FakeFolio {
	return &FakeFolio{Token: Token}
}

// Start serves f over TLS until the test ends.
func (f *FakeFolio) Start(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewTLSServer(f.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func (f *FakeFolio) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/authn/login", f.login)
	r.Group(func(r chi.Router) {
		r.Use(f.requireToken)
		r.Get("/inventory/items", f.items)
		r.Get("/locations", f.locations)
	})
	return r
}

// SetToken changes the token the server accepts, invalidating sessions.
func (f *FakeFolio) SetToken(token string) {
	f.mu.Lock()
	f.Token = token
	f.mu.Unlock()
}

// Item builds an item record in the shape /inventory/items returns.
func Item(barcode, callNumber, shelvingOrder, locationID string) map[string]any {
	item := map[string]any{
		"id":      "item-" + barcode,
		"barcode": barcode,
		"title":   "Title of " + barcode,
		"status":  map[string]any{"name": "Available"},
		"effectiveCallNumberComponents": map[string]any{
			"callNumber": callNumber,
		},
		"effectiveLocation": map[string]any{"id": locationID, "name": "Location " + locationID},
	}
	if shelvingOrder != "" {
		item["effectiveShelvingOrder"] = shelvingOrder
	}
	return item
}

func (f *FakeFolio) login(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.Logins++
	token := f.Token
	f.mu.Unlock()

	var body struct {
		Tenant   string `json:"tenant"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if body.Tenant != Tenant || r.Header.Get("x-okapi-tenant") != Tenant {
		http.Error(w, "No such Tenant "+body.Tenant, http.StatusBadRequest)
		return
	}
	if body.Username != Username || body.Password != Password {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"errors": []map[string]any{{"message": "Password does not match", "code": "password.incorrect"}},
		})
		return
	}
	w.Header().Set("x-okapi-token", token)
	w.WriteHeader(http.StatusCreated)
}

func (f *FakeFolio) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.Requests++
		if f.RevokeAfter > 0 && f.Requests > f.RevokeAfter && !f.revoked {
			f.revoked = true
			f.Token += "-renewed"
		}
		token := f.Token
		f.mu.Unlock()
		if r.Header.Get("x-okapi-tenant") != Tenant || r.Header.Get("x-okapi-token") != token {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeFolio) items(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	query := q.Get("query")

	f.mu.Lock()
	f.Queries = append(f.Queries, query)
	status := f.ItemStatus
	var matched []map[string]any
	for _, item := range f.Items {
		if matches(query, item) {
			matched = append(matched, item)
		}
	}
	f.mu.Unlock()

	if status != 0 {
		http.Error(w, "forced failure", status)
		return
	}

	if strings.Contains(query, "sortby effectiveShelvingOrder") {
		sort.SliceStable(matched, func(i, j int) bool {
			return str(matched[i], "effectiveShelvingOrder") < str(matched[j], "effectiveShelvingOrder")
		})
	}

	page := []map[string]any{}
	for i := offset; i < len(matched) && i < offset+limit; i++ {
		page = append(page, matched[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"totalRecords": len(matched), "items": page})
}

func (f *FakeFolio) locations(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	locs := f.Locations
	f.mu.Unlock()
	if locs == nil {
		locs = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locs, "totalRecords": len(locs)})
}

func matches(query string, item map[string]any) bool {
	if m := locationRe.FindStringSubmatch(query); m != nil {
		loc, _ := item["effectiveLocation"].(map[string]any)
		if id, _ := loc["id"].(string); id != unquote(m[1]) {
			return false
		}
	}
	switch {
	case strings.HasPrefix(query, "barcode=="):
		for _, lit := range literalRe.FindAllString(query, -1) {
			if unquote(lit) == str(item, "barcode") {
				return true
			}
		}
		return false
	case callRe.MatchString(query):
		cn, _ := item["effectiveCallNumberComponents"].(map[string]any)
		got, _ := cn["callNumber"].(string)
		return got == unquote(callRe.FindStringSubmatch(query)[1])
	case lowRe.MatchString(query):
		so := str(item, "effectiveShelvingOrder")
		low := unquote(lowRe.FindStringSubmatch(query)[1])
		high := unquote(highRe.FindStringSubmatch(query)[1])
		return so != "" && so >= low && so <= high
	default:
		return true
	}
}

func unquote(lit string) string {
	lit = strings.TrimSuffix(strings.TrimPrefix(lit, `"`), `"`)
	return unescapeRe.ReplaceAllString(lit, "$1")
}

func str(item map[string]any, key string) string {
	s, _ := item[key].(string)
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// RequireIntegration skips the test unless INTEGRATION=1.
func RequireIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION") != "1" {
		t.Skip("Skipping integration test. Set INTEGRATION=1 to run.")
	}
}

// RequireEnv returns the value of key, skipping the test when it is unset.
func RequireEnv(t *testing.T, key string) string {
	t.Helper()
	v := os.Getenv(key)
	if v == "" {
		t.Skipf("%s not set", key)
	}
	return v
}
