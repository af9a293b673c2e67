package folio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

const (
	testTenant   = "fs00001137"
	testUser     = "circ-admin"
	testPassword = "correct horse"
	testToken    = "token-1"
)

// fakeFolio is a minimal Okapi: one tenant, one user, a fixed item list.
type fakeFolio struct {
	mu         sync.Mutex
	token      string
	items      []Record
	locations  []Location
	itemStatus int // forced status for /inventory/items when non-zero
	logins     int
	probes     int
	queries    []string
	headers    http.Header
}

func newFakeFolio() *fakeFolio {
	return &fakeFolio{token: testToken}
}

func (f *fakeFolio) router() http.Handler {
	r := chi.NewRouter()
	r.Post("/authn/login", f.login)
	r.Get("/inventory/items", f.listItems)
	r.Get("/locations", f.listLocations)
	return r
}

func (f *fakeFolio) start(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewTLSServer(f.router())
	t.Cleanup(ts.Close)
	return ts
}

func (f *fakeFolio) login(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.logins++
	f.mu.Unlock()

	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if body.Tenant != testTenant || r.Header.Get(headerTenant) != testTenant {
		http.Error(w, "No such tenant "+body.Tenant, http.StatusBadRequest)
		return
	}
	if body.Username != testUser || body.Password != testPassword {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors":[{"message":"Password does not match","code":"password.incorrect"}]}`))
		return
	}
	w.Header().Set(headerToken, f.token)
	w.WriteHeader(http.StatusCreated)
}

func (f *fakeFolio) listItems(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.headers = r.Header.Clone()
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if limit == 0 {
		f.probes++
	}
	f.queries = append(f.queries, q.Get("query"))

	if f.itemStatus != 0 {
		http.Error(w, "forced failure", f.itemStatus)
		return
	}
	if r.Header.Get(headerToken) != f.token || r.Header.Get(headerTenant) != testTenant {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	page := []Record{}
	for i := offset; i < len(f.items) && i < offset+limit; i++ {
		page = append(page, f.items[i])
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ItemsResponse{TotalRecords: len(f.items), Items: page})
}

func (f *fakeFolio) listLocations(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(headerToken) != f.token {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LocationsResponse{Locations: f.locations, TotalRecords: len(f.locations)})
}

// fakeSource answers item queries from a function, counting calls.
type fakeSource struct {
	mu    sync.Mutex
	calls []sourceCall
	fn    func(query string, limit, offset int) (*ItemsResponse, error)
}

type sourceCall struct {
	Query  string
	Limit  int
	Offset int
}

func (s *fakeSource) Items(_ context.Context, _ Session, query string, limit, offset int) (*ItemsResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, sourceCall{query, limit, offset})
	s.mu.Unlock()
	return s.fn(query, limit, offset)
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// catalogSource serves fixed result sets keyed by exact query text, paged.
func catalogSource(results map[string][]Record) *fakeSource {
	return &fakeSource{fn: func(query string, limit, offset int) (*ItemsResponse, error) {
		all := results[query]
		resp := &ItemsResponse{TotalRecords: len(all), Items: []Record{}}
		for i := offset; i < len(all) && i < offset+limit; i++ {
			resp.Items = append(resp.Items, all[i])
		}
		return resp, nil
	}}
}

func item(barcode, shelvingOrder string) Record {
	r := Record{"barcode": barcode, "id": "id-" + barcode}
	if shelvingOrder != "" {
		r["effectiveShelvingOrder"] = shelvingOrder
	}
	return r
}
