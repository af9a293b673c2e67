//go:build integration

package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"boffo/internal"
	"boffo/internal/boffo"
	"boffo/internal/config"
	"boffo/internal/props"
	"boffo/internal/testutil"
)

// These tests run against a live FOLIO tenant:
//
//	INTEGRATION=1 FOLIO_URL=https://... FOLIO_TENANT=... FOLIO_USERNAME=... \
//	FOLIO_PASSWORD=... go test -tags integration ./internal/tests/
//
// FOLIO_BARCODE and FOLIO_CALL_NUMBER, when set, name an item that exists.

func newTestServer(t *testing.T) *internal.Server {
	t.Helper()
	testutil.RequireIntegration(t)

	cfg := config.Load()
	cfg.Store = config.StoreMemory
	cfg.EnableMetrics = true

	metrics := internal.NewMetrics()
	svc, err := boffo.NewFromConfig(cfg, props.NewMemoryStore(), nil, metrics.Folio)
	if err != nil {
		t.Fatalf("NewFromConfig() failed: %v", err)
	}
	return internal.NewServer(svc, cfg, metrics)
}

func serve(srv *internal.Server, method, path string, body any) *httptest.ResponseRecorder {
	var raw []byte
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, srv *internal.Server) {
	t.Helper()
	w := serve(srv, "POST", "/session", map[string]string{
		"serverUrl": testutil.RequireEnv(t, "FOLIO_URL"),
		"tenantId":  testutil.RequireEnv(t, "FOLIO_TENANT"),
		"username":  testutil.RequireEnv(t, "FOLIO_USERNAME"),
		"password":  testutil.RequireEnv(t, "FOLIO_PASSWORD"),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Login failed with status %d: %s", w.Code, w.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := serve(srv, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("Expected body 'ok', got '%s'", w.Body.String())
	}
}

func TestLiveLocations(t *testing.T) {
	srv := newTestServer(t)
	login(t, srv)

	w := serve(srv, "GET", "/locations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Data []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode locations: %v", err)
	}
	if len(out.Data) == 0 {
		t.Error("Expected the tenant to have at least one location")
	}
}

func TestLiveBarcodeLookup(t *testing.T) {
	srv := newTestServer(t)
	login(t, srv)
	barcode := os.Getenv("FOLIO_BARCODE")
	if barcode == "" {
		t.Skip("FOLIO_BARCODE not set")
	}

	w := serve(srv, "POST", "/lookup/barcodes", map[string]any{
		"barcodes": []string{barcode, "boffo-integration-missing"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Data boffo.OperationResult `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if out.Data.Found != 1 {
		t.Errorf("Expected 1 item found, got %d", out.Data.Found)
	}
	if len(out.Data.Rows) != 2 || out.Data.Rows[0][0] != barcode {
		t.Errorf("Expected rows in input order, got %v", out.Data.Rows)
	}
}

func TestLiveCallNumberRange(t *testing.T) {
	srv := newTestServer(t)
	login(t, srv)
	callNumber := os.Getenv("FOLIO_CALL_NUMBER")
	if callNumber == "" {
		t.Skip("FOLIO_CALL_NUMBER not set")
	}

	w := serve(srv, "POST", "/lookup/range", map[string]string{"first": callNumber, "last": callNumber})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = serve(srv, "GET", "/metrics", nil)
	if !bytes.Contains(w.Body.Bytes(), []byte("boffo_records_fetched_total")) {
		t.Error("Expected record counter after a range lookup")
	}
}
