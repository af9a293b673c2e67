package folio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	loginPath     = "/authn/login"
	itemsPath     = "/inventory/items"
	locationsPath = "/locations"

	headerTenant = "x-okapi-tenant"
	headerToken  = "x-okapi-token"

	// MaxLocations is the limit sent when listing locations in bulk.
	MaxLocations = 5000
	// MaxPageSize is the client-side ceiling for range and location queries.
	MaxPageSize = 100
	// MaxBarcodeBatch is the client-side ceiling on barcodes per request.
	MaxBarcodeBatch = 50
)

// Session is what every authenticated call needs. It is built once per
// top-level operation and passed down explicitly.
type Session struct {
	ServerURL string
	TenantID  string
	Token     string
}

// ItemSource is the part of the client the fetch engine depends on.
type ItemSource interface {
	Items(ctx context.Context, s Session, query string, limit, offset int) (*ItemsResponse, error)
}

// Client speaks the FOLIO Okapi HTTP API.
type Client struct {
	httpClient *http.Client
	metrics    *Metrics
}

var _ ItemSource = (*Client)(nil)

// NewHTTPClient returns an http.Client with tracing on its transport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// NewClient creates a FOLIO client. metrics may be nil.
func NewClient(httpClient *http.Client, metrics *Metrics) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(60 * time.Second)
	}
	return &Client{httpClient: httpClient, metrics: metrics}
}

type loginRequest struct {
	Tenant   string `json:"tenant"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates once and returns the token from the x-okapi-token
// response header. The password is only placed in the request body.
func (c *Client) Login(ctx context.Context, serverURL, tenant, username, password string) (string, error) {
	const op = "login"

	payload, err := json.Marshal(loginRequest{Tenant: tenant, Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+loginPath, bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Kind: KindConfig, Op: op, Detail: "invalid server URL", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain")
	req.Header.Set(headerTenant, tenant)

	resp, body, err := c.do(req, "login")
	if err != nil {
		return "", &Error{Kind: KindUnreachable, Op: op, Err: err}
	}

	if resp.StatusCode >= 300 {
		e := statusError(op, resp.StatusCode, body)
		if resp.StatusCode < 500 {
			// Any client error on login is the server rejecting what the user typed.
			e.Kind = KindAuth
		}
		return "", e
	}

	token := resp.Header.Get(headerToken)
	if token == "" {
		return "", &Error{Kind: KindTransient, Op: op, Status: resp.StatusCode, Detail: "login response carried no token"}
	}
	return token, nil
}

// Probe issues a zero-limit item listing and returns the HTTP status. It is
// the cheapest authorized request the API offers.
func (c *Client) Probe(ctx context.Context, s Session) (int, error) {
	req, err := c.newGet(ctx, s, itemsPath, url.Values{"limit": {"0"}})
	if err != nil {
		return 0, err
	}
	resp, _, err := c.do(req, "probe")
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}

// Items lists item records matching the CQL query.
func (c *Client) Items(ctx context.Context, s Session, query string, limit, offset int) (*ItemsResponse, error) {
	params := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
	if query != "" {
		params.Set("query", query)
	}

	var out ItemsResponse
	if err := c.getJSON(ctx, s, "items", itemsPath, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Locations lists every location, sorted by name.
func (c *Client) Locations(ctx context.Context, s Session) ([]Location, error) {
	params := url.Values{"limit": {strconv.Itoa(MaxLocations)}}

	var out LocationsResponse
	if err := c.getJSON(ctx, s, "locations", locationsPath, params, &out); err != nil {
		return nil, err
	}
	SortLocations(out.Locations)
	return out.Locations, nil
}

// SortLocations orders by name, case-insensitively, then by id.
func SortLocations(locs []Location) {
	sort.SliceStable(locs, func(i, j int) bool {
		a, b := strings.ToLower(locs[i].Name), strings.ToLower(locs[j].Name)
		if a != b {
			return a < b
		}
		return locs[i].ID < locs[j].ID
	})
}

func (c *Client) getJSON(ctx context.Context, s Session, endpoint, path string, params url.Values, out any) error {
	op := "GET " + path

	req, err := c.newGet(ctx, s, path, params)
	if err != nil {
		return err
	}
	resp, body, err := c.do(req, endpoint)
	if err != nil {
		return &Error{Kind: KindUnreachable, Op: op, Err: err}
	}
	if resp.StatusCode >= 300 {
		return statusError(op, resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindTransient, Op: op, Status: resp.StatusCode, Detail: "unreadable response body", Err: err}
	}
	return nil
}

func (c *Client) newGet(ctx context.Context, s Session, path string, params url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ServerURL+path+"?"+encodeParams(params), nil)
	if err != nil {
		return nil, &Error{Kind: KindConfig, Op: "GET " + path, Detail: "invalid server URL", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerTenant, s.TenantID)
	req.Header.Set(headerToken, s.Token)
	return req, nil
}

// do executes req, reads the whole body, and records metrics and a log line.
func (c *Client) do(req *http.Request, endpoint string) (*http.Response, []byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observeRequest(endpoint, 0, time.Since(start))
		log.Printf("folio: %s %s failed after %s: %v", req.Method, req.URL.Path, time.Since(start), err)
		return nil, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	c.metrics.observeRequest(endpoint, resp.StatusCode, elapsed)
	log.Printf("folio: %s %s %d %s", req.Method, req.URL.Path, resp.StatusCode, elapsed)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp, body, nil
}

// encodeParams percent-encodes params, writing spaces as %20 rather than '+'.
func encodeParams(params url.Values) string {
	return strings.ReplaceAll(params.Encode(), "+", "%20")
}
