// Package boffo implements the operations a user can run: barcode lookups,
// call-number range searches, location listing, and output field selection.
package boffo

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"boffo/internal/config"
	"boffo/internal/credentials"
	"boffo/internal/fields"
	"boffo/internal/folio"
	"boffo/internal/props"
	"boffo/internal/sheet"
)

// Operation names, also used as Dispatch command names.
const (
	OpLookupByBarcodes        = "lookupByBarcodes"
	OpLookupByCallNumberRange = "lookupByCallNumberRange"
	OpListLocations           = "listLocations"
	OpGetEnabledFieldNames    = "getEnabledFieldNames"
	OpSetFieldSelections      = "setFieldSelections"
	OpLogout                  = "logout"
)

// OperationResult is what a lookup reports back to the host.
type OperationResult struct {
	Operation string     `json:"operation"`
	Sheet     string     `json:"sheet,omitempty"`
	Headings  []string   `json:"headings"`
	Rows      [][]string `json:"rows"`
	Found     int        `json:"found"`
	NotFound  []string   `json:"notFound,omitempty"`
	Message   string     `json:"message"`
}

// FieldState pairs a descriptor with its current selection.
type FieldState struct {
	fields.Descriptor
	Enabled bool `json:"enabled"`
}

// Options tunes lookups. Zero values take the defaults.
type Options struct {
	FanOut            int
	BarcodeBatchSize  int
	PageSize          int
	MaxCells          int
	ProgressInterval  int
	ProgressThreshold int
	Metrics           *folio.Metrics
}

// Service runs operations against one FOLIO tenant's stored credentials.
type Service struct {
	client     *folio.Client
	sessions   *folio.SessionManager
	selections *fields.Selections
	opts       Options
}

func New(client *folio.Client, sessions *folio.SessionManager, selections *fields.Selections, opts Options) *Service {
	if opts.BarcodeBatchSize < 1 {
		opts.BarcodeBatchSize = folio.MaxBarcodeBatch
	}
	if opts.PageSize < 1 {
		opts.PageSize = folio.MaxPageSize
	}
	if opts.MaxCells < 1 {
		opts.MaxCells = folio.DefaultMaxCells
	}
	return &Service{client: client, sessions: sessions, selections: selections, opts: opts}
}

// NewFromConfig wires a Service over store using cfg. httpClient may be nil.
func NewFromConfig(cfg *config.Config, store props.Store, httpClient *http.Client, metrics *folio.Metrics) (*Service, error) {
	key, err := cfg.SecretKeyBytes()
	if err != nil {
		return nil, err
	}
	creds, err := credentials.NewStore(store, key)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = folio.NewHTTPClient(cfg.RequestTimeout)
	}
	client := folio.NewClient(httpClient, metrics)
	sessions := folio.NewSessionManager(client, creds, nil, cfg.MaxLoginPrompts)
	return New(client, sessions, fields.NewSelections(store), Options{
		FanOut:            cfg.FanOut,
		BarcodeBatchSize:  cfg.BarcodeBatchSize,
		PageSize:          cfg.PageSize,
		MaxCells:          cfg.MaxCells,
		ProgressInterval:  cfg.ProgressInterval,
		ProgressThreshold: cfg.ProgressThreshold,
		Metrics:           metrics,
	}), nil
}

// LookupByBarcodes writes one row per non-blank cell, in order. Barcodes
// FOLIO does not know produce a row with only the barcode filled in. When
// cells is nil the host's selection is used.
func (s *Service) LookupByBarcodes(ctx context.Context, host Host, cells []string) (*OperationResult, error) {
	if cells == nil {
		var err error
		if cells, err = host.Selection(ctx); err != nil {
			return nil, fmt.Errorf("failed to read selection: %w", err)
		}
	}
	barcodes := make([]string, 0, len(cells))
	for _, c := range cells {
		if c = strings.TrimSpace(c); c != "" {
			barcodes = append(barcodes, c)
		}
	}
	if len(barcodes) == 0 {
		return nil, &folio.Error{Kind: folio.KindConfig, Op: OpLookupByBarcodes, Detail: "select one or more cells containing barcodes"}
	}

	enabled, err := s.selections.Enabled(ctx)
	if err != nil {
		return nil, err
	}
	headings := fields.Headings(enabled)
	if err := folio.CheckCapacity(len(barcodes), len(headings), s.capacity()); err != nil {
		return nil, err
	}

	var records []folio.Record
	err = s.withSession(ctx, host, func(sess folio.Session) error {
		engine := s.engine(sess, host)
		records, err = engine.FetchAllBatches(ctx, barcodes, folio.BarcodeSetQuery, s.opts.BarcodeBatchSize)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &OperationResult{Operation: OpLookupByBarcodes}
	for _, r := range records {
		if r.IsPlaceholder() {
			result.NotFound = append(result.NotFound, r.Barcode())
		} else {
			result.Found++
		}
	}
	if err := s.write(ctx, host, result, headings, fields.Project(records, enabled)); err != nil {
		return nil, err
	}
	result.Message = fmt.Sprintf("Found %d of %d items.", result.Found, len(barcodes))
	if len(result.NotFound) > 0 {
		result.Message += fmt.Sprintf(" %d barcodes were not found.", len(result.NotFound))
	}
	return result, nil
}

// LookupByCallNumberRange writes every item shelved between first and last,
// inclusive, in shelving order. location is a location id or "Any".
func (s *Service) LookupByCallNumberRange(ctx context.Context, host Host, first, last, location string) (*OperationResult, error) {
	if strings.TrimSpace(first) == "" || strings.TrimSpace(last) == "" {
		return nil, &folio.Error{Kind: folio.KindConfig, Op: OpLookupByCallNumberRange, Detail: "both the first and last call numbers are required"}
	}
	loc, err := folio.ParseLocation(location)
	if err != nil {
		return nil, err
	}

	enabled, err := s.selections.Enabled(ctx)
	if err != nil {
		return nil, err
	}
	headings := fields.Headings(enabled)

	var records []folio.Record
	err = s.withSession(ctx, host, func(sess folio.Session) error {
		resolver := folio.NewResolver(s.engine(sess, host), s.opts.PageSize)
		records, err = resolver.ResolveRange(ctx, first, last, loc, len(headings), s.capacity())
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &OperationResult{Operation: OpLookupByCallNumberRange, Found: len(records)}
	if err := s.write(ctx, host, result, headings, fields.Project(records, enabled)); err != nil {
		return nil, err
	}
	result.Message = fmt.Sprintf("Found %d items from %s to %s.", len(records), strings.TrimSpace(first), strings.TrimSpace(last))
	return result, nil
}

// ListLocations returns every location sorted by name.
func (s *Service) ListLocations(ctx context.Context, host Host) ([]folio.Location, error) {
	var locs []folio.Location
	err := s.withSession(ctx, host, func(sess folio.Session) error {
		var err error
		locs, err = s.client.Locations(ctx, sess)
		return err
	})
	return locs, err
}

func (s *Service) GetEnabledFieldNames(ctx context.Context) ([]string, error) {
	return s.selections.EnabledNames(ctx)
}

// SetFieldSelections stores one flag per field, in FieldDescriptors order.
func (s *Service) SetFieldSelections(ctx context.Context, flags []bool) error {
	return s.selections.SetSelections(ctx, flags)
}

// SetEnabledFieldNames enables exactly the named fields plus the required ones.
func (s *Service) SetEnabledFieldNames(ctx context.Context, names []string) error {
	return s.selections.SetEnabledNames(ctx, names)
}

// FieldDescriptors lists every field with its current selection.
func (s *Service) FieldDescriptors(ctx context.Context) ([]FieldState, error) {
	sel, err := s.selections.Load(ctx)
	if err != nil {
		return nil, err
	}
	descs := fields.Descriptors()
	out := make([]FieldState, len(descs))
	for i, d := range descs {
		out[i] = FieldState{Descriptor: d, Enabled: sel[i].Enabled}
	}
	return out, nil
}

// Login authenticates and stores the token.
func (s *Service) Login(ctx context.Context, req folio.LoginRequest) error {
	_, err := s.sessions.Login(ctx, req)
	return err
}

// Logout forgets the stored token.
func (s *Service) Logout(ctx context.Context) error {
	return s.sessions.Invalidate(ctx)
}

// SessionState reports the state of the stored credentials.
func (s *Service) SessionState(ctx context.Context) (folio.State, error) {
	return s.sessions.State(ctx)
}

// withSession runs fn with a valid session. If FOLIO rejects the session
// part way through, the token is dropped and fn runs once more after a
// forced login.
func (s *Service) withSession(ctx context.Context, host Host, fn func(folio.Session) error) error {
	sessions := s.sessions.WithPrompter(host)

	sess, err := sessions.EnsureSession(ctx, false)
	if err != nil {
		return err
	}
	err = fn(sess)
	if folio.KindOf(err) != folio.KindAuth {
		return err
	}

	log.Printf("boffo: FOLIO rejected the session, logging in again: %v", err)
	if err := sessions.Invalidate(ctx); err != nil {
		return err
	}
	sess, err = sessions.EnsureSession(ctx, true)
	if err != nil {
		return err
	}
	return fn(sess)
}

func (s *Service) engine(sess folio.Session, host Host) *folio.Engine {
	return folio.NewEngine(s.client, sess, folio.EngineOptions{
		FanOut:            s.opts.FanOut,
		ProgressInterval:  s.opts.ProgressInterval,
		ProgressThreshold: s.opts.ProgressThreshold,
		Notify:            host.Notify,
		Metrics:           s.opts.Metrics,
	})
}

func (s *Service) capacity() folio.Capacity {
	return folio.Capacity{MaxRows: sheet.MaxRows, MaxCells: s.opts.MaxCells}
}

func (s *Service) write(ctx context.Context, host Host, result *OperationResult, headings []string, rows [][]string) error {
	out, err := host.CreateOutputSheet(ctx, headings)
	if err != nil {
		return fmt.Errorf("failed to create output sheet: %w", err)
	}
	if err := host.WriteResultRows(ctx, out, 1, rows); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	result.Sheet = out.Name
	result.Headings = headings
	result.Rows = rows
	return nil
}
