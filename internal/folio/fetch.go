package folio

import (
	"context"
	"fmt"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("boffo/folio")

// Spreadsheet limits used when no others are supplied.
const (
	DefaultMaxRows  = 1_048_576
	DefaultMaxCells = 10_000_000
)

// Capacity is the size of the destination sheet.
type Capacity struct {
	MaxRows  int
	MaxCells int
}

// CheckCapacity fails when records data rows plus a header row, at columns
// wide, would not fit in the destination.
func CheckCapacity(records, columns int, limit Capacity) error {
	if limit.MaxRows <= 0 {
		limit.MaxRows = DefaultMaxRows
	}
	if limit.MaxCells <= 0 {
		limit.MaxCells = DefaultMaxCells
	}
	if columns < 1 {
		columns = 1
	}
	rows := records + 1
	if rows > limit.MaxRows || rows*columns > limit.MaxCells {
		return &Error{
			Kind: KindCapacity,
			Op:   "capacity check",
			Detail: fmt.Sprintf("%d records x %d columns exceeds the sheet limit of %d cells (%d rows)",
				records, columns, limit.MaxCells, limit.MaxRows),
		}
	}
	return nil
}

// Notifier receives progress messages for long operations.
type Notifier func(message string)

// EngineOptions tunes an Engine. Zero values take the defaults.
type EngineOptions struct {
	FanOut            int
	ProgressInterval  int
	ProgressThreshold int
	Notify            Notifier
	Metrics           *Metrics
}

// Engine retrieves item records for one session.
type Engine struct {
	source  ItemSource
	session Session
	opts    EngineOptions

	notifyMu sync.Mutex
}

// NewEngine binds source to session.
func NewEngine(source ItemSource, session Session, opts EngineOptions) *Engine {
	if opts.FanOut < 1 {
		opts.FanOut = 4
	}
	if opts.ProgressInterval < 1 {
		opts.ProgressInterval = 5000
	}
	if opts.ProgressThreshold < 1 {
		opts.ProgressThreshold = 200
	}
	return &Engine{source: source, session: session, opts: opts}
}

// Session returns the session the engine was built with.
func (e *Engine) Session() Session { return e.session }

// FetchAllBatches looks up keys in batches of at most batchSize and returns
// exactly one record per key, in input order. Keys the server does not know
// come back as Placeholder records.
func (e *Engine) FetchAllBatches(ctx context.Context, keys []string, makeQuery func(batch []string) string, batchSize int) ([]Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if batchSize < 1 || batchSize > MaxBarcodeBatch {
		batchSize = MaxBarcodeBatch
	}

	ctx, span := tracer.Start(ctx, "folio.fetch_batches", trace.WithAttributes(
		attribute.Int("keys", len(keys)),
		attribute.Int("batch_size", batchSize),
	))
	defer span.End()

	batches := splitBatches(keys, batchSize)
	results := make([][]Record, len(batches))

	tracking := len(keys) > e.opts.ProgressThreshold
	if tracking {
		e.notify(fmt.Sprintf("Retrieving %d items from FOLIO...", len(keys)))
	}

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.FanOut)
	for i, batch := range batches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resp, err := e.source.Items(gctx, e.session, makeQuery(batch), 2*len(batch), 0)
			if err != nil {
				return err
			}
			results[i] = resp.Items

			mu.Lock()
			prev := done
			done += len(batch)
			now := done
			mu.Unlock()
			if tracking && prev/e.opts.ProgressInterval != now/e.opts.ProgressInterval {
				e.notify(fmt.Sprintf("Retrieved %d of %d items...", now, len(keys)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := make([]Record, 0, len(keys))
	found := 0
	for i, batch := range batches {
		byBarcode := make(map[string]Record, len(results[i]))
		for _, r := range results[i] {
			if bc := r.Barcode(); bc != "" {
				if _, dup := byBarcode[bc]; !dup {
					byBarcode[bc] = r
				}
			}
		}
		for _, key := range batch {
			if r, ok := byBarcode[key]; ok {
				out = append(out, r)
				found++
			} else {
				out = append(out, Placeholder(key))
			}
		}
	}
	e.opts.Metrics.addRecords("barcode", found)
	log.Printf("folio: batch lookup of %d keys in %d requests, %d found", len(keys), len(batches), found)
	return out, nil
}

// Count returns totalRecords for query without transferring any records.
func (e *Engine) Count(ctx context.Context, query string) (int, error) {
	resp, err := e.source.Items(ctx, e.session, query, 0, 0)
	if err != nil {
		return 0, err
	}
	return resp.TotalRecords, nil
}

// FirstPage returns up to limit records matching query.
func (e *Engine) FirstPage(ctx context.Context, query string, limit int) ([]Record, error) {
	resp, err := e.source.Items(ctx, e.session, query, limit, 0)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// FetchAllPages pages through query until totalExpected records have been
// collected. A page that comes back empty early is an error: the caller
// gets all the records or none of them.
func (e *Engine) FetchAllPages(ctx context.Context, query string, totalExpected, pageSize int) ([]Record, error) {
	if totalExpected <= 0 {
		return nil, nil
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	ctx, span := tracer.Start(ctx, "folio.fetch_pages", trace.WithAttributes(
		attribute.Int("total", totalExpected),
		attribute.Int("page_size", pageSize),
	))
	defer span.End()

	tracking := totalExpected > e.opts.ProgressThreshold
	if tracking {
		e.notify(fmt.Sprintf("Retrieving %d items from FOLIO...", totalExpected))
	}

	out := make([]Record, 0, totalExpected)
	for offset := 0; len(out) < totalExpected; offset += pageSize {
		resp, err := e.source.Items(ctx, e.session, query, pageSize, offset)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if len(resp.Items) == 0 {
			err := &Error{
				Kind:   KindTransient,
				Op:     "fetch pages",
				Detail: fmt.Sprintf("server returned an empty page at offset %d after %d of %d records", offset, len(out), totalExpected),
				Err:    ErrIncompleteResults,
			}
			span.RecordError(err)
			return nil, err
		}

		prev := len(out)
		out = append(out, resp.Items...)
		if tracking && prev/e.opts.ProgressInterval != len(out)/e.opts.ProgressInterval && len(out) < totalExpected {
			e.notify(fmt.Sprintf("Retrieved %d of %d items...", len(out), totalExpected))
		}
	}
	if len(out) > totalExpected {
		out = out[:totalExpected]
	}
	e.opts.Metrics.addRecords("range", len(out))
	return out, nil
}

func (e *Engine) notify(msg string) {
	if e.opts.Notify == nil {
		return
	}
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	e.opts.Notify(msg)
}

func splitBatches(keys []string, size int) [][]string {
	batches := make([][]string, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := min(start+size, len(keys))
		batches = append(batches, keys[start:end])
	}
	return batches
}
