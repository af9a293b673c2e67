package folio

import (
	"context"
	"fmt"
	"log"
	"sort"
)

// Boundary is one end of a call-number range.
type Boundary struct {
	CallNumber    string
	ShelvingOrder string
}

// Resolver turns user-typed call numbers into item records.
type Resolver struct {
	engine   *Engine
	pageSize int
}

func NewResolver(engine *Engine, pageSize int) *Resolver {
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return &Resolver{engine: engine, pageSize: pageSize}
}

// FindByCallNumber returns the items matching raw and the spelling that
// matched. The normalized form is tried first; when it finds nothing,
// spacing variants around cutters are tried in order.
func (r *Resolver) FindByCallNumber(ctx context.Context, raw string, loc LocationScope) (string, []Record, error) {
	const op = "find call number"

	cn := NormalizeCallNumber(raw)
	if cn == "" {
		return "", nil, &Error{Kind: KindConfig, Op: op, Detail: "call number is empty"}
	}

	recs, err := r.engine.FirstPage(ctx, CallNumberExactQuery(cn, loc), r.pageSize)
	if err != nil {
		return "", nil, err
	}
	if len(recs) > 0 {
		return cn, recs, nil
	}

	if IsAnomalousCallNumber(cn) {
		return "", nil, &Error{
			Kind:   KindConfig,
			Op:     op,
			Detail: fmt.Sprintf("%q does not look like a call number (expected 1-3 letters followed by a number)", raw),
		}
	}

	for _, variant := range CallNumberVariants(cn) {
		recs, err := r.engine.FirstPage(ctx, CallNumberExactQuery(variant, loc), r.pageSize)
		if err != nil {
			return "", nil, err
		}
		if len(recs) > 0 {
			log.Printf("folio: call number %q matched as %q", raw, variant)
			return variant, recs, nil
		}
	}

	return "", nil, &Error{
		Kind:   KindNotFound,
		Op:     op,
		Detail: fmt.Sprintf("no items with call number %q at location %s", raw, loc),
	}
}

// ResolveBoundary finds raw and returns the shelving order of the first
// matching item that has one.
func (r *Resolver) ResolveBoundary(ctx context.Context, raw string, loc LocationScope) (Boundary, error) {
	cn, recs, err := r.FindByCallNumber(ctx, raw, loc)
	if err != nil {
		return Boundary{}, err
	}
	for _, rec := range recs {
		if so := rec.ShelvingOrder(); so != "" {
			return Boundary{CallNumber: cn, ShelvingOrder: so}, nil
		}
	}
	return Boundary{}, &Error{
		Kind: KindDataIntegrity,
		Op:   "resolve boundary",
		Detail: fmt.Sprintf("none of the %d items with call number %q has an effective shelving order in FOLIO, so it cannot bound a range",
			len(recs), cn),
	}
}

// ResolveRange returns every item between first and last, inclusive, sorted
// by shelving order. Bounds given in reverse order are tolerated. The
// capacity check runs before any records are transferred.
func (r *Resolver) ResolveRange(ctx context.Context, first, last string, loc LocationScope, columns int, limit Capacity) ([]Record, error) {
	lo, err := r.ResolveBoundary(ctx, first, loc)
	if err != nil {
		return nil, err
	}
	hi, err := r.ResolveBoundary(ctx, last, loc)
	if err != nil {
		return nil, err
	}

	query := CallNumberRangeQuery(lo.ShelvingOrder, hi.ShelvingOrder, loc)
	total, err := r.engine.Count(ctx, query)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		query = CallNumberRangeQuery(hi.ShelvingOrder, lo.ShelvingOrder, loc)
		total, err = r.engine.Count(ctx, query)
		if err != nil {
			return nil, err
		}
		if total > 0 {
			log.Printf("folio: range %q..%q was reversed, searching %q..%q", first, last, last, first)
		}
	}
	if total == 0 {
		return nil, &Error{
			Kind:   KindNotFound,
			Op:     "resolve range",
			Detail: fmt.Sprintf("no items between %q and %q at location %s", first, last, loc),
		}
	}

	if err := CheckCapacity(total, columns, limit); err != nil {
		return nil, err
	}

	recs, err := r.engine.FetchAllPages(ctx, query, total, r.pageSize)
	if err != nil {
		return nil, err
	}

	// The server's sortby is not reliable enough to write straight out.
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].ShelvingOrder() < recs[j].ShelvingOrder()
	})
	return recs, nil
}
