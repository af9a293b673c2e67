package folio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exact(cn string) string { return CallNumberExactQuery(cn, LocationScope{}) }

func TestFindByCallNumberExact(t *testing.T) {
	src := catalogSource(map[string][]Record{
		exact("GV199.F3"): {item("1", "GV 3199 F3")},
	})
	r := NewResolver(NewEngine(src, Session{}, EngineOptions{}), 100)

	cn, recs, err := r.FindByCallNumber(context.Background(), "  GV 199.F3 ", LocationScope{})
	require.NoError(t, err)
	assert.Equal(t, "GV199.F3", cn)
	assert.Len(t, recs, 1)
	assert.Equal(t, 1, src.callCount())
	assert.Equal(t, 100, src.calls[0].Limit)
}

func TestFindByCallNumberVariant(t *testing.T) {
	src := catalogSource(map[string][]Record{
		exact("GV199 .F3"): {item("1", "GV 3199 F3")},
	})
	r := NewResolver(NewEngine(src, Session{}, EngineOptions{}), 100)

	cn, recs, err := r.FindByCallNumber(context.Background(), "GV199.F3", LocationScope{})
	require.NoError(t, err)
	assert.Equal(t, "GV199 .F3", cn)
	assert.Len(t, recs, 1)
	assert.Equal(t, 2, src.callCount())
}

func TestFindByCallNumberAnomalous(t *testing.T) {
	src := catalogSource(nil)
	r := NewResolver(NewEngine(src, Session{}, EngineOptions{}), 100)

	_, _, err := r.FindByCallNumber(context.Background(), "Thesis 2001.A1", LocationScope{})
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, 1, src.callCount(), "no variants are tried for anomalous input")
}

func TestFindByCallNumberNotFound(t *testing.T) {
	src := catalogSource(nil)
	r := NewResolver(NewEngine(src, Session{}, EngineOptions{}), 100)

	_, _, err := r.FindByCallNumber(context.Background(), "QA76", LocationScope{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = r.FindByCallNumber(context.Background(), "   ", LocationScope{})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestFindByCallNumberScopesLocation(t *testing.T) {
	loc, err := ParseLocation(stacksID)
	require.NoError(t, err)
	src := catalogSource(map[string][]Record{
		CallNumberExactQuery("GV199.F3", loc): {item("1", "GV 3199 F3")},
	})
	r := NewResolver(NewEngine(src, Session{}, EngineOptions{}), 100)

	_, recs, err := r.FindByCallNumber(context.Background(), "GV199.F3", loc)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	_, _, err = r.FindByCallNumber(context.Background(), "GV199.F3", LocationScope{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveBoundary(t *testing.T) {
	src := catalogSource(map[string][]Record{
		exact("A100"): {item("1", ""), item("2", "A 3100")},
		exact("B200"): {item("3", ""), item("4", "")},
	})
	r := NewResolver(NewEngine(src, Session{}, EngineOptions{}), 100)

	b, err := r.ResolveBoundary(context.Background(), "A100", LocationScope{})
	require.NoError(t, err)
	assert.Equal(t, Boundary{CallNumber: "A100", ShelvingOrder: "A 3100"}, b)

	_, err = r.ResolveBoundary(context.Background(), "B200", LocationScope{})
	assert.ErrorIs(t, err, ErrDataIntegrity)
	assert.Contains(t, err.Error(), "B200")
}

func rangeCatalog() map[string][]Record {
	anywhere := LocationScope{}
	return map[string][]Record{
		exact("A100"): {item("a", "A 3100")},
		exact("Z999"): {item("z", "Z 3999")},
		CallNumberRangeQuery("A 3100", "Z 3999", anywhere): {
			item("3", "M 3300"), item("1", "A 3100"), item("2", "F 3200"),
		},
	}
}

func TestResolveRange(t *testing.T) {
	src := catalogSource(rangeCatalog())
	r := NewResolver(NewEngine(src, Session{}, EngineOptions{}), 100)

	recs, err := r.ResolveRange(context.Background(), "A100", "Z999", LocationScope{}, 5, Capacity{})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{recs[0].Barcode(), recs[1].Barcode(), recs[2].Barcode()})
}

func TestResolveRangeReversed(t *testing.T) {
	src := catalogSource(rangeCatalog())
	r := NewResolver(NewEngine(src, Session{}, EngineOptions{}), 100)

	recs, err := r.ResolveRange(context.Background(), "Z999", "A100", LocationScope{}, 5, Capacity{})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "1", recs[0].Barcode())
}

func TestResolveRangeEmpty(t *testing.T) {
	catalog := rangeCatalog()
	delete(catalog, CallNumberRangeQuery("A 3100", "Z 3999", LocationScope{}))
	src := catalogSource(catalog)
	r := NewResolver(NewEngine(src, Session{}, EngineOptions{}), 100)

	_, err := r.ResolveRange(context.Background(), "A100", "Z999", LocationScope{}, 5, Capacity{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveRangeCapacity(t *testing.T) {
	src := catalogSource(rangeCatalog())
	r := NewResolver(NewEngine(src, Session{}, EngineOptions{}), 100)

	_, err := r.ResolveRange(context.Background(), "A100", "Z999", LocationScope{}, 5, Capacity{MaxCells: 10})
	assert.ErrorIs(t, err, ErrCapacity)
	for _, c := range src.calls {
		if c.Query == CallNumberRangeQuery("A 3100", "Z 3999", LocationScope{}) {
			assert.Equal(t, 0, c.Limit, "only the count probe may run before the capacity check")
		}
	}
}
