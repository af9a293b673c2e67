package fields

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"boffo/internal/folio"
	"boffo/internal/props"
)

// PropertyKey is where selections are stored.
const PropertyKey = "field_selections"

// Selection is the stored on/off state of one column.
type Selection struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Defaults returns every canonical column at its default state.
func Defaults() []Selection {
	out := make([]Selection, len(canonical))
	for i, d := range canonical {
		out[i] = Selection{Name: d.Name, Enabled: d.EnabledByDefault}
	}
	return out
}

// Merge lays stored over the canonical list by name. Stored names that no
// longer exist are dropped, new columns take their default, and required
// columns are on whatever was stored.
func Merge(stored []Selection) []Selection {
	byName := make(map[string]bool, len(stored))
	for _, s := range stored {
		byName[s.Name] = s.Enabled
	}
	out := Defaults()
	for i, d := range canonical {
		if enabled, ok := byName[d.Name]; ok {
			out[i].Enabled = enabled
		}
		if d.Required {
			out[i].Enabled = true
		}
	}
	return out
}

// Selections persists the user's column choices in a property store.
type Selections struct {
	store props.Store
}

func NewSelections(store props.Store) *Selections {
	return &Selections{store: store}
}

// Load returns the merged selections. Unreadable stored data falls back to
// the defaults.
func (s *Selections) Load(ctx context.Context) ([]Selection, error) {
	raw, ok, err := s.store.Get(ctx, PropertyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load field selections: %w", err)
	}
	if !ok || raw == "" {
		return Defaults(), nil
	}
	var stored []Selection
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		log.Printf("fields: ignoring unreadable selections: %v", err)
		return Defaults(), nil
	}
	return Merge(stored), nil
}

// Enabled returns the enabled descriptors in column order.
func (s *Selections) Enabled(ctx context.Context) ([]Descriptor, error) {
	sel, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Descriptor, 0, len(sel))
	for i, d := range canonical {
		if sel[i].Enabled {
			out = append(out, d)
		}
	}
	return out, nil
}

// EnabledNames returns the names of the enabled columns in order.
func (s *Selections) EnabledNames(ctx context.Context) ([]string, error) {
	enabled, err := s.Enabled(ctx)
	if err != nil {
		return nil, err
	}
	return Headings(enabled), nil
}

// SetSelections stores one flag per canonical column, in column order.
func (s *Selections) SetSelections(ctx context.Context, flags []bool) error {
	if len(flags) != len(canonical) {
		return &folio.Error{
			Kind:   folio.KindConfig,
			Op:     "set field selections",
			Detail: fmt.Sprintf("expected %d flags, got %d", len(canonical), len(flags)),
		}
	}
	sel := make([]Selection, len(canonical))
	for i, d := range canonical {
		sel[i] = Selection{Name: d.Name, Enabled: flags[i] || d.Required}
	}
	return s.save(ctx, sel)
}

// SetEnabledNames enables exactly the named columns.
func (s *Selections) SetEnabledNames(ctx context.Context, names []string) error {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := Lookup(n); !ok {
			return &folio.Error{Kind: folio.KindConfig, Op: "set field selections", Detail: fmt.Sprintf("unknown field %q", n)}
		}
		want[n] = true
	}
	flags := make([]bool, len(canonical))
	for i, d := range canonical {
		flags[i] = want[d.Name]
	}
	return s.SetSelections(ctx, flags)
}

func (s *Selections) save(ctx context.Context, sel []Selection) error {
	data, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("failed to encode field selections: %w", err)
	}
	if err := s.store.Set(ctx, PropertyKey, string(data)); err != nil {
		return fmt.Errorf("failed to save field selections: %w", err)
	}
	return nil
}
