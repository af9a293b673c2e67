package folio

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Record is one item as returned by /inventory/items. The schema belongs to
// FOLIO; Boffo only reads named sub-fields through the accessors below.
type Record map[string]any

// Placeholder stands in for a barcode the server did not return.
func Placeholder(barcode string) Record {
	return Record{"barcode": barcode}
}

// String walks path and renders the value found there. Missing or
// non-object intermediate values yield "".
func (r Record) String(path ...string) string {
	return render(r.lookup(path...))
}

// List returns the array at path, or nil.
func (r Record) List(path ...string) []any {
	if v, ok := r.lookup(path...).([]any); ok {
		return v
	}
	return nil
}

func (r Record) Barcode() string       { return r.String("barcode") }
func (r Record) ShelvingOrder() string { return r.String("effectiveShelvingOrder") }

// IsPlaceholder reports whether r carries nothing but a barcode.
func (r Record) IsPlaceholder() bool {
	_, ok := r["barcode"]
	return ok && len(r) == 1
}

func (r Record) lookup(path ...string) any {
	var cur any = map[string]any(r)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

// Lookup reads path from an arbitrary decoded JSON value, tolerating gaps.
func Lookup(v any, path ...string) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	return Record(m).String(path...)
}

func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, el := range t {
			if s := render(el); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}

// Location is an effective/permanent shelving location.
type Location struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ItemsResponse is the body of GET /inventory/items.
type ItemsResponse struct {
	TotalRecords int      `json:"totalRecords"`
	Items        []Record `json:"items"`
}

// LocationsResponse is the body of GET /locations.
type LocationsResponse struct {
	Locations    []Location `json:"locations"`
	TotalRecords int        `json:"totalRecords"`
}
