// Package fields defines the output columns Boffo can write for an item and
// keeps track of which ones the user has switched on.
package fields

import (
	"strings"

	"boffo/internal/folio"
)

// Descriptor is one output column. It is plain data so selections can be
// stored; the code that fills the column lives in the extractor registry.
type Descriptor struct {
	Name             string `json:"name"`
	EnabledByDefault bool   `json:"enabledByDefault"`
	Required         bool   `json:"required"`
}

const (
	Barcode           = "Barcode"
	Title             = "Title"
	CallNumber        = "Call Number"
	Volume            = "Volume"
	Enumeration       = "Enumeration"
	Chronology        = "Chronology"
	CopyNumber        = "Copy Number"
	EffectiveLocation = "Effective Location"
	PermanentLocation = "Permanent Location"
	Status            = "Status"
	MaterialType      = "Material Type"
	LoanType          = "Loan Type"
	ShelvingOrder     = "Shelving Order"
	HRID              = "HRID"
	UUID              = "UUID"
	HoldingsID        = "Holdings ID"
	Notes             = "Notes"
	Contributors      = "Contributors"
	DiscoverySuppress = "Discovery Suppress"
	LastCheckIn       = "Last Check In"
)

// canonical is the column order of every sheet Boffo writes.
var canonical = []Descriptor{
	{Name: Barcode, EnabledByDefault: true, Required: true},
	{Name: Title, EnabledByDefault: true},
	{Name: CallNumber, EnabledByDefault: true},
	{Name: Volume, EnabledByDefault: true},
	{Name: Enumeration},
	{Name: Chronology},
	{Name: CopyNumber},
	{Name: EffectiveLocation, EnabledByDefault: true},
	{Name: PermanentLocation},
	{Name: Status, EnabledByDefault: true},
	{Name: MaterialType},
	{Name: LoanType},
	{Name: ShelvingOrder},
	{Name: HRID},
	{Name: UUID},
	{Name: HoldingsID},
	{Name: Notes},
	{Name: Contributors},
	{Name: DiscoverySuppress},
	{Name: LastCheckIn},
}

// Extractor renders one column for a record. It returns "" when the record
// lacks the data.
type Extractor func(r folio.Record) string

var extractors = map[string]Extractor{
	Barcode:           path("barcode"),
	Title:             path("title"),
	CallNumber:        callNumber,
	Volume:            path("volume"),
	Enumeration:       path("enumeration"),
	Chronology:        path("chronology"),
	CopyNumber:        path("copyNumber"),
	EffectiveLocation: path("effectiveLocation", "name"),
	PermanentLocation: path("permanentLocation", "name"),
	Status:            path("status", "name"),
	MaterialType:      path("materialType", "name"),
	LoanType:          loanType,
	ShelvingOrder:     path("effectiveShelvingOrder"),
	HRID:              path("hrid"),
	UUID:              path("id"),
	HoldingsID:        path("holdingsRecordId"),
	Notes:             listOf("notes", "note"),
	Contributors:      listOf("contributorNames", "name"),
	DiscoverySuppress: path("discoverySuppress"),
	LastCheckIn:       path("lastCheckIn", "dateTime"),
}

// Descriptors returns the canonical descriptors in column order.
func Descriptors() []Descriptor {
	out := make([]Descriptor, len(canonical))
	copy(out, canonical)
	return out
}

// Lookup returns the descriptor named name.
func Lookup(name string) (Descriptor, bool) {
	for _, d := range canonical {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Extract renders the column name for r.
func Extract(name string, r folio.Record) string {
	if fn, ok := extractors[name]; ok {
		return fn(r)
	}
	return ""
}

// Headings returns the column headings for enabled, with required columns
// added in canonical position when missing.
func Headings(enabled []Descriptor) []string {
	cols := withRequired(enabled)
	out := make([]string, len(cols))
	for i, d := range cols {
		out[i] = d.Name
	}
	return out
}

// Project renders records as rows of the enabled columns. Barcode is always
// present since it is the only column a not-found placeholder can fill.
func Project(records []folio.Record, enabled []Descriptor) [][]string {
	cols := withRequired(enabled)
	rows := make([][]string, len(records))
	for i, r := range records {
		row := make([]string, len(cols))
		for j, d := range cols {
			row[j] = Extract(d.Name, r)
		}
		rows[i] = row
	}
	return rows
}

func withRequired(enabled []Descriptor) []Descriptor {
	have := make(map[string]bool, len(enabled))
	for _, d := range enabled {
		have[d.Name] = true
	}
	missing := false
	for _, d := range canonical {
		if d.Required && !have[d.Name] {
			missing = true
		}
	}
	if !missing {
		return enabled
	}

	out := make([]Descriptor, 0, len(enabled)+1)
	for _, d := range canonical {
		if d.Required || have[d.Name] {
			out = append(out, d)
		}
	}
	// Names outside the canonical list keep their relative order at the end.
	for _, d := range enabled {
		if _, ok := Lookup(d.Name); !ok {
			out = append(out, d)
		}
	}
	return out
}

func path(keys ...string) Extractor {
	return func(r folio.Record) string { return r.String(keys...) }
}

func listOf(list, key string) Extractor {
	return func(r folio.Record) string {
		var parts []string
		for _, el := range r.List(list) {
			if s := folio.Lookup(el, key); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	}
}

func callNumber(r folio.Record) string {
	var parts []string
	for _, key := range []string{"prefix", "callNumber", "suffix"} {
		if s := r.String("effectiveCallNumberComponents", key); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func loanType(r folio.Record) string {
	if s := r.String("temporaryLoanType", "name"); s != "" {
		return s
	}
	return r.String("permanentLoanType", "name")
}
