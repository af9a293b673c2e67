package folio

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AnyLocation is the selector value meaning "do not scope by location".
const AnyLocation = "Any"

// LocationScope is a validated location filter. The zero value is AnyLocation.
type LocationScope struct {
	id string
}

// ParseLocation accepts AnyLocation (any case), the empty string, or a UUID.
func ParseLocation(s string) (LocationScope, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, AnyLocation) {
		return LocationScope{}, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return LocationScope{}, &Error{Kind: KindConfig, Op: "location", Detail: fmt.Sprintf("%q is not a location id", s)}
	}
	return LocationScope{id: id.String()}, nil
}

// IsAny reports whether the scope matches every location.
func (l LocationScope) IsAny() bool { return l.id == "" }

func (l LocationScope) String() string {
	if l.IsAny() {
		return AnyLocation
	}
	return l.id
}

func (l LocationScope) clause() string {
	if l.IsAny() {
		return ""
	}
	return " and effectiveLocationId==" + quote(l.id)
}

// BarcodeSetQuery matches any of barcodes. Callers keep len(barcodes) at or
// below MaxBarcodeBatch so the encoded URL stays under ~2048 characters.
func BarcodeSetQuery(barcodes []string) string {
	terms := make([]string, len(barcodes))
	for i, b := range barcodes {
		terms[i] = quote(b)
	}
	return "barcode==(" + strings.Join(terms, " or ") + ")"
}

// CallNumberExactQuery matches items whose effective call number equals cn.
func CallNumberExactQuery(cn string, loc LocationScope) string {
	return "effectiveCallNumberComponents.callNumber==" + quote(cn) + loc.clause()
}

// CallNumberRangeQuery matches the inclusive shelving-order range [low, high].
// Shelving order is the only field that compares reliably as a string, so
// ranges never use the raw call number. Bounds in the wrong order simply
// match nothing.
func CallNumberRangeQuery(low, high string, loc LocationScope) string {
	return "effectiveShelvingOrder>=" + quote(low) +
		" and effectiveShelvingOrder<=" + quote(high) +
		loc.clause() +
		" sortby effectiveShelvingOrder"
}

// quote renders s as a CQL string literal. Backslash, double quote and the
// masking characters *, ? and ^ are escaped so user text is matched literally.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\', '"', '*', '?', '^':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}
