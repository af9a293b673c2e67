package folio

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stacksID = "0b2c8d3e-4f5a-4b6c-8d7e-9f0a1b2c3d4e"

func TestParseLocation(t *testing.T) {
	for _, in := range []string{"", "Any", "any", " ANY "} {
		loc, err := ParseLocation(in)
		require.NoError(t, err, in)
		assert.True(t, loc.IsAny(), in)
		assert.Equal(t, AnyLocation, loc.String())
	}

	loc, err := ParseLocation(strings.ToUpper(stacksID))
	require.NoError(t, err)
	assert.Equal(t, stacksID, loc.String())

	_, err = ParseLocation(`x" or barcode=="*`)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestBarcodeSetQuery(t *testing.T) {
	assert.Equal(t, `barcode==("35047019076454" or "00000000")`,
		BarcodeSetQuery([]string{"35047019076454", "00000000"}))
	assert.Equal(t, `barcode==("a\"b")`, BarcodeSetQuery([]string{`a"b`}))
}

func TestBarcodeBatchFitsInURL(t *testing.T) {
	batch := make([]string, MaxBarcodeBatch)
	for i := range batch {
		batch[i] = "35047019076454"
	}
	params := url.Values{"query": {BarcodeSetQuery(batch)}, "limit": {"100"}, "offset": {"0"}}
	assert.Less(t, len("https://okapi.example.edu/inventory/items?"+encodeParams(params)), 2048)
}

func TestCallNumberExactQuery(t *testing.T) {
	assert.Equal(t, `effectiveCallNumberComponents.callNumber=="GV199.F3"`,
		CallNumberExactQuery("GV199.F3", LocationScope{}))

	loc, err := ParseLocation(stacksID)
	require.NoError(t, err)
	assert.Equal(t,
		`effectiveCallNumberComponents.callNumber=="GV199.F3" and effectiveLocationId=="`+stacksID+`"`,
		CallNumberExactQuery("GV199.F3", loc))
}

func TestCallNumberRangeQuery(t *testing.T) {
	assert.Equal(t,
		`effectiveShelvingOrder>="A 3100" and effectiveShelvingOrder<="Z 3999" sortby effectiveShelvingOrder`,
		CallNumberRangeQuery("A 3100", "Z 3999", LocationScope{}))

	// Reversed bounds still build.
	assert.NotEmpty(t, CallNumberRangeQuery("Z", "A", LocationScope{}))
}

func TestQuoteEscapesMasking(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", `"plain"`},
		{`a"b`, `"a\"b"`},
		{`a\b`, `"a\\b"`},
		{"GV*", `"GV\*"`},
		{"GV?99", `"GV\?99"`},
		{"^GV", `"\^GV"`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, quote(tt.in))
		})
	}
}

func TestEncodeParamsUsesPercentSpaces(t *testing.T) {
	out := encodeParams(url.Values{"query": {`a b`}})
	assert.Equal(t, "query=a%20b", out)
}
