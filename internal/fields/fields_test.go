package fields

import (
	"context"
	"encoding/json"
	"testing"

	"boffo/internal/folio"
	"boffo/internal/props"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(t *testing.T) folio.Record {
	t.Helper()
	var r folio.Record
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "7212ba6a-8dcf-45a1-be9a-ffaa847c4423",
		"hrid": "it00000001",
		"barcode": "35047019076454",
		"title": "Sport and society",
		"holdingsRecordId": "e3ff6133-b9a2-4d4c-a1c9-dc1867d4df19",
		"effectiveCallNumberComponents": {"callNumber": "GV199.F3", "prefix": "REF"},
		"effectiveLocation": {"name": "Main Stacks"},
		"status": {"name": "Checked out"},
		"materialType": {"name": "book"},
		"permanentLoanType": {"name": "Can circulate"},
		"notes": [{"note": "Gift"}, {"note": ""}, {"note": "Rebound"}],
		"contributorNames": [{"name": "Frey, James"}],
		"discoverySuppress": true,
		"copyNumber": "c.2"
	}`), &r))
	return r
}

func TestExtractors(t *testing.T) {
	r := sampleRecord(t)
	tests := map[string]string{
		Barcode:           "35047019076454",
		Title:             "Sport and society",
		CallNumber:        "REF GV199.F3",
		EffectiveLocation: "Main Stacks",
		PermanentLocation: "",
		Status:            "Checked out",
		MaterialType:      "book",
		LoanType:          "Can circulate",
		HRID:              "it00000001",
		UUID:              "7212ba6a-8dcf-45a1-be9a-ffaa847c4423",
		HoldingsID:        "e3ff6133-b9a2-4d4c-a1c9-dc1867d4df19",
		Notes:             "Gift; Rebound",
		Contributors:      "Frey, James",
		DiscoverySuppress: "true",
		CopyNumber:        "c.2",
		LastCheckIn:       "",
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, Extract(name, r))
		})
	}
}

func TestEveryDescriptorHasAnExtractor(t *testing.T) {
	for _, d := range Descriptors() {
		_, ok := extractors[d.Name]
		assert.True(t, ok, d.Name)
	}
	assert.Equal(t, "", Extract("No Such Field", folio.Record{}))
}

func TestLoanTypePrefersTemporary(t *testing.T) {
	r := folio.Record{
		"permanentLoanType": map[string]any{"name": "Can circulate"},
		"temporaryLoanType": map[string]any{"name": "Reserve"},
	}
	assert.Equal(t, "Reserve", Extract(LoanType, r))
}

func TestProjectForcesBarcode(t *testing.T) {
	title, _ := Lookup(Title)
	status, _ := Lookup(Status)
	enabled := []Descriptor{title, status}

	rows := Project([]folio.Record{sampleRecord(t), folio.Placeholder("00000000")}, enabled)
	assert.Equal(t, []string{Barcode, Title, Status}, Headings(enabled))
	assert.Equal(t, [][]string{
		{"35047019076454", "Sport and society", "Checked out"},
		{"00000000", "", ""},
	}, rows)
}

func TestProjectToleratesEmptyRecord(t *testing.T) {
	rows := Project([]folio.Record{{}}, Descriptors())
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], len(Descriptors()))
	for _, cell := range rows[0] {
		assert.Equal(t, "", cell)
	}
}

func TestMerge(t *testing.T) {
	merged := Merge([]Selection{
		{Name: Barcode, Enabled: false},
		{Name: Title, Enabled: false},
		{Name: HRID, Enabled: true},
		{Name: "Retired Column", Enabled: true},
	})
	require.Len(t, merged, len(Descriptors()))

	state := map[string]bool{}
	for _, s := range merged {
		state[s.Name] = s.Enabled
	}
	assert.True(t, state[Barcode], "required column cannot be disabled")
	assert.False(t, state[Title])
	assert.True(t, state[HRID])
	assert.True(t, state[Status], "unstored column keeps its default")
	_, ok := state["Retired Column"]
	assert.False(t, ok)
}

func TestSelectionsDefaults(t *testing.T) {
	s := NewSelections(props.NewMemoryStore())
	names, err := s.EnabledNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{Barcode, Title, CallNumber, Volume, EffectiveLocation, Status}, names)
}

func TestSelectionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := props.NewMemoryStore()

	flags := make([]bool, len(Descriptors()))
	for i := range flags {
		flags[i] = i%3 == 0
	}
	require.NoError(t, NewSelections(store).SetSelections(ctx, flags))

	// A fresh Selections over the same store behaves like a reload.
	sel, err := NewSelections(store).Load(ctx)
	require.NoError(t, err)
	for i, s := range sel {
		assert.Equal(t, flags[i], s.Enabled, s.Name)
	}
}

func TestSelectionsDropRetiredNames(t *testing.T) {
	ctx := context.Background()
	store := props.NewMemoryStore()
	require.NoError(t, store.Set(ctx, PropertyKey, `[{"name":"Retired Column","enabled":true},{"name":"HRID","enabled":true}]`))

	names, err := NewSelections(store).EnabledNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, HRID)
	assert.NotContains(t, names, "Retired Column")
}

func TestSelectionsRequiredStaysOn(t *testing.T) {
	ctx := context.Background()
	s := NewSelections(props.NewMemoryStore())
	require.NoError(t, s.SetSelections(ctx, make([]bool, len(Descriptors()))))

	names, err := s.EnabledNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{Barcode}, names)
}

func TestSetSelectionsRejectsWrongLength(t *testing.T) {
	err := NewSelections(props.NewMemoryStore()).SetSelections(context.Background(), []bool{true})
	assert.ErrorIs(t, err, folio.ErrConfig)
}

func TestSetEnabledNames(t *testing.T) {
	ctx := context.Background()
	s := NewSelections(props.NewMemoryStore())

	require.NoError(t, s.SetEnabledNames(ctx, []string{Status, HRID}))
	names, err := s.EnabledNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{Barcode, Status, HRID}, names)

	assert.ErrorIs(t, s.SetEnabledNames(ctx, []string{"Bogus"}), folio.ErrConfig)
}

func TestSelectionsCorruptValue(t *testing.T) {
	ctx := context.Background()
	store := props.NewMemoryStore()
	require.NoError(t, store.Set(ctx, PropertyKey, "{not json"))

	sel, err := NewSelections(store).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), sel)
}
