package facet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"marketlens/domain/dataframe"
	"marketlens/internal/testkit"
)

func TestMatches(t *testing.T) {
	rec := dataframe.Record{"region": dataframe.String("APAC"), "year": dataframe.Int(2021)}

	tests := []struct {
		name      string
		selection Selection
		want      bool
	}{
		{"empty selection", NewSelection(), true},
		{"accepted value", NewSelection().With("region", dataframe.Strings("APAC", "EU")...), true},
		{"rejected value", NewSelection().With("region", dataframe.String("EU")), false},
		{"numeric exact match", NewSelection().With("year", dataframe.Int(2021)), true},
		{"numeric mismatch", NewSelection().With("year", dataframe.Int(2022)), false},
		{"string does not equal number", NewSelection().With("year", dataframe.String("2021")), false},
		{"missing field fails", NewSelection().With("country", dataframe.String("India")), false},
		{"cleared facet is ignored", NewSelection().With("country"), true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, Matches(rec, test.selection))
		})
	}
}

func TestFilterIdentity(t *testing.T) {
	records := testkit.PricingRecords()
	got := Filter(records, NewSelection())
	assert.Equal(t, records, got)
	assert.Same(t, &records[0], &got[0])

	df := testkit.PricingFrame()
	assert.Same(t, df, FilterFrame(df, NewSelection()))
}

func TestFilterPreservesOrderAndIsIdempotent(t *testing.T) {
	records := testkit.PricingRecords()
	s := NewSelection().
		With("region", dataframe.Strings("EU", "APAC")...).
		With("year", dataframe.Int(2022))

	once := Filter(records, s)
	assert.Equal(t, once, Filter(once, s))

	var want []dataframe.Record
	for _, rec := range records {
		if Matches(rec, s) {
			want = append(want, rec)
		}
	}
	assert.Equal(t, want, once)
	assert.Len(t, once, 5)
}

func TestFilterMonotonicity(t *testing.T) {
	records := testkit.PricingRecords()
	s := NewSelection().With("region", dataframe.String("APAC")).With("disease", dataframe.String("Diabetes"))

	before := len(Filter(records, s))
	for _, region := range dataframe.DistinctValues(records, "region") {
		grown := s.Add("region", region)
		assert.GreaterOrEqual(t, len(Filter(records, grown)), before, "adding region %s", region)
	}
	for _, disease := range dataframe.DistinctValues(records, "disease") {
		grown := s.Add("disease", disease)
		assert.GreaterOrEqual(t, len(Filter(records, grown)), before, "adding disease %s", disease)
	}
}

func TestFilterMissingFacetValue(t *testing.T) {
	records := testkit.PricingRecords()
	got := Filter(records, NewSelection().With("brand", dataframe.Strings("Glucora", "Cardiomax", "Oncovia")...))
	for _, rec := range got {
		_, ok := rec.Get("brand")
		assert.True(t, ok)
	}
	assert.Len(t, got, len(records)-1, "the Brazil row has no brand")
}
