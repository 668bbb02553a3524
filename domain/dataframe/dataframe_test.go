package dataframe

import (
	"encoding/json"
	"testing"

	"marketlens/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueRendering(t *testing.T) {
	tests := []struct {
		value    Value
		expected string
	}{
		{Int(2021), "2021"},
		{Number(12.5), "12.5"},
		{String("APAC"), "APAC"},
		{Value{}, ""},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.value.String())
	}
}

func TestCompareOrdersNumbersBeforeStrings(t *testing.T) {
	assert.Negative(t, Compare(Int(2020), Int(2021)))
	assert.Positive(t, Compare(String("b"), String("a")))
	assert.Zero(t, Compare(Number(3), Int(3)))
	assert.Negative(t, Compare(Int(9999), String("0")))
}

func TestValueJSONRoundTrip(t *testing.T) {
	rec := Record{"year": Int(2022), "region": String("EU"), "revenue": Number(10.5)}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded["year"].Equal(Int(2022)))
	assert.True(t, decoded["region"].Equal(String("EU")))

	var bad Value
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &bad))
}

func TestRecordAccessors(t *testing.T) {
	rec := Record{"region": String("EU"), "revenue": Number(5), "empty": Value{}}

	_, ok := rec.Get("empty")
	assert.False(t, ok, "invalid values count as missing")

	n, ok := rec.Number("revenue")
	assert.True(t, ok)
	assert.Equal(t, 5.0, n)

	_, ok = rec.Number("region")
	assert.False(t, ok, "strings never coerce to numbers")
}

func TestSchemaCoerce(t *testing.T) {
	v, err := PricingSchema.Coerce("revenue", "1,250.50")
	require.NoError(t, err)
	assert.Equal(t, 1250.5, v.Num)

	v, err = PricingSchema.Coerce("region", "  APAC ")
	require.NoError(t, err)
	assert.Equal(t, "APAC", v.Str)

	v, err = PricingSchema.Coerce("price", "")
	require.NoError(t, err)
	assert.False(t, v.IsValid())

	_, err = PricingSchema.Coerce("price", "n/a")
	assert.ErrorIs(t, err, core.ErrSchemaMismatch)

	_, err = PricingSchema.Coerce("nope", "1")
	assert.ErrorIs(t, err, core.ErrUnknownField)
}

func TestSchemaRoles(t *testing.T) {
	assert.Contains(t, EpidemiologySchema.Facets(), "year")
	assert.Contains(t, EpidemiologySchema.Metrics(), "prevalence")
	assert.NoError(t, PricingSchema.CheckFacet("brand"))
	assert.ErrorIs(t, PricingSchema.CheckFacet("revenue"), core.ErrUnknownFacet)

	_, err := SchemaFor("Pricing")
	assert.NoError(t, err)
	_, err = SchemaFor("weather")
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)

	assert.Panics(t, func() { NewSchema(ShapeCustom, Facet("a"), Metric("a")) })
}

func TestInferSchema(t *testing.T) {
	headers := []string{"year", "region", "revenue", "notes"}
	rows := []map[string]string{
		{"year": "2020", "region": "EU", "revenue": "1,000", "notes": ""},
		{"year": "2021", "region": "APAC", "revenue": "12.5", "notes": ""},
	}

	schema := InferSchema(headers, rows)

	f, _ := schema.Field("year")
	assert.Equal(t, RoleFacet, f.Role)
	assert.Equal(t, KindNumber, f.Kind)
	f, _ = schema.Field("revenue")
	assert.Equal(t, RoleMetric, f.Role)
	f, _ = schema.Field("notes")
	assert.Equal(t, RoleFacet, f.Role, "columns without samples default to facets")
}

func TestDataframeDistinctAndValidate(t *testing.T) {
	df := New(EpidemiologySchema, []Record{
		{"year": Int(2021), "region": String("EU")},
		{"year": Int(2020), "region": String("APAC")},
		{"year": Int(2021), "region": String("EU")},
		{"year": Int(2022)},
	})

	assert.Equal(t, Strings("APAC", "EU"), df.Distinct("region"))
	assert.Equal(t, Ints(2020, 2021, 2022), df.Distinct("year"))
	assert.NoError(t, df.Validate())

	bad := New(EpidemiologySchema, []Record{{"year": String("2021")}})
	assert.Error(t, bad.Validate())

	unknown := New(EpidemiologySchema, []Record{{"brand": String("X")}})
	assert.ErrorIs(t, unknown.Validate(), core.ErrUnknownField)

	assert.Panics(t, func() { New(nil, nil) })
}

func TestBuildCoercesRawRows(t *testing.T) {
	schema := NewSchema(ShapeCustom, NumericFacet("year"), Facet("region"), Metric("revenue"))
	df, bad := Build(schema, []map[string]string{
		{"year": "2021", "region": "APAC", "revenue": "1,000", "extra": "x"},
		{"year": "2022", "region": "", "revenue": "lots"},
	})

	require.Equal(t, 2, df.Len())
	assert.Equal(t, Record{"year": Int(2021), "region": String("APAC"), "revenue": Number(1000)}, df.Rows()[0])
	assert.Equal(t, Record{"year": Int(2022)}, df.Rows()[1])
	require.Len(t, bad, 1)
	assert.Equal(t, 1, bad[0].Row)
	assert.ErrorIs(t, bad[0], core.ErrSchemaMismatch)
}

func TestBuildRejectsNonFiniteNumbers(t *testing.T) {
	df, bad := Build(PricingSchema, []map[string]string{
		{"region": "APAC", "revenue": "NaN"},
		{"region": "EU", "revenue": "5"},
		{"region": "LATAM", "revenue": "Inf"},
		{"region": "NA", "revenue": "+Inf"},
	})

	require.Equal(t, 4, df.Len())
	require.Len(t, bad, 3)
	for i, row := range []int{0, 2, 3} {
		assert.Equal(t, row, bad[i].Row)
		assert.ErrorIs(t, bad[i], core.ErrSchemaMismatch)
	}

	rows := df.Rows()
	assert.Equal(t, Record{"region": String("APAC")}, rows[0])
	assert.Equal(t, Record{"region": String("EU"), "revenue": Number(5)}, rows[1])
	_, ok := rows[2].Number("revenue")
	assert.False(t, ok)
}

func TestSchemaCoerceNonFinite(t *testing.T) {
	for _, raw := range []string{"NaN", "nan", "Inf", "-Inf", "+Infinity"} {
		v, err := PricingSchema.Coerce("price", raw)
		assert.ErrorIs(t, err, core.ErrSchemaMismatch, raw)
		assert.False(t, v.IsValid(), raw)
	}
}
