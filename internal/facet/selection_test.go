package facet

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketlens/domain/core"
	"marketlens/domain/dataframe"
	"marketlens/internal/testkit"
)

func TestSelectionIsImmutable(t *testing.T) {
	base := NewSelection().With("region", dataframe.Strings("APAC")...)
	next := base.With("region", dataframe.Strings("EU")...)
	added := base.Add("region", dataframe.String("LATAM"))

	assert.Equal(t, dataframe.Strings("APAC"), base.Values("region"))
	assert.Equal(t, dataframe.Strings("EU"), next.Values("region"))
	assert.Equal(t, dataframe.Strings("APAC", "LATAM"), added.Values("region"))
}

func TestSelectionEmptySetIsUnrestricted(t *testing.T) {
	s := NewSelection().With("region")
	assert.True(t, s.IsEmpty())
	assert.False(t, s.IsActive("region"))
	assert.Empty(t, s.Active())

	s = s.With("country", dataframe.String("India")).Without("country")
	assert.True(t, s.IsEmpty())
}

func TestSelectionRestrict(t *testing.T) {
	s := NewSelection().With("country", dataframe.Strings("India", "Japan", "France")...)

	kept, dropped := s.Restrict("country", dataframe.Strings("India", "Japan"))
	assert.Equal(t, dataframe.Strings("India", "Japan"), kept.Values("country"))
	assert.Equal(t, dataframe.Strings("France"), dropped)

	none, dropped := s.Restrict("country", nil)
	assert.False(t, none.IsActive("country"))
	assert.Len(t, dropped, 3)

	same, dropped := s.Restrict("region", nil)
	assert.True(t, same.Equal(s))
	assert.Nil(t, dropped)
}

func TestSelectionEqualAndHash(t *testing.T) {
	a := NewSelection().
		With("region", dataframe.Strings("EU", "APAC")...).
		With("year", dataframe.Int(2021))
	b := NewSelection().
		With("year", dataframe.Int(2021)).
		With("region", dataframe.Strings("APAC", "EU")...)
	c := NewSelection().With("region", dataframe.Strings("APAC", "EU")...).With("year", dataframe.String("2021"))

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.False(t, a.Equal(c))
	assert.NotEqual(t, a.Hash(), c.Hash(), "string 2021 and number 2021 are different selections")
}

func TestSelectionJSON(t *testing.T) {
	s := NewSelection().With("region", dataframe.String("APAC")).With("year", dataframe.Int(2022))
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"region":["APAC"],"year":[2022]}`, string(data))

	var back Selection
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equal(s))
}

func TestSelectionValidate(t *testing.T) {
	schema := dataframe.PricingSchema

	ok := NewSelection().With("year", dataframe.Int(2021)).With("brand", dataframe.String("Glucora"))
	assert.NoError(t, ok.Validate(schema))

	unknown := NewSelection().With("planet", dataframe.String("Mars"))
	assert.ErrorIs(t, unknown.Validate(schema), core.ErrUnknownFacet)

	metric := NewSelection().With("revenue", dataframe.Number(10))
	assert.ErrorIs(t, metric.Validate(schema), core.ErrUnknownFacet)

	wrongKind := NewSelection().With("year", dataframe.String("2021"))
	assert.ErrorIs(t, wrongKind.Validate(schema), core.ErrInvalidSelection)

	assert.NoError(t, NewSelection().Validate(testkit.ScenarioSchema()))
}
