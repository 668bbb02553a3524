package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketlens/domain/dataframe"
)

func TestParseSelection(t *testing.T) {
	sel, err := parseSelection(`{"region":["APAC","EU"],"year":[2021],"brand":"Glucora"}`)
	require.NoError(t, err)

	assert.Equal(t, dataframe.Strings("APAC", "EU"), sel.Values("region"))
	assert.Equal(t, dataframe.Ints(2021), sel.Values("year"))
	assert.Equal(t, dataframe.Strings("Glucora"), sel.Values("brand"))
}

func TestParseSelectionEmpty(t *testing.T) {
	sel, err := parseSelection("")
	require.NoError(t, err)
	assert.True(t, sel.IsEmpty())
}

func TestParseSelectionErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{"region":`},
		{"not an object", `["APAC"]`},
		{"nested object", `{"region":[{"name":"APAC"}]}`},
		{"boolean", `{"region":[true]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSelection(tt.raw)
			assert.Error(t, err)
		})
	}
}
