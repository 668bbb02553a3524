package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketlens/domain/dataframe"
	"marketlens/internal/testkit"
)

func TestImportFrameRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	n, err := store.ImportFrame(ctx, "pricing", testkit.PricingFrame())
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	df, err := store.LoadFrame(ctx, "pricing", dataframe.PricingSchema)
	require.NoError(t, err)
	assert.Equal(t, 11, df.Len())

	missingRevenue, missingBrand := 0, 0
	for _, rec := range df.Rows() {
		if _, ok := rec.Number("revenue"); !ok {
			missingRevenue++
		}
		if _, ok := rec.Get("brand"); !ok {
			missingBrand++
		}
	}
	assert.Equal(t, 1, missingRevenue)
	assert.Equal(t, 1, missingBrand)

	year, ok := df.Rows()[0].Get("year")
	require.True(t, ok)
	assert.Equal(t, dataframe.Int(2021), year)
}

func TestImportFrameExistingTable(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.ImportFrame(ctx, "scenario", testkit.ScenarioFrame())
	require.NoError(t, err)
	_, err = store.ImportFrame(ctx, "scenario", testkit.ScenarioFrame())
	assert.Error(t, err)

	_, err = store.ImportFrame(ctx, "bad name;", testkit.ScenarioFrame())
	assert.Error(t, err)
}
