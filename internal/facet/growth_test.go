package facet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"marketlens/internal/testkit"
)

func TestCAGR(t *testing.T) {
	assert.InDelta(t, 0.1, CAGR(100, 121, 2).Value, 1e-12)
	assert.InDelta(t, -0.5, CAGR(100, 50, 1).Value, 1e-12)
	assert.Equal(t, NotAvailable, CAGR(0, 10, 3))
	assert.Equal(t, NotAvailable, CAGR(10, 20, 0))
	assert.Equal(t, NotAvailable, CAGR(10, -5, 2))
}

func TestGrowthBy(t *testing.T) {
	got := GrowthBy(testkit.PricingRecords(), "region", "revenue", 2021, 2022)

	assert.InDelta(t, 3805.0/5800.0-1, got["APAC"].Value, 1e-12)
	assert.InDelta(t, 13920.0/11000.0-1, got["EU"].Value, 1e-12)
	assert.Equal(t, NotAvailable, got["LATAM"], "no 2021 revenue")
}

func TestSummarize(t *testing.T) {
	s := Summarize(testkit.ScenarioRecords(), "revenue")
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 35.0, s.Sum)
	assert.InDelta(t, 35.0/3, s.Mean.Value, 1e-12)
	assert.Equal(t, Available(10), s.Median)
	assert.Equal(t, Available(5), s.Min)
	assert.Equal(t, Available(20), s.Max)
	assert.True(t, s.StdDev.Available)

	empty := Summarize(nil, "revenue")
	assert.Equal(t, 0, empty.Count)
	assert.False(t, empty.Mean.Available)
}
