package app

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketlens/domain/core"
	"marketlens/domain/dataframe"
	"marketlens/domain/export"
	"marketlens/internal"
	"marketlens/internal/errors"
	"marketlens/internal/facet"
	"marketlens/internal/session"
	"marketlens/internal/testkit"
	"marketlens/ports"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Write(ctx context.Context, exp *export.Export) (string, error) {
	args := m.Called(ctx, exp)
	return args.String(0), args.Error(1)
}

func newService(t *testing.T, sinks map[string]ports.AggregationSink) *DashboardService {
	t.Helper()
	s, err := session.New(testkit.PricingFrame(),
		[]facet.Dependency{facet.Derived("region", "country")},
		session.WithLogger(internal.NewDiscardLogger()))
	require.NoError(t, err)
	return NewDashboardService(s, sinks, 0, internal.NewDiscardLogger())
}

func TestDashboardServiceAggregateSum(t *testing.T) {
	svc := newService(t, nil)

	result, err := svc.Aggregate(AggregateRequest{Op: export.OpSum, Group: "region", Metric: "revenue"})
	require.NoError(t, err)

	assert.Equal(t, facet.Aggregation{"APAC": 9605, "EU": 24920, "LATAM": 800}, result.Data)
	assert.Equal(t, svc.Session().Version(), result.Version)
	assert.Equal(t, svc.Session().Selection().Hash(), result.SelectionHash)
}

func TestDashboardServiceAggregateTopDefaults(t *testing.T) {
	svc := newService(t, nil)

	result, err := svc.Aggregate(AggregateRequest{Op: export.OpTop, Group: "country", Metric: "revenue", N: 2})
	require.NoError(t, err)

	ranked, ok := result.Data.(facet.Ranked)
	require.True(t, ok)
	assert.Equal(t, []string{"Germany", "Japan"}, ranked.Keys())
}

func TestDashboardServiceAggregateValidation(t *testing.T) {
	svc := newService(t, nil)

	tests := []struct {
		name string
		req  AggregateRequest
		code string
	}{
		{"missing group", AggregateRequest{Op: export.OpSum, Metric: "revenue"}, errors.CodeInvalidInput},
		{"missing metric", AggregateRequest{Op: export.OpSum, Group: "region"}, errors.CodeInvalidInput},
		{"pivot without column", AggregateRequest{Op: export.OpPivot, Group: "region", Metric: "revenue"}, errors.CodeInvalidInput},
		{"cagr years reversed", AggregateRequest{Op: export.OpGrowth, Group: "brand", Metric: "revenue", FromYear: 2022, ToYear: 2021}, errors.CodeInvalidInput},
		{"unknown op", AggregateRequest{Op: "median", Group: "region", Metric: "revenue"}, errors.CodeInvalidInput},
		{"unknown weight", AggregateRequest{Op: export.OpWeighted, Group: "region", Metric: "price", Weight: WeightSpec{Kind: "magic"}}, errors.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Aggregate(tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestUnknownFieldStrictAndLenient(t *testing.T) {
	req := AggregateRequest{Op: export.OpSum, Group: "planet", Metric: "revenue"}

	lenient := newService(t, nil)
	result, err := lenient.Aggregate(req)
	require.NoError(t, err)
	assert.Empty(t, result.Data)

	s, err := session.New(testkit.PricingFrame(), nil,
		session.WithStrict(true),
		session.WithLogger(internal.NewDiscardLogger()))
	require.NoError(t, err)
	strict := NewDashboardService(s, nil, 0, internal.NewDiscardLogger())

	_, err = strict.Aggregate(req)
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnknownField, errors.GetCode(err))
}

func TestCountNeedsNoMetric(t *testing.T) {
	svc := newService(t, nil)

	result, err := svc.Aggregate(AggregateRequest{Op: export.OpCount, Group: "region"})
	require.NoError(t, err)
	assert.Equal(t, facet.Aggregation{"APAC": 5, "EU": 5, "LATAM": 1}, result.Data)
}

func TestBuildExportAverages(t *testing.T) {
	svc := newService(t, nil)

	exp, err := svc.BuildExport(AggregateRequest{Op: export.OpAverage, Group: "brand", Metric: "revenue"})
	require.NoError(t, err)

	assert.Equal(t, export.OpAverage, exp.Op)
	assert.Equal(t, "brand", exp.GroupBy)
	assert.Equal(t, []string{"Cardiomax", "Glucora", "Oncovia"}, exp.Keys())

	cell, ok := exp.Cell("Glucora", "revenue")
	require.True(t, ok)
	assert.True(t, cell.Available)
	assert.InDelta(t, 1960, cell.Value, 1e-9)

	cell, ok = exp.Cell("Cardiomax", "revenue")
	require.True(t, ok)
	assert.InDelta(t, 2061.25, cell.Value, 1e-9)
}

func TestBuildExportNotAvailableCells(t *testing.T) {
	svc := newService(t, nil)

	exp, err := svc.BuildExport(AggregateRequest{Op: export.OpGrowth, Group: "region", Metric: "revenue", FromYear: 2021, ToYear: 2022})
	require.NoError(t, err)

	cell, ok := exp.Cell("LATAM", "revenue")
	require.True(t, ok)
	assert.False(t, cell.Available)
	assert.Zero(t, cell.Value)

	cell, ok = exp.Cell("APAC", "revenue")
	require.True(t, ok)
	assert.True(t, cell.Available)
	assert.InDelta(t, 3805.0/5800-1, cell.Value, 1e-9)
}

func TestAggregateReportsTheSelectionItRead(t *testing.T) {
	svc := newService(t, nil)
	req := AggregateRequest{Op: export.OpSum, Group: "region", Metric: "revenue"}

	expected := make(map[core.SelectionHash]interface{})
	for _, region := range []string{"APAC", "EU"} {
		_, err := svc.Session().SetSelection("region", dataframe.String(region))
		require.NoError(t, err)
		result, err := svc.Aggregate(req)
		require.NoError(t, err)
		expected[result.SelectionHash] = result.Data
	}
	require.Len(t, expected, 2)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			region := []string{"APAC", "EU"}[i%2]
			_, _ = svc.Session().SetSelection("region", dataframe.String(region))
		}
	}()

	for i := 0; i < 200; i++ {
		result, err := svc.Aggregate(req)
		require.NoError(t, err)
		want, ok := expected[result.SelectionHash]
		require.True(t, ok)
		assert.Equal(t, want, result.Data)
	}
	close(done)
	wg.Wait()
}

func TestBuildExportPivotIsSparse(t *testing.T) {
	svc := newService(t, nil)

	exp, err := svc.BuildExport(AggregateRequest{Op: export.OpPivot, Group: "dosageForm", Column: "route", Metric: "revenue"})
	require.NoError(t, err)

	assert.Equal(t, "dosageForm x route", exp.GroupBy)
	assert.Len(t, exp.Rows, 4)

	cell, ok := exp.Cell("Injection", "SC")
	require.True(t, ok)
	assert.InDelta(t, 11400, cell.Value, 1e-9)

	_, ok = exp.Cell("Capsule", "IV")
	assert.False(t, ok)
}

func TestExportWritesSelectionToSink(t *testing.T) {
	sink := new(mockSink)
	svc := newService(t, map[string]ports.AggregationSink{"xlsx": sink})

	_, err := svc.Session().SetSelection("region", dataframe.String("EU"))
	require.NoError(t, err)

	sink.On("Write", mock.Anything, mock.MatchedBy(func(e *export.Export) bool {
		return e.Op == export.OpSum &&
			len(e.Rows) == 2 &&
			assert.ObjectsAreEqual(map[string][]string{"region": {"EU"}}, e.Selection)
	})).Return("exports/sum_country_revenue.xlsx", nil)

	result, err := svc.Export(context.Background(),
		AggregateRequest{Op: export.OpSum, Group: "country", Metric: "revenue"}, "XLSX")
	require.NoError(t, err)

	assert.Equal(t, "xlsx", result.Format)
	assert.Equal(t, "exports/sum_country_revenue.xlsx", result.Location)
	assert.Equal(t, 2, result.Rows)
	assert.NotEmpty(t, result.ID.String())
	sink.AssertExpectations(t)
}

func TestExportUnknownFormat(t *testing.T) {
	svc := newService(t, map[string]ports.AggregationSink{})

	_, err := svc.Export(context.Background(), AggregateRequest{Op: export.OpSum, Group: "region", Metric: "revenue"}, "pdf")
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnsupported, errors.GetCode(err))
}

func TestExportSinkFailure(t *testing.T) {
	sink := new(mockSink)
	sink.On("Write", mock.Anything, mock.Anything).Return("", stderrors.New("disk full"))
	svc := newService(t, map[string]ports.AggregationSink{"csv": sink})

	_, err := svc.Export(context.Background(), AggregateRequest{Op: export.OpSum, Group: "region", Metric: "revenue"}, "csv")
	require.Error(t, err)
	assert.Equal(t, errors.CodeExportFailed, errors.GetCode(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestWeightSpecFunc(t *testing.T) {
	rec := dataframe.Record{"year": dataframe.Int(2022), "units": dataframe.Number(50)}

	tests := []struct {
		name   string
		weight WeightSpec
		want   float64
		fields []string
	}{
		{"default constant", WeightSpec{}, 1, nil},
		{"constant", WeightSpec{Kind: "constant", Value: 3}, 3, nil},
		{"field", WeightSpec{Kind: "field", Field: "units"}, 50, []string{"units"}},
		{"scaled", WeightSpec{Kind: "scaled", Field: "units", Divisor: 10}, 5, []string{"units"}},
		{"recency", WeightSpec{Kind: "recency", BaseYear: 2020, Step: 0.5}, 2, []string{"year"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, fields, err := tt.weight.Func()
			require.NoError(t, err)
			assert.Equal(t, tt.fields, fields)
			assert.InDelta(t, tt.want, fn(rec), 1e-9)
		})
	}

	_, _, err := WeightSpec{Kind: "scaled", Field: "units"}.Func()
	assert.Error(t, err)
}

func TestRenderSelection(t *testing.T) {
	sel := facet.NewSelection().
		With("region", dataframe.String("EU")).
		With("year", dataframe.Int(2021), dataframe.Int(2022))

	assert.Equal(t, map[string][]string{
		"region": {"EU"},
		"year":   {"2021", "2022"},
	}, RenderSelection(sel))
}
