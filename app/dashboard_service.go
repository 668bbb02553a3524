package app

import (
	"context"
	"fmt"
	"strings"

	"marketlens/domain/core"
	"marketlens/domain/export"
	"marketlens/internal"
	"marketlens/internal/errors"
	"marketlens/internal/facet"
	"marketlens/internal/session"
	"marketlens/ports"
)

// WeightSpec selects one of the caller supplied weight functions
type WeightSpec struct {
	Kind     string  `json:"kind"` // constant, field, scaled or recency
	Field    string  `json:"field,omitempty"`
	Divisor  float64 `json:"divisor,omitempty"`
	BaseYear int     `json:"baseYear,omitempty"`
	Step     float64 `json:"step,omitempty"`
	Value    float64 `json:"value,omitempty"`
}

// Func builds the weight function and names the fields it reads
func (w WeightSpec) Func() (facet.WeightFunc, []string, error) {
	switch strings.ToLower(w.Kind) {
	case "", "constant":
		v := w.Value
		if v == 0 {
			v = 1
		}
		return facet.ConstantWeight(v), nil, nil
	case "field":
		if w.Field == "" {
			return nil, nil, errors.InvalidInput("field weight needs a field")
		}
		return facet.FieldWeight(w.Field), []string{w.Field}, nil
	case "scaled":
		if w.Field == "" || w.Divisor == 0 {
			return nil, nil, errors.InvalidInput("scaled weight needs a field and a non-zero divisor")
		}
		return facet.ScaledWeight(w.Field, w.Divisor), []string{w.Field}, nil
	case "recency":
		if w.BaseYear == 0 {
			return nil, nil, errors.InvalidInput("recency weight needs a base year")
		}
		return facet.RecencyWeight(w.BaseYear, w.Step), []string{"year"}, nil
	default:
		return nil, nil, errors.InvalidInput(fmt.Sprintf("unknown weight kind %q", w.Kind))
	}
}

// AggregateRequest names one aggregation over the current selection
type AggregateRequest struct {
	Op        export.Op       `json:"op"`
	Group     string          `json:"group"`
	Column    string          `json:"column,omitempty"`
	Metric    string          `json:"metric"`
	N         int             `json:"n,omitempty"`
	Direction facet.Direction `json:"direction,omitempty"`
	Weight    WeightSpec      `json:"weight,omitempty"`
	FromYear  int             `json:"fromYear,omitempty"`
	ToYear    int             `json:"toYear,omitempty"`
}

// AggregateResult is an aggregation and the selection it was computed under
type AggregateResult struct {
	Request       AggregateRequest   `json:"request"`
	Version       uint64             `json:"version"`
	SelectionHash core.SelectionHash `json:"selectionHash"`
	Data          interface{}        `json:"data"`
}

// ExportResult says where an export went
type ExportResult struct {
	ID       core.ExportID `json:"id"`
	Format   string        `json:"format"`
	Location string        `json:"location"`
	Rows     int           `json:"rows"`
}

// DashboardService is the facade the API and CLI drive: it turns requests
// into session queries and hands exports to the configured sinks.
type DashboardService struct {
	session     *session.Session
	sinks       map[string]ports.AggregationSink
	weightFloor float64
	logger      *internal.Logger
}

// NewDashboardService creates a dashboard service over one session. sinks
// maps an export format (xlsx, csv, db) to its sink.
func NewDashboardService(s *session.Session, sinks map[string]ports.AggregationSink, weightFloor float64, logger *internal.Logger) *DashboardService {
	if weightFloor <= 0 {
		weightFloor = facet.DefaultWeightFloor
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DashboardService{session: s, sinks: sinks, weightFloor: weightFloor, logger: logger}
}

// Session returns the service's session
func (d *DashboardService) Session() *session.Session { return d.session }

// Formats lists the export formats with a sink
func (d *DashboardService) Formats() []string {
	out := make([]string, 0, len(d.sinks))
	for f := range d.sinks {
		out = append(out, f)
	}
	return out
}

// Aggregate runs req against the current selection. The reported version
// and selection hash are those of the snapshot the data was computed from.
func (d *DashboardService) Aggregate(req AggregateRequest) (*AggregateResult, error) {
	result, _, err := d.aggregateAt(d.session.At(), req)
	return result, err
}

func (d *DashboardService) aggregateAt(view *session.View, req AggregateRequest) (*AggregateResult, session.Snapshot, error) {
	snap := view.Snapshot()
	data, err := d.run(view, req)
	if err != nil {
		return nil, snap, err
	}
	return &AggregateResult{
		Request:       req,
		Version:       snap.Version,
		SelectionHash: snap.Selection.Hash(),
		Data:          data,
	}, snap, nil
}

func (d *DashboardService) run(s *session.View, req AggregateRequest) (interface{}, error) {
	if req.Group == "" {
		return nil, errors.InvalidInput("group facet is required")
	}
	if req.Metric == "" && req.Op != export.OpCount {
		return nil, errors.InvalidInput("metric is required")
	}

	switch req.Op {
	case export.OpSum:
		return s.SumBy(req.Group, req.Metric)
	case export.OpCount:
		return s.CountBy(req.Group)
	case export.OpAverage:
		return s.AverageBy(req.Group, req.Metric)
	case export.OpPercentage:
		return s.PercentageBy(req.Group, req.Metric)
	case export.OpWeighted:
		weight, fields, err := req.Weight.Func()
		if err != nil {
			return nil, err
		}
		return s.WeightedAverageBy(req.Group, req.Metric, weight, fields, facet.WithWeightFloor(d.weightFloor))
	case export.OpTop:
		n := req.N
		if n == 0 {
			n = 10
		}
		dir := req.Direction
		if dir == "" {
			dir = facet.Descending
		}
		return s.TopN(req.Group, req.Metric, n, dir)
	case export.OpPivot:
		if req.Column == "" {
			return nil, errors.InvalidInput("pivot needs a column facet")
		}
		return s.Pivot(req.Group, req.Column, req.Metric)
	case export.OpGrowth:
		if req.FromYear == 0 || req.ToYear <= req.FromYear {
			return nil, errors.InvalidInput("cagr needs from < to years")
		}
		return s.GrowthBy(req.Group, req.Metric, req.FromYear, req.ToYear)
	default:
		return nil, errors.InvalidInput(fmt.Sprintf("unknown aggregation %q", req.Op))
	}
}

// BuildExport computes req and lays the result out as export rows
func (d *DashboardService) BuildExport(req AggregateRequest) (*export.Export, error) {
	result, snap, err := d.aggregateAt(d.session.At(), req)
	if err != nil {
		return nil, err
	}

	groupBy := req.Group
	if req.Op == export.OpPivot {
		groupBy = req.Group + " x " + req.Column
	}
	exp := export.New(d.session.ID, req.Op, groupBy, req.Metric).
		WithSelection(RenderSelection(snap.Selection))

	column := req.Metric
	if req.Op == export.OpCount {
		column = "count"
	}

	switch data := result.Data.(type) {
	case facet.Aggregation:
		for _, key := range data.Keys() {
			exp.Add(key, column, data[key], true)
		}
	case facet.Averages:
		for _, key := range data.Keys() {
			m := data[key]
			exp.Add(key, column, m.Or(0), m.Available)
		}
	case facet.Ranked:
		for _, e := range data {
			exp.Add(e.Key, column, e.Value, true)
		}
	case facet.PivotTable:
		for _, row := range data.Rows() {
			for _, col := range data.Cols() {
				if data.Has(row, col) {
					exp.Add(row, col, data.Get(row, col), true)
				}
			}
		}
	default:
		return nil, errors.InternalError(fmt.Sprintf("cannot export %T", result.Data))
	}
	return exp, nil
}

// Export computes req and writes it to the sink registered for format
func (d *DashboardService) Export(ctx context.Context, req AggregateRequest, format string) (*ExportResult, error) {
	format = strings.ToLower(format)
	sink, ok := d.sinks[format]
	if !ok {
		return nil, errors.Unsupported(format)
	}

	exp, err := d.BuildExport(req)
	if err != nil {
		return nil, err
	}
	location, err := sink.Write(ctx, exp)
	if err != nil {
		return nil, errors.ExportFailed(format, err)
	}
	d.logger.Info("[Dashboard] exported %s (%d rows) to %s", exp.Name(), len(exp.Rows), location)
	return &ExportResult{ID: exp.ID, Format: format, Location: location, Rows: len(exp.Rows)}, nil
}

// RenderSelection turns a selection into facet -> rendered values
func RenderSelection(sel facet.Selection) map[string][]string {
	out := make(map[string][]string)
	for facetName, values := range sel.Map() {
		for _, v := range values {
			out[facetName] = append(out[facetName], v.String())
		}
	}
	return out
}
