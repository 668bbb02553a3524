// Package export describes one saved aggregation result: what was computed,
// under which selection, and the resulting cells.
package export

import (
	"fmt"
	"strings"
	"time"

	"marketlens/domain/core"
)

// Op names the aggregation an export holds
type Op string

const (
	OpSum        Op = "sum"
	OpCount      Op = "count"
	OpAverage    Op = "average"
	OpWeighted   Op = "weighted"
	OpPercentage Op = "percentage"
	OpTop        Op = "top"
	OpPivot      Op = "pivot"
	OpGrowth     Op = "cagr"
)

var ops = []Op{OpSum, OpCount, OpAverage, OpWeighted, OpPercentage, OpTop, OpPivot, OpGrowth}

// ParseOp validates an op name
func ParseOp(s string) (Op, error) {
	for _, op := range ops {
		if strings.EqualFold(s, string(op)) {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: aggregation %q", core.ErrUnsupportedFormat, s)
}

// Row is one cell of an export. Column is the metric name for one
// dimensional results and the column facet value for pivots.
type Row struct {
	Position  int     `json:"position" db:"row_index"`
	Key       string  `json:"key" db:"group_key"`
	Column    string  `json:"column" db:"col_key"`
	Value     float64 `json:"value" db:"value"`
	Available bool    `json:"available" db:"available"`
}

// Export is a saved aggregation run
type Export struct {
	ID            core.ExportID       `json:"id"`
	SessionID     core.SessionID      `json:"sessionId"`
	Op            Op                  `json:"op"`
	GroupBy       string              `json:"groupBy"`
	Metric        string              `json:"metric"`
	Selection     map[string][]string `json:"selection"`
	SelectionHash core.SelectionHash  `json:"selectionHash"`
	Rows          []Row               `json:"rows"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// New starts an export with a fresh id
func New(session core.SessionID, op Op, groupBy, metric string) *Export {
	return &Export{
		ID:        core.NewExportID(),
		SessionID: session,
		Op:        op,
		GroupBy:   groupBy,
		Metric:    metric,
		Selection: map[string][]string{},
		CreatedAt: time.Now().UTC(),
	}
}

// WithSelection records the rendered selection the export was computed under
func (e *Export) WithSelection(selection map[string][]string) *Export {
	e.Selection = selection
	e.SelectionHash = core.ComputeSelectionHash(selection)
	return e
}

// Add appends a cell, numbering it in insertion order
func (e *Export) Add(key, column string, value float64, available bool) {
	e.Rows = append(e.Rows, Row{
		Position:  len(e.Rows),
		Key:       key,
		Column:    column,
		Value:     value,
		Available: available,
	})
}

// Keys lists the distinct row keys in first-seen order
func (e *Export) Keys() []string {
	return e.distinct(func(r Row) string { return r.Key })
}

// Columns lists the distinct columns in first-seen order
func (e *Export) Columns() []string {
	return e.distinct(func(r Row) string { return r.Column })
}

func (e *Export) distinct(pick func(Row) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range e.Rows {
		v := pick(r)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Cell finds the row for (key, column)
func (e *Export) Cell(key, column string) (Row, bool) {
	for _, r := range e.Rows {
		if r.Key == key && r.Column == column {
			return r, true
		}
	}
	return Row{}, false
}

// Name is a file-friendly label such as "sum_revenue_by_region"
func (e *Export) Name() string {
	name := string(e.Op)
	if e.Metric != "" {
		name += "_" + e.Metric
	}
	if e.GroupBy != "" {
		name += "_by_" + e.GroupBy
	}
	return strings.NewReplacer(" ", "", "/", "_", "|", "_").Replace(name)
}
