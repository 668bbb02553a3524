package facet

import (
	"encoding/json"
	"sort"

	"marketlens/domain/dataframe"
)

// PivotTable is a sparse two-key cross tabulation. Only observed
// (row, col) combinations are stored; Get reads absent cells as 0.
type PivotTable struct {
	RowFacet string
	ColFacet string
	cells    map[string]map[string]float64
}

// Pivot sums metric per (rowFacet, colFacet) pair. Records missing either
// facet are skipped; a missing metric contributes 0.
func Pivot(records []dataframe.Record, rowFacet, colFacet, metric string) PivotTable {
	p := PivotTable{RowFacet: rowFacet, ColFacet: colFacet, cells: make(map[string]map[string]float64)}
	for _, rec := range records {
		r, ok := rec.Get(rowFacet)
		if !ok {
			continue
		}
		c, ok := rec.Get(colFacet)
		if !ok {
			continue
		}
		row, ok := p.cells[r.String()]
		if !ok {
			row = make(map[string]float64)
			p.cells[r.String()] = row
		}
		v, _ := rec.Number(metric)
		row[c.String()] += v
	}
	return p
}

// Get returns the cell value, 0 when the combination was never observed
func (p PivotTable) Get(row, col string) float64 {
	return p.cells[row][col]
}

// Has reports whether the combination was observed
func (p PivotTable) Has(row, col string) bool {
	_, ok := p.cells[row][col]
	return ok
}

// Rows lists the row keys, sorted
func (p PivotTable) Rows() []string {
	rows := make([]string, 0, len(p.cells))
	for r := range p.cells {
		rows = append(rows, r)
	}
	sort.Strings(rows)
	return rows
}

// Cols lists every column key seen in any row, sorted
func (p PivotTable) Cols() []string {
	seen := make(map[string]struct{})
	for _, row := range p.cells {
		for c := range row {
			seen[c] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for c := range seen {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// CellCount is the number of stored cells
func (p PivotTable) CellCount() int {
	n := 0
	for _, row := range p.cells {
		n += len(row)
	}
	return n
}

// RowTotals sums each row across its columns
func (p PivotTable) RowTotals() Aggregation {
	out := make(Aggregation, len(p.cells))
	for r, row := range p.cells {
		for _, v := range row {
			out[r] += v
		}
	}
	return out
}

// ColTotals sums each column across the rows
func (p PivotTable) ColTotals() Aggregation {
	out := make(Aggregation)
	for _, row := range p.cells {
		for c, v := range row {
			out[c] += v
		}
	}
	return out
}

func (p PivotTable) MarshalJSON() ([]byte, error) {
	cells := p.cells
	if cells == nil {
		cells = map[string]map[string]float64{}
	}
	return json.Marshal(struct {
		RowFacet string                        `json:"rowFacet"`
		ColFacet string                        `json:"colFacet"`
		Rows     []string                      `json:"rows"`
		Cols     []string                      `json:"cols"`
		Cells    map[string]map[string]float64 `json:"cells"`
	}{p.RowFacet, p.ColFacet, p.Rows(), p.Cols(), cells})
}
