package dataframe

import (
	"fmt"
	"sort"
)

// Record is one flat row. A field absent from the map is missing.
type Record map[string]Value

// Get returns the value for field and whether it is present
func (r Record) Get(field string) (Value, bool) {
	v, ok := r[field]
	if !ok || !v.IsValid() {
		return Value{}, false
	}
	return v, true
}

// Number returns a numeric field value. Missing or string fields report false.
func (r Record) Number(field string) (float64, bool) {
	v, ok := r.Get(field)
	if !ok {
		return 0, false
	}
	return v.Float()
}

// Dataframe is an ordered, read-only sequence of records sharing a schema.
// Order is insertion order and carries no meaning for aggregation.
type Dataframe struct {
	schema  *Schema
	records []Record
}

// New wraps records in a dataframe. The slice is owned by the dataframe
// afterwards and must not be modified by the caller.
func New(schema *Schema, records []Record) *Dataframe {
	if schema == nil {
		panic("dataframe: nil schema")
	}
	return &Dataframe{schema: schema, records: records}
}

// Schema returns the dataframe's schema
func (df *Dataframe) Schema() *Schema { return df.schema }

// Len returns the number of records
func (df *Dataframe) Len() int { return len(df.records) }

// Rows exposes the records. Callers must treat them as read-only.
func (df *Dataframe) Rows() []Record { return df.records }

// WithRows returns a dataframe with the same schema over a different row set
func (df *Dataframe) WithRows(records []Record) *Dataframe {
	return &Dataframe{schema: df.schema, records: records}
}

// Distinct returns the sorted distinct values of field across all rows
func (df *Dataframe) Distinct(field string) []Value {
	return DistinctValues(df.records, field)
}

// Validate checks every present field against the schema kinds
func (df *Dataframe) Validate() error {
	for i, rec := range df.records {
		for name, v := range rec {
			f, ok := df.schema.Field(name)
			if !ok {
				return fmt.Errorf("row %d: %w", i, df.schema.CheckField(name))
			}
			if v.IsValid() && v.Kind != f.Kind {
				return fmt.Errorf("row %d: field %s is %s, schema wants %s", i, name, v.Kind, f.Kind)
			}
		}
	}
	return nil
}

// DistinctValues collects the sorted distinct values of field over records
func DistinctValues(records []Record, field string) []Value {
	seen := make(map[Value]struct{})
	for _, rec := range records {
		if v, ok := rec.Get(field); ok {
			seen[v] = struct{}{}
		}
	}
	return SortedValues(seen)
}

// SortedValues turns a value set into a slice ordered by Compare
func SortedValues(set map[Value]struct{}) []Value {
	out := make([]Value, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return Compare(out[i], out[j]) < 0 })
	return out
}

// CellError reports a raw cell that did not coerce to its field's kind.
// Row is zero-based over the data rows.
type CellError struct {
	Row int
	Err error
}

func (e CellError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

func (e CellError) Unwrap() error { return e.Err }

// Build coerces raw rows into a dataframe. Columns the schema does not
// define are ignored, empty cells stay missing and cells that fail to coerce
// are left missing and reported.
func Build(schema *Schema, rows []map[string]string) (*Dataframe, []CellError) {
	var bad []CellError
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		rec := make(Record, len(row))
		for name, cell := range row {
			if !schema.Has(name) {
				continue
			}
			v, err := schema.Coerce(name, cell)
			if err != nil {
				bad = append(bad, CellError{Row: i, Err: err})
				continue
			}
			if v.IsValid() {
				rec[name] = v
			}
		}
		records = append(records, rec)
	}
	return New(schema, records), bad
}
