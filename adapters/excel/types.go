package excel

// RawRowData represents a row of raw spreadsheet data as header -> cell
type RawRowData map[string]string

// ExcelData represents the complete spreadsheet before schema coercion
type ExcelData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// Maps returns the rows as plain maps, the form schema inference reads
func (d *ExcelData) Maps() []map[string]string {
	out := make([]map[string]string, len(d.Rows))
	for i, row := range d.Rows {
		out[i] = row
	}
	return out
}
