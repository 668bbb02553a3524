package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"marketlens/domain/core"
	"marketlens/domain/dataframe"
	"marketlens/internal"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
	schema   *dataframe.Schema
	logger   *internal.Logger
}

// ReaderOption configures a DataReader
type ReaderOption func(*DataReader)

// WithSheet reads the named sheet instead of the first one
func WithSheet(sheet string) ReaderOption {
	return func(r *DataReader) { r.sheet = sheet }
}

// WithSchema coerces cells to schema. Without one the schema is inferred
// from the headers and cells.
func WithSchema(schema *dataframe.Schema) ReaderOption {
	return func(r *DataReader) { r.schema = schema }
}

// WithLogger sets the reader logger
func WithLogger(logger *internal.Logger) ReaderOption {
	return func(r *DataReader) { r.logger = logger }
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string, opts ...ReaderOption) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	r := &DataReader{filePath: filePath, fileType: fileType, logger: internal.DefaultLogger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadFrame reads the file and coerces it into a dataframe. Empty cells stay
// missing; cells that do not parse as their field's kind are logged and left
// missing.
func (r *DataReader) LoadFrame(ctx context.Context) (*dataframe.Dataframe, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	schema := r.schema
	if schema == nil {
		schema = dataframe.InferSchema(data.Headers, data.Maps())
		r.logger.Info("[DataReader] inferred schema: facets=%v metrics=%v", schema.Facets(), schema.Metrics())
	}

	present := make(map[string]bool, len(data.Headers))
	for _, h := range data.Headers {
		present[h] = true
		if !schema.Has(h) {
			r.logger.Debug("[DataReader] column %q is not part of schema %s, skipping", h, schema.Shape)
		}
	}
	for _, name := range schema.Names() {
		if !present[name] {
			r.logger.Warn("[DataReader] schema field %q has no column in %s", name, r.filePath)
		}
	}

	df, bad := dataframe.Build(schema, data.Maps())
	for _, cellErr := range bad {
		// +2: one for the header row, one for 1-based sheet rows
		r.logger.Warn("[DataReader] row %d: %v", cellErr.Row+2, cellErr.Err)
	}
	if len(bad) > 0 {
		r.logger.Warn("[DataReader] %d cells could not be coerced and were left missing", len(bad))
	}
	return df, nil
}

// ReadData reads data from Excel or CSV files into structured format
func (r *DataReader) ReadData() (*ExcelData, error) {
	r.logger.Debug("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, core.NewNotFoundError(strings.ToUpper(r.fileType)+" file", r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, core.NewUnsupportedFormatError(r.fileType)
	}
}

// readExcelData reads the configured sheet, or the first one
func (r *DataReader) readExcelData() (*ExcelData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", core.ErrEmptyFrame)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	r.logger.Debug("[DataReader] %s read in %.2fms (%d rows)", sheet, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: Excel file must have at least a header row and one data row", core.ErrEmptyFrame)
	}

	return r.processRows(rows)
}

// readCSVData reads CSV data into structured format
func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	r.logger.Debug("[DataReader] CSV file read in %.2fms (%d rows)", float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: CSV file must have at least a header row and one data row", core.ErrEmptyFrame)
	}

	return r.processRows(rows)
}

// processRows converts raw string rows into ExcelData format
func (r *DataReader) processRows(rows [][]string) (*ExcelData, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	}

	var dataRows []RawRowData
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		rowData := make(RawRowData)
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	r.logger.Info("[DataReader] %s file processed (%d columns, %d rows)",
		strings.ToUpper(r.fileType), len(headers), len(dataRows))

	return &ExcelData{
		Headers: headers,
		Rows:    dataRows,
	}, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
