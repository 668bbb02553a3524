package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"marketlens/domain/core"
	"marketlens/domain/export"
	"marketlens/internal"
)

// Supported export formats
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// Writer saves exports as spreadsheets under a directory
type Writer struct {
	dir    string
	format string
	logger *internal.Logger
}

// NewWriter creates a writer for format (xlsx or csv) under dir
func NewWriter(dir, format string, logger *internal.Logger) (*Writer, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format != FormatXLSX && format != FormatCSV {
		return nil, core.NewUnsupportedFormatError(format)
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Writer{dir: dir, format: format, logger: logger}, nil
}

// Format returns the file format the writer produces
func (w *Writer) Format() string { return w.format }

// Write lays the export out as a grid (one row per key, one column per
// export column) and returns the file path. Unavailable values are left
// blank.
func (w *Writer) Write(ctx context.Context, exp *export.Export) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("%s_%s.%s", exp.Name(), shortID(exp), w.format))
	grid := Grid(exp)

	var err error
	switch w.format {
	case FormatCSV:
		err = writeCSV(path, grid)
	default:
		err = writeXLSX(path, exp, grid)
	}
	if err != nil {
		return "", err
	}
	w.logger.Info("[Writer] export %s written to %s (%d rows)", exp.ID.String(), path, len(grid)-1)
	return path, nil
}

func shortID(exp *export.Export) string {
	id := exp.ID.String()
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return id
}

// Grid renders an export as a header row followed by one row per key
func Grid(exp *export.Export) [][]string {
	cols := exp.Columns()
	header := append([]string{exp.GroupBy}, cols...)
	grid := [][]string{header}
	for _, key := range exp.Keys() {
		line := make([]string, 0, len(cols)+1)
		line = append(line, key)
		for _, col := range cols {
			cell, ok := exp.Cell(key, col)
			if !ok || !cell.Available {
				line = append(line, "")
				continue
			}
			line = append(line, strconv.FormatFloat(cell.Value, 'f', -1, 64))
		}
		grid = append(grid, line)
	}
	return grid
}

func writeCSV(path string, grid [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.WriteAll(grid); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}
	return nil
}

func writeXLSX(path string, exp *export.Export, grid [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := string(exp.Op)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	for i, line := range grid {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(line))
		for j, v := range line {
			// numeric cells stay numeric so spreadsheets can chart them
			if i > 0 && j > 0 && v != "" {
				if num, err := strconv.ParseFloat(v, 64); err == nil {
					values[j] = num
					continue
				}
			}
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if _, err := f.NewSheet("selection"); err != nil {
		return fmt.Errorf("failed to add selection sheet: %w", err)
	}
	facets := make([]string, 0, len(exp.Selection))
	for facet := range exp.Selection {
		facets = append(facets, facet)
	}
	sort.Strings(facets)
	rows := [][]interface{}{{"facet", "values"}}
	for _, facet := range facets {
		rows = append(rows, []interface{}{facet, strings.Join(exp.Selection[facet], ", ")})
	}
	rows = append(rows, []interface{}{"hash", exp.SelectionHash.String()})
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("selection", cell, &row); err != nil {
			return fmt.Errorf("failed to write selection: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
