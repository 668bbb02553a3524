package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"marketlens/domain/core"
	"marketlens/domain/dataframe"
)

// ImportFrame creates table from df's schema and inserts every row. Missing
// values are stored as NULL. It fails if the table already exists.
func (s *Store) ImportFrame(ctx context.Context, table string, df *dataframe.Dataframe) (int, error) {
	if !identifier.MatchString(table) {
		return 0, core.NewSelectionError("table", fmt.Sprintf("%q is not a valid table name", table))
	}

	fields := df.Schema().Fields()
	columns := make([]string, len(fields))
	defs := make([]string, len(fields))
	marks := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = quote(f.Name)
		sqlType := "TEXT"
		if f.Kind == dataframe.KindNumber {
			sqlType = "DOUBLE PRECISION"
		}
		defs[i] = columns[i] + " " + sqlType
		marks[i] = "?"
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", table, err)
	}

	insert := tx.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(marks, ", ")))
	for i, rec := range df.Rows() {
		args := make([]interface{}, len(fields))
		for j, f := range fields {
			args[j] = cell(rec, f.Name)
		}
		if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
			return 0, fmt.Errorf("failed to insert row %d into %s: %w", i, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s: %w", table, err)
	}
	s.logger.Info("[Store] imported %d rows into %s", df.Len(), table)
	return df.Len(), nil
}

// quote keeps mixed-case column names such as dosageForm intact in postgres
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func cell(rec dataframe.Record, field string) interface{} {
	v, ok := rec.Get(field)
	if !ok {
		return nil
	}
	if f, isNum := v.Float(); isNum {
		return f
	}
	return v.String()
}
