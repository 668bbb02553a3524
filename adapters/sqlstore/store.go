// Package sqlstore reads dataframes from SQL tables and saves aggregation
// exports. It speaks postgres through lib/pq and sqlite through the pure Go
// modernc driver.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"marketlens/domain/core"
	"marketlens/domain/dataframe"
	"marketlens/domain/export"
	"marketlens/internal"
	"marketlens/internal/migration"
)

// Store wraps a database holding source tables and exports
type Store struct {
	db     *sqlx.DB
	logger *internal.Logger
}

// Open connects to driver ("postgres" or "sqlite") at url
func Open(ctx context.Context, driver, url string, logger *internal.Logger) (*Store, error) {
	db, err := sqlx.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		// one connection: sqlite serializes writers and :memory: is per connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	return NewStore(db, logger), nil
}

// NewStore wraps an open connection
func NewStore(db *sqlx.DB, logger *internal.Logger) *Store {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Store{db: db, logger: logger}
}

// DB exposes the underlying connection
func (s *Store) DB() *sqlx.DB { return s.db }

// Close closes the connection
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the export tables when missing
func (s *Store) Migrate(ctx context.Context) error {
	runner := migration.NewRunner()
	if err := runner.Run(ctx, s.db); err != nil {
		return err
	}
	s.logger.Debug("[Store] migrations at version %s", runner.Version())
	return nil
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// LoadFrame reads every row of table and coerces it to schema. A nil schema
// is inferred from the column names and values.
func (s *Store) LoadFrame(ctx context.Context, table string, schema *dataframe.Schema) (*dataframe.Dataframe, error) {
	if !identifier.MatchString(table) {
		return nil, core.NewSelectionError("table", fmt.Sprintf("%q is not a valid table name", table))
	}

	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	var raw []map[string]string
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			row[col] = render(values[i])
		}
		raw = append(raw, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}

	if schema == nil {
		schema = dataframe.InferSchema(columns, raw)
	}
	df, bad := dataframe.Build(schema, raw)
	for _, cellErr := range bad {
		s.logger.Warn("[Store] %s %v", table, cellErr)
	}
	s.logger.Info("[Store] loaded %d rows from %s", df.Len(), table)
	return df, nil
}

// render turns a driver value into the raw cell text schema coercion reads
func render(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// TableProvider adapts one table to ports.FrameProvider
type TableProvider struct {
	store  *Store
	table  string
	schema *dataframe.Schema
}

// Table returns a provider reading table with schema (nil to infer)
func (s *Store) Table(table string, schema *dataframe.Schema) *TableProvider {
	return &TableProvider{store: s, table: table, schema: schema}
}

// LoadFrame implements ports.FrameProvider
func (p *TableProvider) LoadFrame(ctx context.Context) (*dataframe.Dataframe, error) {
	return p.store.LoadFrame(ctx, p.table, p.schema)
}

type exportRecord struct {
	ID            string `db:"id"`
	SessionID     string `db:"session_id"`
	Op            string `db:"op"`
	GroupBy       string `db:"group_by"`
	Metric        string `db:"metric"`
	Selection     string `db:"selection"`
	SelectionHash string `db:"selection_hash"`
	CreatedAt     string `db:"created_at"`
}

// Write saves exp and its rows in one transaction and returns its id.
// It implements ports.AggregationSink.
func (s *Store) Write(ctx context.Context, exp *export.Export) (string, error) {
	selectionJSON, err := json.Marshal(exp.Selection)
	if err != nil {
		return "", fmt.Errorf("failed to marshal selection: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO aggregation_exports (
		id, session_id, op, group_by, metric, selection, selection_hash, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		exp.ID.String(), exp.SessionID.String(), string(exp.Op), exp.GroupBy, exp.Metric,
		string(selectionJSON), exp.SelectionHash.String(), exp.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save export: %w", err)
	}

	insertRow := tx.Rebind(`INSERT INTO aggregation_rows (
		export_id, row_index, group_key, col_key, value, available
	) VALUES (?, ?, ?, ?, ?, ?)`)
	for _, row := range exp.Rows {
		if _, err := tx.ExecContext(ctx, insertRow,
			exp.ID.String(), row.Position, row.Key, row.Column, row.Value, row.Available,
		); err != nil {
			return "", fmt.Errorf("failed to save export row %d: %w", row.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit export: %w", err)
	}
	s.logger.Info("[Store] export %s saved (%d rows)", exp.ID.String(), len(exp.Rows))
	return exp.ID.String(), nil
}

// GetExport loads an export with its rows
func (s *Store) GetExport(ctx context.Context, id string) (*export.Export, error) {
	var rec exportRecord
	err := s.db.GetContext(ctx, &rec, s.db.Rebind(`SELECT
		id, session_id, op, group_by, metric, selection, selection_hash, created_at
	FROM aggregation_exports WHERE id = ?`), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("export", id)
		}
		return nil, fmt.Errorf("failed to get export: %w", err)
	}

	exp, err := rec.toExport()
	if err != nil {
		return nil, err
	}

	err = s.db.SelectContext(ctx, &exp.Rows, s.db.Rebind(`SELECT
		row_index, group_key, col_key, value, available
	FROM aggregation_rows WHERE export_id = ? ORDER BY row_index`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get export rows: %w", err)
	}
	return exp, nil
}

// ListExports returns the most recent exports without their rows
func (s *Store) ListExports(ctx context.Context, limit int) ([]*export.Export, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []exportRecord
	err := s.db.SelectContext(ctx, &recs, s.db.Rebind(`SELECT
		id, session_id, op, group_by, metric, selection, selection_hash, created_at
	FROM aggregation_exports ORDER BY created_at DESC, id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}

	out := make([]*export.Export, 0, len(recs))
	for _, rec := range recs {
		exp, err := rec.toExport()
		if err != nil {
			return nil, err
		}
		out = append(out, exp)
	}
	return out, nil
}

func (r exportRecord) toExport() (*export.Export, error) {
	exp := &export.Export{
		ID:            core.ExportID(r.ID),
		SessionID:     core.SessionID(r.SessionID),
		Op:            export.Op(r.Op),
		GroupBy:       r.GroupBy,
		Metric:        r.Metric,
		SelectionHash: core.SelectionHash(r.SelectionHash),
	}
	if err := json.Unmarshal([]byte(r.Selection), &exp.Selection); err != nil {
		return nil, fmt.Errorf("failed to unmarshal selection of export %s: %w", r.ID, err)
	}
	created, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at of export %s: %w", r.ID, err)
	}
	exp.CreatedAt = created
	return exp, nil
}
