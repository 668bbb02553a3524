package migration

import (
	"context"

	"github.com/jmoiron/sqlx"

	"marketlens/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the export tables. Statements stick to types both
// postgres and sqlite accept so one runner serves both drivers.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createExportsTable(ctx, db); err != nil {
		return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to create aggregation_exports table"))
	}

	if err := r.createRowsTable(ctx, db); err != nil {
		return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to create aggregation_rows table"))
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to create indexes"))
	}

	return nil
}

func (r *MigrationRunner) createExportsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS aggregation_exports (
			id VARCHAR(64) PRIMARY KEY,
			session_id VARCHAR(64) NOT NULL,
			op VARCHAR(32) NOT NULL,
			group_by TEXT NOT NULL,
			metric TEXT NOT NULL,
			selection TEXT NOT NULL,
			selection_hash VARCHAR(64) NOT NULL,
			created_at VARCHAR(40) NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createRowsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS aggregation_rows (
			export_id VARCHAR(64) NOT NULL REFERENCES aggregation_exports(id) ON DELETE CASCADE,
			row_index INTEGER NOT NULL,
			group_key TEXT NOT NULL,
			col_key TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			available BOOLEAN NOT NULL,
			PRIMARY KEY (export_id, row_index)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_aggregation_exports_session ON aggregation_exports(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_aggregation_exports_hash ON aggregation_exports(selection_hash)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
