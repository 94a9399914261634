package migration

import (
	"context"

	"tabprep/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
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
	if err := r.createDatasetsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create datasets table")
	}

	if err := r.addLineageColumns(ctx, db); err != nil {
		return errors.Wrap(err, "failed to add lineage columns")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createDatasetsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS datasets (
			id VARCHAR(255) PRIMARY KEY,
			filename VARCHAR(500) NOT NULL,
			format VARCHAR(10) NOT NULL,
			path TEXT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'uploaded',
			row_count INTEGER NOT NULL DEFAULT 0,
			column_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

// addLineageColumns adds version tracking to tables created before lineage existed
func (r *MigrationRunner) addLineageColumns(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'datasets' AND column_name = 'root_id'
			) THEN
				ALTER TABLE datasets ADD COLUMN root_id VARCHAR(255);
				UPDATE datasets SET root_id = id WHERE root_id IS NULL;
				ALTER TABLE datasets ALTER COLUMN root_id SET NOT NULL;
			END IF;

			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'datasets' AND column_name = 'parent_id'
			) THEN
				ALTER TABLE datasets ADD COLUMN parent_id VARCHAR(255);
			END IF;

			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'datasets' AND column_name = 'version'
			) THEN
				ALTER TABLE datasets ADD COLUMN version INTEGER NOT NULL DEFAULT 1;
			END IF;

			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'datasets' AND column_name = 'head_version'
			) THEN
				ALTER TABLE datasets ADD COLUMN head_version INTEGER NOT NULL DEFAULT 1;
			END IF;
		END $$;
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_datasets_root_id ON datasets(root_id)`,
		`CREATE INDEX IF NOT EXISTS idx_datasets_status ON datasets(status)`,
		`CREATE INDEX IF NOT EXISTS idx_datasets_created_at ON datasets(created_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_datasets_root_version ON datasets(root_id, version) WHERE id <> root_id`,
	}

	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}
