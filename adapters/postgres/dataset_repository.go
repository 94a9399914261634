package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tabprep/domain/core"
	"tabprep/domain/dataset"
	"tabprep/internal"
	"tabprep/ports"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// lock_not_available, raised by FOR UPDATE NOWAIT
const lockNotAvailable = "55P03"

const datasetColumns = `id, root_id, COALESCE(parent_id, '') AS parent_id, filename, format, path,
	version, head_version, status, row_count, column_count, created_at, updated_at`

// datasetStore implements ports.DatasetStore with records in postgres and
// table content in files
type datasetStore struct {
	db     *sqlx.DB
	files  ports.TableStorage
	logger *internal.Logger
}

// NewDatasetStore creates a postgres-backed dataset store
func NewDatasetStore(db *sqlx.DB, files ports.TableStorage) ports.DatasetStore {
	return &datasetStore{db: db, files: files, logger: internal.DefaultLogger}
}

func nullable(id core.ID) sql.NullString {
	return sql.NullString{String: id.String(), Valid: id != ""}
}

func (s *datasetStore) getRecord(ctx context.Context, q sqlx.QueryerContext, id core.ID, forUpdate bool) (*dataset.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE NOWAIT`
	}

	var ds dataset.Dataset
	if err := sqlx.GetContext(ctx, q, &ds, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrDatasetNotFound, id)
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == lockNotAvailable {
			return nil, fmt.Errorf("%w: lineage %s", core.ErrConflictingWrite, id)
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return &ds, nil
}

// Get retrieves a dataset record and reads its table file
func (s *datasetStore) Get(ctx context.Context, id core.ID) (*dataset.Dataset, error) {
	ds, err := s.getRecord(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}

	table, err := s.files.Read(ctx, ds.Path, ds.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to read content of %s: %w", id, err)
	}
	ds.Table = table
	return ds, nil
}

// List returns all dataset records, oldest first
func (s *datasetStore) List(ctx context.Context) ([]*dataset.Dataset, error) {
	var datasets []*dataset.Dataset
	query := `SELECT ` + datasetColumns + ` FROM datasets ORDER BY created_at, id`
	if err := s.db.SelectContext(ctx, &datasets, query); err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	return datasets, nil
}

// Create inserts a new root dataset. Its content is expected at ds.Path.
func (s *datasetStore) Create(ctx context.Context, ds *dataset.Dataset) error {
	return insertDataset(ctx, s.db, ds)
}

func insertDataset(ctx context.Context, e sqlx.ExecerContext, ds *dataset.Dataset) error {
	query := `INSERT INTO datasets (
		id, root_id, parent_id, filename, format, path, version, head_version,
		status, row_count, column_count, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := e.ExecContext(ctx, query,
		ds.ID, ds.Lineage(), nullable(ds.ParentID), ds.Filename, ds.Format, ds.Path, ds.Version, ds.HeadVersion,
		ds.Status, ds.RowCount, ds.ColumnCount, ds.CreatedAt, ds.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}
	return nil
}

func updateDataset(ctx context.Context, e sqlx.ExecerContext, ds *dataset.Dataset) error {
	query := `UPDATE datasets SET
		filename = $2, format = $3, path = $4, version = $5, head_version = $6,
		status = $7, row_count = $8, column_count = $9, updated_at = $10
	WHERE id = $1`

	result, err := e.ExecContext(ctx, query,
		ds.ID, ds.Filename, ds.Format, ds.Path, ds.Version, ds.HeadVersion,
		ds.Status, ds.RowCount, ds.ColumnCount, ds.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update dataset: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", core.ErrDatasetNotFound, ds.ID)
	}
	return nil
}

// BeginWrite opens a transaction holding the lineage root row lock
func (s *datasetStore) BeginWrite(ctx context.Context, id core.ID) (ports.DatasetWriter, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	target, err := s.getRecord(ctx, tx, id, false)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	root, err := s.getRecord(ctx, tx, target.Lineage(), true)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if target.ID == root.ID {
		target = root
	}

	return &txWriter{store: s, ctx: ctx, tx: tx, root: root, target: target}, nil
}

// txWriter writes records inside the transaction and stages files until
// Commit publishes them
type txWriter struct {
	store  *datasetStore
	ctx    context.Context
	tx     *sqlx.Tx
	root   *dataset.Dataset
	target *dataset.Dataset
	staged []ports.StagedWrite
	done   bool
}

func (w *txWriter) Root() *dataset.Dataset {
	root := *w.root
	return &root
}

func (w *txWriter) Target() *dataset.Dataset {
	target := *w.target
	return &target
}

func (w *txWriter) stage(ctx context.Context, ds *dataset.Dataset) error {
	if err := ds.Table.Validate(); err != nil {
		return fmt.Errorf("invalid dataset %s: %w", ds.ID, err)
	}
	staged, err := w.store.files.Stage(ctx, ds.Path, ds.Format, ds.Table)
	if err != nil {
		return err
	}
	w.staged = append(w.staged, staged)
	return nil
}

func (w *txWriter) SaveVersion(ctx context.Context, ds *dataset.Dataset) error {
	if err := w.stage(ctx, ds); err != nil {
		return err
	}
	return insertDataset(ctx, w.tx, ds)
}

func (w *txWriter) ReplaceContent(ctx context.Context, ds *dataset.Dataset) error {
	if err := w.stage(ctx, ds); err != nil {
		return err
	}
	return updateDataset(ctx, w.tx, ds)
}

func (w *txWriter) UpdateRecord(ctx context.Context, ds *dataset.Dataset) error {
	return updateDataset(ctx, w.tx, ds)
}

// Commit publishes staged files, then commits the transaction. A failed
// commit puts the previous files back.
func (w *txWriter) Commit() error {
	if w.done {
		return fmt.Errorf("write already finished")
	}
	w.done = true

	for _, staged := range w.staged {
		if err := staged.Publish(); err != nil {
			w.rollbackFiles()
			w.tx.Rollback()
			return fmt.Errorf("failed to publish %s: %w", staged.Path(), err)
		}
	}

	if err := w.tx.Commit(); err != nil {
		w.rollbackFiles()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, staged := range w.staged {
		if err := staged.Finalize(); err != nil {
			w.store.logger.Warn("postgres store: failed to clean up after %s: %v", staged.Path(), err)
		}
	}
	w.store.logger.Debug("postgres store: committed lineage %s at %s", w.root.ID, time.Now().UTC().Format(time.RFC3339))
	return nil
}

// Rollback aborts the transaction and discards staged files; a no-op once committed
func (w *txWriter) Rollback() error {
	if w.done {
		return nil
	}
	w.done = true

	w.rollbackFiles()
	if err := w.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// rollbackFiles restores published files and drops unpublished temp files
func (w *txWriter) rollbackFiles() {
	for _, s := range w.staged {
		if err := s.Rollback(); err != nil {
			w.store.logger.Error("postgres store: failed to restore %s: %v", s.Path(), err)
		}
	}
}
