package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"tabprep/domain/core"
	"tabprep/domain/dataset"
	"tabprep/domain/preprocess"
	"tabprep/internal"
	"tabprep/ports"
)

// ProcessedPather names the file a new lineage version is written to
type ProcessedPather interface {
	ProcessedPath(root string, n int, format dataset.FileFormat) string
}

// VersionManager persists execution results according to a PersistMode.
// Version numbers come from the lineage root's HeadVersion and are only
// advanced under the store's write lock.
type VersionManager struct {
	store  ports.DatasetStore
	paths  ProcessedPather
	logger *internal.Logger
}

// NewVersionManager creates a version manager. paths may be nil, in which
// case versions are named under "processed/".
func NewVersionManager(store ports.DatasetStore, paths ProcessedPather, logger *internal.Logger) *VersionManager {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &VersionManager{store: store, paths: paths, logger: logger}
}

// Persist stores result under handle. Preview never touches the store.
func (m *VersionManager) Persist(ctx context.Context, result *preprocess.ExecutionResult, mode preprocess.PersistMode, handle dataset.Handle) (*preprocess.PersistOutcome, error) {
	switch mode.(type) {
	case preprocess.Preview:
		return &preprocess.PersistOutcome{Mode: mode.String(), DatasetID: handle.ID, Version: handle.Version}, nil
	case preprocess.Versioned, preprocess.Overwrite:
	default:
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidMode, mode)
	}

	if result == nil || result.Table == nil {
		return nil, fmt.Errorf("no execution result to persist for %s", handle.ID)
	}

	w, err := m.store.BeginWrite(ctx, handle.ID)
	if err != nil {
		return nil, err
	}
	defer w.Rollback()

	root := w.Root()
	target := w.Target()
	if err := m.checkSource(ctx, result.SourceID, root, target); err != nil {
		return nil, err
	}
	if handle.Version != 0 && handle.Version < target.Version {
		return nil, fmt.Errorf("%w: %s is at version %d, handle has %d", core.ErrConflictingWrite, target.ID, target.Version, handle.Version)
	}

	n := root.HeadVersion + 1
	now := time.Now().UTC()

	var written *dataset.Dataset
	switch mode.(type) {
	case preprocess.Versioned:
		format := handle.Format
		if format == "" {
			format = target.Format
		}
		written = &dataset.Dataset{
			ID:          core.VersionID(root.ID, n),
			RootID:      root.ID,
			ParentID:    target.ID,
			Filename:    target.Filename,
			Format:      format,
			Path:        m.processedPath(root.ID, n, format),
			Version:     n,
			Status:      dataset.StatusProcessed,
			RowCount:    result.Table.RowCount(),
			ColumnCount: result.Table.ColumnCount(),
			CreatedAt:   now,
			UpdatedAt:   now,
			Table:       result.Table,
		}
		if err := w.SaveVersion(ctx, written); err != nil {
			return nil, fmt.Errorf("failed to save version %d of %s: %w", n, root.ID, err)
		}
		root.HeadVersion = n
		if err := w.UpdateRecord(ctx, root); err != nil {
			return nil, fmt.Errorf("failed to advance %s: %w", root.ID, err)
		}

	case preprocess.Overwrite:
		written = target
		written.Version = n
		written.Status = dataset.StatusProcessed
		written.RowCount = result.Table.RowCount()
		written.ColumnCount = result.Table.ColumnCount()
		written.UpdatedAt = now
		written.Table = result.Table
		if written.IsRoot() {
			written.HeadVersion = n
		}
		if err := w.ReplaceContent(ctx, written); err != nil {
			return nil, fmt.Errorf("failed to overwrite %s: %w", written.ID, err)
		}
		if !written.IsRoot() {
			root.HeadVersion = n
			if err := w.UpdateRecord(ctx, root); err != nil {
				return nil, fmt.Errorf("failed to advance %s: %w", root.ID, err)
			}
		}
	}

	if err := w.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit %s: %w", written.ID, err)
	}

	m.logger.Info("Persisted %s as %s version %d (%s)", handle.ID, written.ID, n, mode)
	return &preprocess.PersistOutcome{
		Mode:      mode.String(),
		DatasetID: written.ID,
		Version:   n,
		Path:      written.Path,
	}, nil
}

// checkSource rejects a result executed against a dataset outside the lineage being written
func (m *VersionManager) checkSource(ctx context.Context, source core.ID, root, target *dataset.Dataset) error {
	if source == "" || source == root.ID || source == target.ID {
		return nil
	}
	ds, err := m.store.Get(ctx, source)
	if err != nil {
		return fmt.Errorf("%w: source %s: %v", core.ErrPlanMismatch, source, err)
	}
	if ds.Lineage() != root.ID {
		return fmt.Errorf("%w: result comes from %s, not lineage %s", core.ErrPlanMismatch, source, root.ID)
	}
	return nil
}

func (m *VersionManager) processedPath(root core.ID, n int, format dataset.FileFormat) string {
	if m.paths != nil {
		return m.paths.ProcessedPath(root.String(), n, format)
	}
	return filepath.Join("processed", fmt.Sprintf("%s_v%d.%s", root, n, format.Ext()))
}
