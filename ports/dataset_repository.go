package ports

import (
	"context"

	"tabprep/domain/core"
	"tabprep/domain/dataset"
)

// DatasetStore owns persisted datasets and their version history.
//
// Reads are unrestricted. Writes go through a DatasetWriter, and a store
// hands out at most one writer per lineage root at a time.
type DatasetStore interface {
	// Get loads a dataset record and its table. Returns core.ErrNotFound
	// for unknown identifiers.
	Get(ctx context.Context, id core.ID) (*dataset.Dataset, error)

	// List returns dataset records without loading tables
	List(ctx context.Context) ([]*dataset.Dataset, error)

	// Create registers a new root dataset
	Create(ctx context.Context, ds *dataset.Dataset) error

	// BeginWrite takes the write lock on the lineage root of id. Returns
	// core.ErrConflictingWrite when another writer holds it.
	BeginWrite(ctx context.Context, id core.ID) (DatasetWriter, error)
}

// DatasetWriter stages changes to one lineage. Nothing is visible to
// readers until Commit; Rollback after Commit is a no-op, so callers can
// always defer it.
type DatasetWriter interface {
	// Root returns the locked lineage root record
	Root() *dataset.Dataset

	// Target returns the record of the identifier the write was opened for
	Target() *dataset.Dataset

	// SaveVersion stages a new dataset record with its table
	SaveVersion(ctx context.Context, ds *dataset.Dataset) error

	// ReplaceContent stages new content and record fields for an existing dataset
	ReplaceContent(ctx context.Context, ds *dataset.Dataset) error

	// UpdateRecord stages record-only changes (status, head version)
	UpdateRecord(ctx context.Context, ds *dataset.Dataset) error

	Commit() error
	Rollback() error
}
