package ports

import (
	"context"
	"io"

	"tabprep/domain/dataset"
)

// TableCodec converts tables to and from a file format
type TableCodec interface {
	Decode(r io.Reader, format dataset.FileFormat) (*dataset.Table, error)
	Encode(w io.Writer, format dataset.FileFormat, table *dataset.Table) error
}

// TableStorage reads and writes dataset files
type TableStorage interface {
	Read(ctx context.Context, path string, format dataset.FileFormat) (*dataset.Table, error)

	// Stage writes the table beside its destination without making it
	// visible at path
	Stage(ctx context.Context, path string, format dataset.FileFormat, table *dataset.Table) (StagedWrite, error)

	// Store copies raw upload bytes to path. Returns core.ErrFileTooLarge
	// when src exceeds the configured limit.
	Store(ctx context.Context, src io.Reader, path string) (int64, error)

	// Delete removes a stored file; missing files are not an error
	Delete(ctx context.Context, path string) error

	// ProcessedPath returns where version n of a lineage is written
	ProcessedPath(root string, n int, format dataset.FileFormat) string

	// UploadPath returns where an imported dataset is stored
	UploadPath(id string, format dataset.FileFormat) string
}

// StagedWrite is a table file waiting to replace its destination.
// Publish swaps it in, Rollback restores whatever was there before,
// Finalize drops the saved previous content.
type StagedWrite interface {
	Path() string
	Publish() error
	Rollback() error
	Finalize() error
}
