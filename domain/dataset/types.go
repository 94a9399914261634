package dataset

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"tabprep/domain/core"
)

// DatasetStatus represents the processing state of a dataset
type DatasetStatus string

const (
	StatusUploaded  DatasetStatus = "uploaded"
	StatusProcessed DatasetStatus = "processed"
)

// FileFormat is the on-disk format of a stored dataset
type FileFormat string

const (
	FormatCSV  FileFormat = "csv"
	FormatTSV  FileFormat = "tsv"
	FormatXLSX FileFormat = "xlsx"
	FormatJSON FileFormat = "json"
)

// ParseFileFormat maps a file extension (with or without dot) to a format
func ParseFileFormat(ext string) (FileFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "csv":
		return FormatCSV, nil
	case "tsv":
		return FormatTSV, nil
	case "xlsx":
		return FormatXLSX, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, ext)
}

// FormatForPath infers the format from a file path
func FormatForPath(path string) (FileFormat, error) {
	return ParseFileFormat(filepath.Ext(path))
}

// Ext returns the file extension without the dot
func (f FileFormat) Ext() string {
	return string(f)
}

// Dataset is a stored table together with its lineage record.
//
// RootID names the lineage a dataset belongs to: an uploaded dataset is its
// own root, a versioned copy points back at it. HeadVersion is only
// meaningful on a root and is the highest version number allocated in the
// lineage; it is advanced under the store's write lock.
type Dataset struct {
	ID          core.ID       `json:"id" db:"id"`
	RootID      core.ID       `json:"root_id" db:"root_id"`
	ParentID    core.ID       `json:"parent_id,omitempty" db:"parent_id"`
	Filename    string        `json:"filename" db:"filename"`
	Format      FileFormat    `json:"format" db:"format"`
	Path        string        `json:"path" db:"path"`
	Version     int           `json:"version" db:"version"`
	HeadVersion int           `json:"head_version" db:"head_version"`
	Status      DatasetStatus `json:"status" db:"status"`
	RowCount    int           `json:"row_count" db:"row_count"`
	ColumnCount int           `json:"column_count" db:"column_count"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`

	Table *Table `json:"-" db:"-"`
}

// NewDataset creates a root dataset record at version 1
func NewDataset(id core.ID, filename string, format FileFormat, path string, table *Table) *Dataset {
	now := time.Now().UTC()
	return &Dataset{
		ID:          id,
		RootID:      id,
		Filename:    filename,
		Format:      format,
		Path:        path,
		Version:     1,
		HeadVersion: 1,
		Status:      StatusUploaded,
		RowCount:    table.RowCount(),
		ColumnCount: table.ColumnCount(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Table:       table,
	}
}

// IsRoot reports whether the dataset heads its own lineage
func (d *Dataset) IsRoot() bool {
	return d.RootID == "" || d.RootID == d.ID
}

// Lineage returns the lineage root identifier
func (d *Dataset) Lineage() core.ID {
	if d.RootID == "" {
		return d.ID
	}
	return d.RootID
}

// Handle returns a reference to the dataset's current content
func (d *Dataset) Handle() Handle {
	return Handle{ID: d.ID, Version: d.Version, Format: d.Format}
}

// Handle references one dataset version. Version 0 means "whatever is current".
type Handle struct {
	ID      core.ID    `json:"id"`
	Version int        `json:"version"`
	Format  FileFormat `json:"ext,omitempty"`
}
