package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tabprep/domain/core"
	"tabprep/domain/dataset"
	"tabprep/ports"

	"github.com/google/uuid"
)

// StorageConfig holds configuration for file storage
type StorageConfig struct {
	UploadDir    string // Imported files
	ProcessedDir string // Versioned outputs
	MaxFileSize  int64  // Maximum upload size in bytes
	ChunkSize    int    // Copy buffer size
}

// DefaultStorageConfig returns sensible defaults
func DefaultStorageConfig() *StorageConfig {
	return &StorageConfig{
		UploadDir:    "uploads",
		ProcessedDir: "processed",
		MaxFileSize:  50 * 1024 * 1024, // 50MB
		ChunkSize:    1024 * 1024,      // 1MB
	}
}

// LocalFileStorage implements ports.TableStorage using the local filesystem
type LocalFileStorage struct {
	config *StorageConfig
	codec  ports.TableCodec
}

// NewLocalFileStorage creates a new local file storage instance
func NewLocalFileStorage(config *StorageConfig, codec ports.TableCodec) *LocalFileStorage {
	if config == nil {
		config = DefaultStorageConfig()
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = 1024 * 1024
	}
	return &LocalFileStorage{config: config, codec: codec}
}

// Read decodes the table stored at path
func (s *LocalFileStorage) Read(ctx context.Context, path string, format dataset.FileFormat) (*dataset.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: file %s", core.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	table, err := s.codec.Decode(file, format)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return table, nil
}

// Store copies src to path, refusing files above MaxFileSize
func (s *LocalFileStorage) Store(ctx context.Context, src io.Reader, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create storage directory: %w", err)
	}

	destFile, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destFile.Close()

	limit := s.config.MaxFileSize
	reader := src
	if limit > 0 {
		reader = io.LimitReader(src, limit+1)
	}

	buf := make([]byte, s.config.ChunkSize)
	n, err := io.CopyBuffer(destFile, reader, buf)
	if err != nil {
		os.Remove(path) // Clean up on failure
		return 0, fmt.Errorf("failed to copy file contents: %w", err)
	}
	if limit > 0 && n > limit {
		os.Remove(path)
		return 0, fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, limit)
	}

	return n, nil
}

// Delete removes a file from storage
func (s *LocalFileStorage) Delete(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// ProcessedPath returns {processed_dir}/{root}_v{n}.{ext}
func (s *LocalFileStorage) ProcessedPath(root string, n int, format dataset.FileFormat) string {
	return filepath.Join(s.config.ProcessedDir, fmt.Sprintf("%s_v%d.%s", root, n, format.Ext()))
}

// UploadPath returns {upload_dir}/{id}.{ext}
func (s *LocalFileStorage) UploadPath(id string, format dataset.FileFormat) string {
	return filepath.Join(s.config.UploadDir, fmt.Sprintf("%s.%s", id, format.Ext()))
}

// Stage encodes the table into a temporary file next to path
func (s *LocalFileStorage) Stage(ctx context.Context, path string, format dataset.FileFormat, table *dataset.Table) (ports.StagedWrite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.New().String()[:8]))
	file, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}

	if err := s.codec.Encode(file, format, table); err != nil {
		file.Close()
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to sync staging file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to close staging file: %w", err)
	}

	return &stagedFile{path: path, tmp: tmp}, nil
}

// stagedFile swaps a temporary file into place with renames. Previous
// content is kept aside until Finalize so Rollback can restore it.
type stagedFile struct {
	path      string
	tmp       string
	backup    string
	published bool
	done      bool
}

func (f *stagedFile) Path() string { return f.path }

func (f *stagedFile) Publish() error {
	if f.done || f.published {
		return fmt.Errorf("staged write for %s already settled", f.path)
	}

	// Hard link the current file so the rename below replaces it atomically
	if _, err := os.Stat(f.path); err == nil {
		backup := fmt.Sprintf("%s.%s.bak", f.path, uuid.New().String()[:8])
		if err := os.Link(f.path, backup); err != nil {
			return fmt.Errorf("failed to set aside %s: %w", f.path, err)
		}
		f.backup = backup
	}

	if err := os.Rename(f.tmp, f.path); err != nil {
		if f.backup != "" {
			os.Remove(f.backup)
			f.backup = ""
		}
		return fmt.Errorf("failed to publish %s: %w", f.path, err)
	}
	f.published = true
	return nil
}

func (f *stagedFile) Rollback() error {
	if f.done {
		return nil
	}
	f.done = true

	if !f.published {
		return removeIfExists(f.tmp)
	}
	if f.backup != "" {
		if err := os.Rename(f.backup, f.path); err != nil {
			return fmt.Errorf("failed to restore %s: %w", f.path, err)
		}
		return nil
	}
	return removeIfExists(f.path)
}

func (f *stagedFile) Finalize() error {
	if f.done {
		return nil
	}
	f.done = true

	if !f.published {
		return removeIfExists(f.tmp)
	}
	if f.backup != "" {
		return removeIfExists(f.backup)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
