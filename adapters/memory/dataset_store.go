package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tabprep/domain/core"
	"tabprep/domain/dataset"
	"tabprep/internal"
	"tabprep/ports"
)

// DatasetStore keeps dataset records and tables in memory. When a
// TableStorage is given, every content write is also mirrored to a file.
type DatasetStore struct {
	mu      sync.RWMutex
	records map[core.ID]*dataset.Dataset
	locks   map[core.ID]*sync.Mutex
	files   ports.TableStorage
	logger  *internal.Logger
}

// NewDatasetStore creates an empty store. files may be nil.
func NewDatasetStore(files ports.TableStorage) *DatasetStore {
	return &DatasetStore{
		records: make(map[core.ID]*dataset.Dataset),
		locks:   make(map[core.ID]*sync.Mutex),
		files:   files,
		logger:  internal.DefaultLogger,
	}
}

func cloneDataset(ds *dataset.Dataset, withTable bool) *dataset.Dataset {
	out := *ds
	out.Table = nil
	if withTable {
		out.Table = ds.Table.Clone()
	}
	return &out
}

// Get returns a copy of the dataset and its table
func (s *DatasetStore) Get(ctx context.Context, id core.ID) (*dataset.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrDatasetNotFound, id)
	}
	return cloneDataset(ds, true), nil
}

// List returns every record, oldest first, without tables
func (s *DatasetStore) List(ctx context.Context) ([]*dataset.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*dataset.Dataset, 0, len(s.records))
	for _, ds := range s.records {
		out = append(out, cloneDataset(ds, false))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Create registers a new root dataset
func (s *DatasetStore) Create(ctx context.Context, ds *dataset.Dataset) error {
	if err := ds.Table.Validate(); err != nil {
		return fmt.Errorf("invalid dataset %s: %w", ds.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[ds.ID]; exists {
		return fmt.Errorf("dataset %s already exists", ds.ID)
	}
	s.records[ds.ID] = cloneDataset(ds, true)
	s.logger.Debug("memory store: created dataset %s (%d rows)", ds.ID, ds.RowCount)
	return nil
}

// BeginWrite locks the lineage root of id without waiting
func (s *DatasetStore) BeginWrite(ctx context.Context, id core.ID) (ports.DatasetWriter, error) {
	s.mu.Lock()
	target, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", core.ErrDatasetNotFound, id)
	}
	rootID := target.Lineage()
	root, ok := s.records[rootID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: lineage root %s", core.ErrDatasetNotFound, rootID)
	}
	lock, ok := s.locks[rootID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[rootID] = lock
	}
	target = cloneDataset(target, false)
	root = cloneDataset(root, false)
	s.mu.Unlock()

	if !lock.TryLock() {
		return nil, fmt.Errorf("%w: lineage %s", core.ErrConflictingWrite, rootID)
	}

	return &writer{store: s, lock: lock, root: root, target: target}, nil
}

type pendingWrite struct {
	ds         *dataset.Dataset
	recordOnly bool
}

// writer buffers record changes until Commit and stages file content as
// it goes
type writer struct {
	store   *DatasetStore
	lock    *sync.Mutex
	root    *dataset.Dataset
	target  *dataset.Dataset
	pending []pendingWrite
	staged  []ports.StagedWrite
	done    bool
}

func (w *writer) Root() *dataset.Dataset   { return cloneDataset(w.root, false) }
func (w *writer) Target() *dataset.Dataset { return cloneDataset(w.target, false) }

func (w *writer) exists(id core.ID) bool {
	for _, p := range w.pending {
		if p.ds.ID == id {
			return true
		}
	}
	w.store.mu.RLock()
	defer w.store.mu.RUnlock()
	_, ok := w.store.records[id]
	return ok
}

func (w *writer) stage(ctx context.Context, ds *dataset.Dataset) error {
	if err := ds.Table.Validate(); err != nil {
		return fmt.Errorf("invalid dataset %s: %w", ds.ID, err)
	}
	if w.store.files == nil || ds.Path == "" {
		return nil
	}
	staged, err := w.store.files.Stage(ctx, ds.Path, ds.Format, ds.Table)
	if err != nil {
		return err
	}
	w.staged = append(w.staged, staged)
	return nil
}

func (w *writer) SaveVersion(ctx context.Context, ds *dataset.Dataset) error {
	if w.done {
		return fmt.Errorf("write already finished")
	}
	if w.exists(ds.ID) {
		return fmt.Errorf("dataset %s already exists", ds.ID)
	}
	if err := w.stage(ctx, ds); err != nil {
		return err
	}
	w.pending = append(w.pending, pendingWrite{ds: cloneDataset(ds, true)})
	return nil
}

func (w *writer) ReplaceContent(ctx context.Context, ds *dataset.Dataset) error {
	if w.done {
		return fmt.Errorf("write already finished")
	}
	if !w.exists(ds.ID) {
		return fmt.Errorf("%w: %s", core.ErrDatasetNotFound, ds.ID)
	}
	if err := w.stage(ctx, ds); err != nil {
		return err
	}
	w.pending = append(w.pending, pendingWrite{ds: cloneDataset(ds, true)})
	return nil
}

func (w *writer) UpdateRecord(ctx context.Context, ds *dataset.Dataset) error {
	if w.done {
		return fmt.Errorf("write already finished")
	}
	if !w.exists(ds.ID) {
		return fmt.Errorf("%w: %s", core.ErrDatasetNotFound, ds.ID)
	}
	w.pending = append(w.pending, pendingWrite{ds: cloneDataset(ds, false), recordOnly: true})
	return nil
}

// Commit publishes staged files, then swaps the buffered records in
func (w *writer) Commit() error {
	if w.done {
		return fmt.Errorf("write already finished")
	}
	defer w.release()

	for _, staged := range w.staged {
		if err := staged.Publish(); err != nil {
			w.rollbackFiles()
			return fmt.Errorf("failed to publish %s: %w", staged.Path(), err)
		}
	}

	now := time.Now().UTC()
	w.store.mu.Lock()
	for _, p := range w.pending {
		ds := p.ds
		ds.UpdatedAt = now
		if existing, ok := w.store.records[ds.ID]; ok {
			ds.CreatedAt = existing.CreatedAt
			if p.recordOnly {
				ds.Table = existing.Table
			}
		}
		w.store.records[ds.ID] = ds
	}
	w.store.mu.Unlock()

	for _, staged := range w.staged {
		if err := staged.Finalize(); err != nil {
			w.store.logger.Warn("memory store: failed to clean up after %s: %v", staged.Path(), err)
		}
	}
	w.store.logger.Debug("memory store: committed %d changes to lineage %s", len(w.pending), w.root.ID)
	return nil
}

// Rollback discards buffered changes; a no-op once committed
func (w *writer) Rollback() error {
	if w.done {
		return nil
	}
	defer w.release()

	var firstErr error
	for _, staged := range w.staged {
		if err := staged.Rollback(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (w *writer) release() {
	w.done = true
	w.lock.Unlock()
}

// rollbackFiles restores published files and drops unpublished temp files
func (w *writer) rollbackFiles() {
	for _, s := range w.staged {
		if err := s.Rollback(); err != nil {
			w.store.logger.Error("memory store: failed to restore %s: %v", s.Path(), err)
		}
	}
}
