package app

import (
	"context"
	"path/filepath"
	"testing"

	"tabprep/adapters/datareadiness"
	"tabprep/adapters/datareadiness/coercer"
	"tabprep/adapters/excel"
	"tabprep/adapters/memory"
	"tabprep/domain/core"
	"tabprep/domain/datareadiness/profiling"
	"tabprep/domain/dataset"
	"tabprep/internal"
	localstorage "tabprep/internal/dataset"
	"tabprep/ports"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	dir      string
	files    *localstorage.LocalFileStorage
	store    *memory.DatasetStore
	versions *VersionManager
	service  *PreprocessingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	files := localstorage.NewLocalFileStorage(&localstorage.StorageConfig{
		UploadDir:    filepath.Join(dir, "uploads"),
		ProcessedDir: filepath.Join(dir, "processed"),
		MaxFileSize:  1 << 20,
	}, excel.NewCodec(excel.DefaultCodecConfig()))
	store := memory.NewDatasetStore(files)

	logger := internal.NewLogger(internal.LogLevelError)
	versions := NewVersionManager(store, files, logger)
	service := newService(store, files, versions, logger)

	return &testEnv{dir: dir, files: files, store: store, versions: versions, service: service}
}

func newService(store ports.DatasetStore, files ports.TableStorage, versions *VersionManager, logger *internal.Logger) *PreprocessingService {
	cfg := profiling.DefaultConfig()
	c := coercer.NewTypeCoercer(coercer.DefaultCoercionConfig())
	return NewPreprocessingService(
		store,
		files,
		datareadiness.NewProfilerAdapter(c, cfg),
		datareadiness.NewRecommender(cfg),
		datareadiness.NewExecutor(c, cfg),
		versions,
		DefaultPreviewRows,
		logger,
	)
}

func column(name string, values ...string) dataset.Column {
	cells := make([]dataset.Value, len(values))
	for i, v := range values {
		cells[i] = dataset.NewStringValue(v)
	}
	return dataset.Column{Name: name, Cells: cells}
}

func sampleTable() *dataset.Table {
	return &dataset.Table{Columns: []dataset.Column{
		column("id", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10"),
		column("color", "red", "red", "blue", "", "red", "blue", "green", "red", "blue", "green"),
		column("weight", "2", "4", "", "6", "8", "10", "12", "14", "16", "100"),
	}}
}

// seed registers ds1 and writes its file the way an import would
func (e *testEnv) seed(t *testing.T) *dataset.Dataset {
	t.Helper()
	ctx := context.Background()
	path := e.files.UploadPath("ds1", dataset.FormatCSV)

	staged, err := e.files.Stage(ctx, path, dataset.FormatCSV, sampleTable())
	require.NoError(t, err)
	require.NoError(t, staged.Publish())
	require.NoError(t, staged.Finalize())

	ds := dataset.NewDataset("ds1", "ds1.csv", dataset.FormatCSV, path, sampleTable())
	require.NoError(t, e.store.Create(ctx, ds))
	return ds
}

// MockDatasetStore records calls to the dataset store port
type MockDatasetStore struct {
	mock.Mock
}

func (m *MockDatasetStore) Get(ctx context.Context, id core.ID) (*dataset.Dataset, error) {
	args := m.Called(ctx, id)
	ds, _ := args.Get(0).(*dataset.Dataset)
	return ds, args.Error(1)
}

func (m *MockDatasetStore) List(ctx context.Context) ([]*dataset.Dataset, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]*dataset.Dataset)
	return list, args.Error(1)
}

func (m *MockDatasetStore) Create(ctx context.Context, ds *dataset.Dataset) error {
	args := m.Called(ctx, ds)
	return args.Error(0)
}

func (m *MockDatasetStore) BeginWrite(ctx context.Context, id core.ID) (ports.DatasetWriter, error) {
	args := m.Called(ctx, id)
	w, _ := args.Get(0).(ports.DatasetWriter)
	return w, args.Error(1)
}
