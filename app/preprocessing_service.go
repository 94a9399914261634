package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"tabprep/domain/core"
	"tabprep/domain/datareadiness/profiling"
	"tabprep/domain/dataset"
	"tabprep/domain/preprocess"
	"tabprep/internal"
	"tabprep/ports"
)

// DefaultPreviewRows is how many transformed rows a preview carries
const DefaultPreviewRows = 50

// PreprocessingService runs the profile, recommend, execute and persist
// steps against datasets held in a store
type PreprocessingService struct {
	store       ports.DatasetStore
	files       ports.TableStorage
	profiler    ports.ProfilerPort
	recommender ports.RecommenderPort
	executor    ports.ExecutorPort
	versions    *VersionManager
	previewRows int
	logger      *internal.Logger
}

// NewPreprocessingService wires the engine stages together. files is only
// needed for Import.
func NewPreprocessingService(
	store ports.DatasetStore,
	files ports.TableStorage,
	profiler ports.ProfilerPort,
	recommender ports.RecommenderPort,
	executor ports.ExecutorPort,
	versions *VersionManager,
	previewRows int,
	logger *internal.Logger,
) *PreprocessingService {
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &PreprocessingService{
		store:       store,
		files:       files,
		profiler:    profiler,
		recommender: recommender,
		executor:    executor,
		versions:    versions,
		previewRows: previewRows,
		logger:      logger,
	}
}

// ApplyResult is everything one Apply call produced
type ApplyResult struct {
	Profiles []profiling.ColumnProfile   `json:"profiles"`
	Plan     preprocess.Plan             `json:"plan"`
	Result   *preprocess.ExecutionResult `json:"result"`
	Outcome  *preprocess.PersistOutcome  `json:"outcome"`
	Preview  []map[string]string         `json:"preview"`
}

// Profile returns one profile per column of the stored dataset
func (s *PreprocessingService) Profile(ctx context.Context, id core.ID) ([]profiling.ColumnProfile, error) {
	ds, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	profiles, err := s.profiler.ProfileTable(ctx, ds.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to profile %s: %w", id, err)
	}
	s.logger.Debug("Profiled %s: %d columns, %d rows", id, len(profiles), ds.Table.RowCount())
	return profiles, nil
}

// Recommend builds a plan from profiles alone
func (s *PreprocessingService) Recommend(profiles []profiling.ColumnProfile) preprocess.Plan {
	return s.recommender.Recommend(profiles)
}

// Execute applies plan to the stored dataset without changing it
func (s *PreprocessingService) Execute(ctx context.Context, id core.ID, plan preprocess.Plan) (*preprocess.ExecutionResult, error) {
	ds, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.executor.Execute(ctx, ds, plan)
	if err != nil {
		return nil, fmt.Errorf("failed to execute plan on %s: %w", id, err)
	}
	s.logger.Debug("Executed plan on %s: %d changes, %d -> %d columns, fingerprint %s", id, len(result.Changes), result.ColumnsBefore, result.ColumnsAfter, result.Fingerprint.Short())
	return result, nil
}

// Persist stores result under handle; mode is preview, versioned or overwrite
func (s *PreprocessingService) Persist(ctx context.Context, result *preprocess.ExecutionResult, mode string, handle dataset.Handle) (*preprocess.PersistOutcome, error) {
	m, err := preprocess.ParsePersistMode(mode)
	if err != nil {
		return nil, err
	}
	return s.versions.Persist(ctx, result, m, handle)
}

// Apply runs a whole preprocessing request: profile, recommend, merge the
// override, execute and persist
func (s *PreprocessingService) Apply(ctx context.Context, id core.ID, override preprocess.PlanOverride, mode string) (*ApplyResult, error) {
	m, err := preprocess.ParsePersistMode(mode)
	if err != nil {
		return nil, err
	}

	ds, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	profiles, plan, err := s.planFor(ctx, ds, override)
	if err != nil {
		return nil, err
	}

	result, err := s.executor.Execute(ctx, ds, plan)
	if err != nil {
		return nil, fmt.Errorf("failed to execute plan on %s: %w", id, err)
	}

	outcome, err := s.versions.Persist(ctx, result, m, ds.Handle())
	if err != nil {
		return nil, err
	}

	s.logger.Info("Applied plan to %s (%s): %d rows, %d -> %d columns", id, m, result.RowCount, result.ColumnsBefore, result.ColumnsAfter)
	return &ApplyResult{
		Profiles: profiles,
		Plan:     plan,
		Result:   result,
		Outcome:  outcome,
		Preview:  result.Preview(s.previewRows),
	}, nil
}

// PlanFor profiles the dataset and merges override onto the recommended
// plan. Fields the override leaves out keep the recommendation.
func (s *PreprocessingService) PlanFor(ctx context.Context, id core.ID, override preprocess.PlanOverride) ([]profiling.ColumnProfile, preprocess.Plan, error) {
	ds, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, preprocess.Plan{}, err
	}
	return s.planFor(ctx, ds, override)
}

func (s *PreprocessingService) planFor(ctx context.Context, ds *dataset.Dataset, override preprocess.PlanOverride) ([]profiling.ColumnProfile, preprocess.Plan, error) {
	profiles, err := s.profiler.ProfileTable(ctx, ds.Table)
	if err != nil {
		return nil, preprocess.Plan{}, fmt.Errorf("failed to profile %s: %w", ds.ID, err)
	}

	plan, err := s.recommender.Recommend(profiles).Merge(override)
	if err != nil {
		return nil, preprocess.Plan{}, err
	}
	return profiles, plan, nil
}

// Import copies a local file into upload storage and registers it as a new
// root dataset
func (s *PreprocessingService) Import(ctx context.Context, path string) (*dataset.Dataset, error) {
	if s.files == nil {
		return nil, fmt.Errorf("import requires file storage")
	}

	format, err := dataset.FormatForPath(path)
	if err != nil {
		return nil, err
	}

	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	id := core.NewID()
	dest := s.files.UploadPath(id.String(), format)
	size, err := s.files.Store(ctx, src, dest)
	if err != nil {
		return nil, err
	}

	table, err := s.files.Read(ctx, dest, format)
	if err != nil {
		s.files.Delete(ctx, dest)
		return nil, err
	}

	ds := dataset.NewDataset(id, filepath.Base(path), format, dest, table)
	if err := s.store.Create(ctx, ds); err != nil {
		s.files.Delete(ctx, dest)
		return nil, fmt.Errorf("failed to register %s: %w", path, err)
	}

	s.logger.Info("Imported %s as %s (%d bytes, %d rows, %d columns)", path, id, size, ds.RowCount, ds.ColumnCount)
	return ds, nil
}

// Get returns a stored dataset
func (s *PreprocessingService) Get(ctx context.Context, id core.ID) (*dataset.Dataset, error) {
	return s.store.Get(ctx, id)
}

// List returns stored dataset records
func (s *PreprocessingService) List(ctx context.Context) ([]*dataset.Dataset, error) {
	return s.store.List(ctx)
}
