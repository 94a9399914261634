package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tabprep/domain/core"
	"tabprep/domain/datareadiness/profiling"
	"tabprep/domain/dataset"
	"tabprep/domain/preprocess"
	"tabprep/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProfileAndRecommend(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)
	ctx := context.Background()

	profiles, err := e.service.Profile(ctx, "ds1")
	require.NoError(t, err)
	require.Len(t, profiles, 3)

	assert.Equal(t, profiling.RoleIdentifier, profiles[0].Role)
	assert.Equal(t, profiling.RoleCategorical, profiles[1].Role)
	assert.Equal(t, profiling.RoleNumeric, profiles[2].Role)
	assert.Equal(t, []int{9}, profiles[2].OutlierIndices())

	plan := e.service.Recommend(profiles)
	assert.Equal(t, plan, e.service.Recommend(profiles), "recommendation is idempotent")

	weight, _ := plan.Get("weight")
	assert.Equal(t, preprocess.ImputeMedian, weight.Imputation)
	assert.Equal(t, preprocess.ScaleStandard, weight.Scaling)

	color, _ := plan.Get("color")
	assert.Equal(t, preprocess.ImputeMostFrequent, color.Imputation)
	assert.Equal(t, preprocess.EncodeOneHot, color.Encoding)
}

func TestProfileUnknownDataset(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.service.Profile(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestExecuteLeavesStoreUnchanged(t *testing.T) {
	e := newTestEnv(t)
	original := e.seed(t)
	result := executeSample(t, e)

	assert.Equal(t, original.Table.RowCount(), result.RowCount)
	assert.Equal(t, []string{"id", "color_blue", "color_green", "color_red", "weight"}, result.Table.ColumnNames())

	stored, err := e.store.Get(context.Background(), "ds1")
	require.NoError(t, err)
	assert.Equal(t, preprocess.TableFingerprint(original.Table), preprocess.TableFingerprint(stored.Table))
}

func TestApplyWithOverride(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)
	ctx := context.Background()

	override, err := preprocess.ParseOverride([]byte(`{"weight": {"scaling": "minmax"}, "color": {"encoding": "none"}}`))
	require.NoError(t, err)

	out, err := e.service.Apply(ctx, "ds1", override, "versioned")
	require.NoError(t, err)

	weight, _ := out.Plan.Get("weight")
	assert.Equal(t, preprocess.ImputeMedian, weight.Imputation, "unspecified fields keep the recommendation")
	assert.Equal(t, preprocess.ScaleMinMax, weight.Scaling)

	assert.Equal(t, []string{"id", "color", "weight"}, out.Result.Table.ColumnNames())
	assert.Equal(t, core.ID("ds1_v2"), out.Outcome.DatasetID)
	assert.Len(t, out.Preview, 10)

	col, _ := out.Result.Table.Column("weight")
	for _, c := range col.Cells {
		assert.GreaterOrEqual(t, c.Num, 0.0)
		assert.LessOrEqual(t, c.Num, 1.0)
	}
}

func TestApplyUnknownOverrideColumn(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	override, err := preprocess.ParseOverride([]byte(`{"height": {"scaling": "minmax"}}`))
	require.NoError(t, err)

	_, err = e.service.Apply(context.Background(), "ds1", override, "preview")
	require.ErrorIs(t, err, core.ErrPlanMismatch)
	var mismatch *core.PlanMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []string{"height"}, mismatch.Columns)
}

func TestApplyInvalidModeFailsFirst(t *testing.T) {
	store := new(MockDatasetStore)
	logger := internal.NewLogger(internal.LogLevelError)
	svc := newService(store, nil, NewVersionManager(store, nil, logger), logger)

	_, err := svc.Apply(context.Background(), "ds1", preprocess.PlanOverride{}, "sideways")
	assert.ErrorIs(t, err, core.ErrInvalidMode)
	store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestApplyPreviewUsesMockedStoreReadOnly(t *testing.T) {
	store := new(MockDatasetStore)
	ds := dataset.NewDataset("ds1", "ds1.csv", dataset.FormatCSV, "", sampleTable())
	store.On("Get", mock.Anything, core.ID("ds1")).Return(ds, nil)

	logger := internal.NewLogger(internal.LogLevelError)
	svc := newService(store, nil, NewVersionManager(store, nil, logger), logger)

	out, err := svc.Apply(context.Background(), "ds1", preprocess.PlanOverride{}, "preview")
	require.NoError(t, err)
	assert.Equal(t, "preview", out.Outcome.Mode)
	assert.Equal(t, 1, out.Outcome.Version)
	assert.Empty(t, out.Outcome.Path)

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "BeginWrite", mock.Anything, mock.Anything)
}

func TestImport(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "people.tsv")
	require.NoError(t, os.WriteFile(src, []byte("id\tage\n1\t30\n2\tNA\n"), 0644))

	ds, err := e.service.Import(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "people.tsv", ds.Filename)
	assert.Equal(t, dataset.FormatTSV, ds.Format)
	assert.Equal(t, 2, ds.RowCount)
	assert.Equal(t, 1, ds.Version)
	assert.True(t, strings.HasPrefix(ds.Path, filepath.Join(e.dir, "uploads")))

	stored, err := e.service.Get(ctx, ds.ID)
	require.NoError(t, err)
	assert.True(t, stored.Table.Columns[1].Cells[1].IsMissing())

	list, err := e.service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestImportRejectsUnsupportedFiles(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.service.Import(context.Background(), "data.parquet")
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}
