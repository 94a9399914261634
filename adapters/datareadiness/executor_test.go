package datareadiness

import (
	"context"
	"fmt"
	"testing"

	"tabprep/adapters/datareadiness/coercer"
	"tabprep/domain/core"
	"tabprep/domain/datareadiness/profiling"
	"tabprep/domain/dataset"
	"tabprep/domain/preprocess"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor() *Executor {
	return NewExecutor(coercer.NewTypeCoercer(coercer.DefaultCoercionConfig()), profiling.DefaultConfig())
}

func newTestDataset(columns ...dataset.Column) *dataset.Dataset {
	table := &dataset.Table{Columns: columns}
	return dataset.NewDataset("ds1", "ds1.csv", dataset.FormatCSV, "uploads/ds1.csv", table)
}

func directive(imp preprocess.ImputationStrategy, enc preprocess.Encoding, sc preprocess.Scaling) preprocess.Directive {
	return preprocess.Directive{Imputation: imp, Encoding: enc, Scaling: sc}
}

func cellStrings(col *dataset.Column) []string {
	out := make([]string, len(col.Cells))
	for i, c := range col.Cells {
		out[i] = c.String()
	}
	return out
}

func TestExecuteImputeThenOneHot(t *testing.T) {
	ds := newTestDataset(
		strCol("id", "1", "2", "3", "4"),
		strCol("color", "red", "red", "blue", ""),
		strCol("note", "a", "b", "c", "d"),
	)
	plan := preprocess.NewPlan()
	plan.Set("color", directive(preprocess.ImputeMostFrequent, preprocess.EncodeOneHot, preprocess.ScaleNone))

	result, err := newTestExecutor().Execute(context.Background(), ds, plan)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "color_blue", "color_red", "note"}, result.Table.ColumnNames())
	blue, _ := result.Table.Column("color_blue")
	red, _ := result.Table.Column("color_red")
	assert.Equal(t, []string{"0", "0", "1", "0"}, cellStrings(blue))
	assert.Equal(t, []string{"1", "1", "0", "1"}, cellStrings(red))

	assert.Equal(t, 4, result.RowCount)
	assert.Equal(t, 3, result.ColumnsBefore)
	assert.Equal(t, 4, result.ColumnsAfter)

	kinds := make([]preprocess.ChangeKind, 0)
	for _, c := range result.ChangesFor("color") {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []preprocess.ChangeKind{
		preprocess.ChangeImputed,
		preprocess.ChangeRemoved,
		preprocess.ChangeAdded,
		preprocess.ChangeAdded,
	}, kinds)
}

func TestExecuteOneHotMissingRowsAreAllZero(t *testing.T) {
	ds := newTestDataset(
		strCol("id", "1", "2", "3"),
		strCol("size", "S", "", "L"),
	)
	plan := preprocess.NewPlan()
	plan.Set("size", directive(preprocess.ImputeNone, preprocess.EncodeOneHot, preprocess.ScaleNone))

	result, err := newTestExecutor().Execute(context.Background(), ds, plan)
	require.NoError(t, err)

	l, _ := result.Table.Column("size_L")
	s, _ := result.Table.Column("size_S")
	assert.Equal(t, []string{"0", "0", "1"}, cellStrings(l))
	assert.Equal(t, []string{"1", "0", "0"}, cellStrings(s))
}

func TestExecuteOneHotOtherBucket(t *testing.T) {
	cfg := profiling.DefaultConfig()
	cfg.OneHotMaxCategories = 3
	exec := NewExecutor(coercer.NewTypeCoercer(coercer.DefaultCoercionConfig()), cfg)

	ds := newTestDataset(
		strCol("id", "1", "2", "3", "4", "5", "6", "7"),
		strCol("city", "oslo", "oslo", "oslo", "rome", "rome", "lima", "kiev"),
	)
	plan := preprocess.NewPlan()
	plan.Set("city", directive(preprocess.ImputeNone, preprocess.EncodeOneHot, preprocess.ScaleNone))

	result, err := exec.Execute(context.Background(), ds, plan)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "city_oslo", "city_rome", "city_other"}, result.Table.ColumnNames())
	other, _ := result.Table.Column("city_other")
	assert.Equal(t, []string{"0", "0", "0", "0", "0", "1", "1"}, cellStrings(other))
}

func TestExecuteOneHotNameCollision(t *testing.T) {
	ds := newTestDataset(
		strCol("id", "1", "2", "3"),
		strCol("kind", "a", "b", "a"),
		strCol("kind_a", "x", "y", "z"),
	)
	plan := preprocess.NewPlan()
	plan.Set("kind", directive(preprocess.ImputeNone, preprocess.EncodeOneHot, preprocess.ScaleNone))

	result, err := newTestExecutor().Execute(context.Background(), ds, plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "kind_a_2", "kind_b", "kind_a"}, result.Table.ColumnNames())
}

func TestExecuteScalingUsesImputedColumn(t *testing.T) {
	ds := newTestDataset(
		strCol("id", "1", "2", "3", "4"),
		strCol("weight", "2", "4", "", "6"),
	)
	plan := preprocess.NewPlan()
	plan.Set("weight", directive(preprocess.ImputeMean, preprocess.EncodeNone, preprocess.ScaleMinMax))

	result, err := newTestExecutor().Execute(context.Background(), ds, plan)
	require.NoError(t, err)

	weight, _ := result.Table.Column("weight")
	assert.Equal(t, []string{"0", "0.5", "0.5", "1"}, cellStrings(weight))
}

func TestExecuteStandardScaling(t *testing.T) {
	ds := newTestDataset(
		strCol("id", "1", "2", "3", "4"),
		strCol("x", "1", "2", "3", "4"),
		strCol("flat", "7", "7", "7", "7"),
	)
	plan := preprocess.NewPlan()
	plan.Set("x", directive(preprocess.ImputeNone, preprocess.EncodeNone, preprocess.ScaleStandard))
	plan.Set("flat", directive(preprocess.ImputeNone, preprocess.EncodeNone, preprocess.ScaleStandard))

	result, err := newTestExecutor().Execute(context.Background(), ds, plan)
	require.NoError(t, err)

	x, _ := result.Table.Column("x")
	var sum, sq float64
	for _, c := range x.Cells {
		sum += c.Num
		sq += c.Num * c.Num
	}
	assert.InDelta(t, 0, sum/4, 1e-9)
	assert.InDelta(t, 1, sq/4, 1e-9)

	flat, _ := result.Table.Column("flat")
	assert.Equal(t, []string{"0", "0", "0", "0"}, cellStrings(flat))
}

func TestExecuteImputationStrategies(t *testing.T) {
	fill := "9"
	tests := []struct {
		name  string
		cells []string
		d     preprocess.Directive
		want  []string
	}{
		{"mean", []string{"1", "", "5"}, directive(preprocess.ImputeMean, preprocess.EncodeNone, preprocess.ScaleNone), []string{"1", "3", "5"}},
		{"median", []string{"1", "", "2", "100"}, directive(preprocess.ImputeMedian, preprocess.EncodeNone, preprocess.ScaleNone), []string{"1", "2", "2", "100"}},
		{"most frequent tie picks smallest", []string{"b", "a", "", "b", "a"}, directive(preprocess.ImputeMostFrequent, preprocess.EncodeNone, preprocess.ScaleNone), []string{"b", "a", "a", "b", "a"}},
		{"constant numeric default", []string{"1", "", "3"}, directive(preprocess.ImputeConstant, preprocess.EncodeNone, preprocess.ScaleNone), []string{"1", "0", "3"}},
		{"constant text default", []string{"x", "", "y"}, directive(preprocess.ImputeConstant, preprocess.EncodeNone, preprocess.ScaleNone), []string{"x", "missing", "y"}},
		{"constant fill value", []string{"1", "", "3"}, preprocess.Directive{Imputation: preprocess.ImputeConstant, Encoding: preprocess.EncodeNone, Scaling: preprocess.ScaleNone, FillValue: &fill}, []string{"1", "9", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := make([]string, len(tt.cells))
			for i := range ids {
				ids[i] = fmt.Sprintf("%d", i)
			}
			ds := newTestDataset(strCol("id", ids...), strCol("v", tt.cells...))
			plan := preprocess.NewPlan()
			plan.Set("v", tt.d)

			result, err := newTestExecutor().Execute(context.Background(), ds, plan)
			require.NoError(t, err)
			v, _ := result.Table.Column("v")
			assert.Equal(t, tt.want, cellStrings(v))
		})
	}
}

func TestExecuteSkipsInapplicableDirectives(t *testing.T) {
	ds := newTestDataset(
		strCol("id", "1", "2", "3"),
		strCol("name", "ann", "", "bo"),
		strCol("blank", "", "", ""),
	)
	plan := preprocess.NewPlan()
	plan.Set("name", directive(preprocess.ImputeMean, preprocess.EncodeNone, preprocess.ScaleStandard))
	plan.Set("blank", directive(preprocess.ImputeMedian, preprocess.EncodeNone, preprocess.ScaleNone))

	result, err := newTestExecutor().Execute(context.Background(), ds, plan)
	require.NoError(t, err)

	for _, c := range result.Changes {
		assert.Equal(t, preprocess.ChangeSkipped, c.Kind, c.Detail)
	}
	assert.Len(t, result.ChangesFor("name"), 2)
	assert.Len(t, result.ChangesFor("blank"), 1)

	name, _ := result.Table.Column("name")
	assert.True(t, name.Cells[1].IsMissing())
}

func TestExecuteDoesNotMutateInput(t *testing.T) {
	ds := newTestDataset(
		strCol("id", "1", "2", "3"),
		strCol("color", "red", "", "blue"),
		strCol("x", "1", "", "3"),
	)
	before := preprocess.TableFingerprint(ds.Table)

	plan := preprocess.NewPlan()
	plan.Set("color", directive(preprocess.ImputeMostFrequent, preprocess.EncodeOneHot, preprocess.ScaleNone))
	plan.Set("x", directive(preprocess.ImputeMean, preprocess.EncodeNone, preprocess.ScaleStandard))

	_, err := newTestExecutor().Execute(context.Background(), ds, plan)
	require.NoError(t, err)

	assert.Equal(t, before, preprocess.TableFingerprint(ds.Table))
	assert.Equal(t, []string{"id", "color", "x"}, ds.Table.ColumnNames())
}

func TestExecuteIsDeterministic(t *testing.T) {
	build := func() *dataset.Dataset {
		return newTestDataset(
			strCol("id", seqValues(12, "%d")...),
			strCol("tier", "g", "s", "b", "g", "s", "b", "g", "", "p", "g", "s", "b"),
			strCol("amount", "10.5", "3", "", "8", "13", "21", "1", "2", "", "40", "7", "6"),
		)
	}
	plan := preprocess.NewPlan()
	plan.Set("tier", directive(preprocess.ImputeMostFrequent, preprocess.EncodeOneHot, preprocess.ScaleNone))
	plan.Set("amount", directive(preprocess.ImputeMedian, preprocess.EncodeNone, preprocess.ScaleStandard))

	first, err := newTestExecutor().Execute(context.Background(), build(), plan)
	require.NoError(t, err)
	second, err := newTestExecutor().Execute(context.Background(), build(), plan)
	require.NoError(t, err)

	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.Changes, second.Changes)
	assert.Equal(t, 12, first.RowCount)
}

func TestExecutePlanMismatch(t *testing.T) {
	ds := newTestDataset(strCol("id", "1", "2"), strCol("x", "1", "2"))
	exec := newTestExecutor()

	plan := preprocess.NewPlan()
	plan.Set("x", preprocess.NoOp())
	plan.Set("height", preprocess.NoOp())
	plan.Set("weight", preprocess.NoOp())

	_, err := exec.Execute(context.Background(), ds, plan)
	require.ErrorIs(t, err, core.ErrPlanMismatch)
	var mismatch *core.PlanMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []string{"height", "weight"}, mismatch.Columns)

	bad := preprocess.NewPlan()
	bad.Set("x", preprocess.Directive{Imputation: "mode", Encoding: preprocess.EncodeNone, Scaling: preprocess.ScaleNone})
	_, err = exec.Execute(context.Background(), ds, bad)
	assert.ErrorIs(t, err, core.ErrPlanMismatch)
}

func TestExecuteEmptyDataset(t *testing.T) {
	_, err := newTestExecutor().Execute(context.Background(), newTestDataset(), preprocess.NewPlan())
	assert.ErrorIs(t, err, core.ErrEmptyDataset)
}
