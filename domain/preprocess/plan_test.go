package preprocess

import (
	"encoding/json"
	"errors"
	"testing"

	"tabprep/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recommended() Plan {
	p := NewPlan()
	p.Set("age", Directive{Imputation: ImputeMean, Encoding: EncodeNone, Scaling: ScaleStandard})
	p.Set("color", Directive{Imputation: ImputeMostFrequent, Encoding: EncodeOneHot, Scaling: ScaleNone})
	return p
}

func TestMergeReplacesOnlyGivenFields(t *testing.T) {
	override, err := ParseOverride([]byte(`{"age": {"scaling": "minmax"}}`))
	require.NoError(t, err)

	merged, err := recommended().Merge(override)
	require.NoError(t, err)

	age, _ := merged.Get("age")
	assert.Equal(t, ImputeMean, age.Imputation, "unspecified field keeps recommendation")
	assert.Equal(t, EncodeNone, age.Encoding)
	assert.Equal(t, ScaleMinMax, age.Scaling)

	color, _ := merged.Get("color")
	assert.Equal(t, recommended().Directives["color"], color)
}

func TestMergeDoesNotMutateBase(t *testing.T) {
	base := recommended()
	override := PlanOverride{}
	s := ScaleNone
	override.Set("age", DirectiveOverride{Scaling: &s})

	_, err := base.Merge(override)
	require.NoError(t, err)
	assert.Equal(t, ScaleStandard, base.Directives["age"].Scaling)
}

func TestMergeUnknownColumn(t *testing.T) {
	override, err := ParseOverride([]byte(`{"height": {"scaling": "minmax"}, "weight": {}}`))
	require.NoError(t, err)

	_, err = recommended().Merge(override)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrPlanMismatch))

	var mismatch *core.PlanMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{"height", "weight"}, mismatch.Columns)
}

func TestMergeInvalidValue(t *testing.T) {
	override, err := ParseOverride([]byte(`{"age": {"scaling": "log"}}`))
	require.NoError(t, err)

	_, err = recommended().Merge(override)
	assert.True(t, errors.Is(err, core.ErrPlanMismatch))
}

func TestOverrideIgnoresUnknownFields(t *testing.T) {
	override, err := ParseOverride([]byte(`{"age": {"imputation_strategy": "median", "comment": "x"}}`))
	require.NoError(t, err)

	d := override.Directives["age"]
	require.NotNil(t, d.Imputation)
	assert.Equal(t, ImputeMedian, *d.Imputation)
	assert.Nil(t, d.Scaling)
}

func TestEmptyOverride(t *testing.T) {
	override, err := ParseOverride(nil)
	require.NoError(t, err)
	assert.True(t, override.IsEmpty())
}

func TestPlanJSONKeepsColumnOrder(t *testing.T) {
	p := NewPlan()
	p.Set("z", NoOp())
	p.Set("a", Directive{Imputation: ImputeMedian, Encoding: EncodeNone, Scaling: ScaleMinMax})

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t,
		`{"z":{"imputation_strategy":"none","encoding":"none","scaling":"none"},"a":{"imputation_strategy":"median","encoding":"none","scaling":"minmax"}}`,
		string(data))

	var back Plan
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"z", "a"}, back.Columns)
	assert.Equal(t, p.Directives, back.Directives)
}

func TestPlanUnmarshalRejectsPartialDirectives(t *testing.T) {
	var p Plan
	err := json.Unmarshal([]byte(`{"age": {"scaling": "standard"}, "city": {"imputation_strategy": "none", "encoding": "none", "scaling": "none"}}`), &p)
	require.ErrorIs(t, err, core.ErrPlanMismatch)

	var mismatch *core.PlanMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []string{"age"}, mismatch.Columns)
}

func TestParsePersistMode(t *testing.T) {
	tests := []struct {
		in   string
		want PersistMode
	}{
		{"preview", Preview{}},
		{"Versioned", Versioned{}},
		{" overwrite ", Overwrite{}},
	}
	for _, tt := range tests {
		got, err := ParsePersistMode(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParsePersistMode("append")
	assert.True(t, errors.Is(err, core.ErrInvalidMode))
}
