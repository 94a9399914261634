package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tabprep/domain/preprocess"
	apperrors "tabprep/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `id,color,weight
1,red,2
2,red,4
3,blue,
4,,6
5,red,8
6,blue,10
7,green,12
8,red,14
9,blue,16
10,green,100
`

type prepEnv struct {
	dir  string
	file string
}

func newPrepEnv(t *testing.T) *prepEnv {
	dir := t.TempDir()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("UPLOAD_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("PROCESSED_DIR", filepath.Join(dir, "processed"))

	file := filepath.Join(dir, "sample.csv")
	require.NoError(t, os.WriteFile(file, []byte(sampleCSV), 0o644))
	return &prepEnv{dir: dir, file: file}
}

func run(t *testing.T, args ...string) (string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRecommendPrintsPlan(t *testing.T) {
	env := newPrepEnv(t)

	out, err := run(t, "recommend", env.file)
	require.NoError(t, err)

	var plan preprocess.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.Equal(t, 3, plan.Len())

	color, ok := plan.Get("color")
	require.True(t, ok)
	assert.Equal(t, preprocess.EncodeOneHot, color.Encoding)
	assert.True(t, strings.Index(out, `"id"`) < strings.Index(out, `"weight"`), "plan keeps column order")
}

func TestApplyVersionedWritesOutputs(t *testing.T) {
	env := newPrepEnv(t)
	output := filepath.Join(env.dir, "out.json")

	out, err := run(t, "apply", env.file, "--persist", "versioned", "-o", output)
	require.NoError(t, err)

	var applied struct {
		Outcome preprocess.PersistOutcome `json:"outcome"`
		Preview []map[string]string       `json:"preview"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &applied))
	assert.Equal(t, "versioned", applied.Outcome.Mode)
	assert.Equal(t, 2, applied.Outcome.Version)
	assert.FileExists(t, applied.Outcome.Path)
	assert.Len(t, applied.Preview, 10)

	assert.FileExists(t, output)
}

func TestApplyWithOverride(t *testing.T) {
	env := newPrepEnv(t)
	override := filepath.Join(env.dir, "override.json")
	require.NoError(t, os.WriteFile(override, []byte(`{"color": {"encoding": "none"}}`), 0o644))

	out, err := run(t, "apply", env.file, "--override", override)
	require.NoError(t, err)
	assert.Contains(t, out, `"mode": "preview"`)
	assert.NotContains(t, out, "color_red")
}

func TestExecuteRequiresPlan(t *testing.T) {
	env := newPrepEnv(t)
	_, err := run(t, "execute", env.file)
	assert.Error(t, err)
}

func TestExecutePlanFileKeepsRecommendation(t *testing.T) {
	env := newPrepEnv(t)
	plan := filepath.Join(env.dir, "plan.json")
	require.NoError(t, os.WriteFile(plan, []byte(`{"weight": {"scaling": "minmax"}}`), 0o644))

	out, err := run(t, "execute", env.file, "--plan", plan)
	require.NoError(t, err)

	var executed struct {
		Result struct {
			Plan    preprocess.Plan     `json:"plan"`
			Changes []preprocess.Change `json:"changes"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &executed))

	weight, ok := executed.Result.Plan.Get("weight")
	require.True(t, ok)
	assert.Equal(t, preprocess.ImputeMedian, weight.Imputation, "recommended imputation survives the partial plan")
	assert.Equal(t, preprocess.ScaleMinMax, weight.Scaling)

	color, ok := executed.Result.Plan.Get("color")
	require.True(t, ok)
	assert.Equal(t, preprocess.EncodeOneHot, color.Encoding, "columns left out of the plan keep the recommendation")

	kinds := map[preprocess.ChangeKind]bool{}
	for _, c := range executed.Result.Changes {
		if c.Column == "weight" {
			kinds[c.Kind] = true
		}
	}
	assert.True(t, kinds[preprocess.ChangeImputed])
	assert.True(t, kinds[preprocess.ChangeScaled])
	assert.Contains(t, out, "color_red")
}

func TestExecuteUnknownPlanColumn(t *testing.T) {
	env := newPrepEnv(t)
	plan := filepath.Join(env.dir, "plan.json")
	require.NoError(t, os.WriteFile(plan, []byte(`{"height": {"scaling": "minmax"}}`), 0o644))

	_, err := run(t, "execute", env.file, "--plan", plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "height")
}

func TestInvalidModeFails(t *testing.T) {
	env := newPrepEnv(t)
	_, err := run(t, "apply", env.file, "--persist", "sideways")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid persist mode")
}

func TestProfileRejectsDirectory(t *testing.T) {
	env := newPrepEnv(t)
	_, err := run(t, "profile", env.dir)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.Code(err))
	assert.Contains(t, err.Error(), "is a directory")
}

func TestExecuteMissingPlanFileNamesPath(t *testing.T) {
	env := newPrepEnv(t)
	missing := filepath.Join(env.dir, "nope.json")
	_, err := run(t, "execute", env.file, "--plan", missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.json")
}
