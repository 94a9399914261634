package datareadiness

import (
	"context"
	"fmt"
	"sort"

	"tabprep/adapters/datareadiness/coercer"
	"tabprep/domain/core"
	"tabprep/domain/datareadiness/profiling"
	"tabprep/domain/dataset"
	"tabprep/domain/preprocess"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	defaultNumericFill = 0
	defaultTextFill    = "missing"
	otherCategory      = "other"
)

// Executor applies transformation plans to datasets
type Executor struct {
	coercer *coercer.TypeCoercer
	config  profiling.Config
}

// NewExecutor creates an executor. It must share its OneHotMaxCategories
// with the recommender.
func NewExecutor(c *coercer.TypeCoercer, config profiling.Config) *Executor {
	return &Executor{coercer: c, config: config}
}

// execution is the mutable state of one Execute call
type execution struct {
	*Executor
	table   *dataset.Table
	changes []preprocess.Change
}

// Execute runs the plan against a copy of the dataset's table. Columns are
// visited in table order and each directive runs imputation, then encoding,
// then scaling. The source table is never modified.
func (e *Executor) Execute(ctx context.Context, ds *dataset.Dataset, plan preprocess.Plan) (*preprocess.ExecutionResult, error) {
	if ds == nil || ds.Table == nil || ds.Table.ColumnCount() == 0 || ds.Table.RowCount() == 0 {
		return nil, core.ErrEmptyDataset
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	var missing []string
	for _, col := range plan.Columns {
		if ds.Table.Index(col) < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, core.NewPlanMismatch(missing...)
	}

	run := &execution{Executor: e, table: ds.Table.Clone()}
	for _, name := range ds.Table.ColumnNames() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, ok := plan.Get(name)
		if !ok || d.IsNoOp() {
			continue
		}
		run.apply(name, d)
	}

	rows := run.table.RowCount()
	if rows != ds.Table.RowCount() {
		return nil, fmt.Errorf("execution changed row count from %d to %d", ds.Table.RowCount(), rows)
	}

	return &preprocess.ExecutionResult{
		SourceID:      ds.ID,
		SourceVersion: ds.Version,
		Plan:          plan,
		Table:         run.table,
		Changes:       run.changes,
		RowCount:      rows,
		ColumnsBefore: ds.Table.ColumnCount(),
		ColumnsAfter:  run.table.ColumnCount(),
		Fingerprint:   preprocess.TableFingerprint(run.table),
	}, nil
}

func (r *execution) apply(name string, d preprocess.Directive) {
	idx := r.table.Index(name)

	if d.Imputation != preprocess.ImputeNone {
		r.impute(&r.table.Columns[idx], d)
	}

	if d.Encoding == preprocess.EncodeOneHot && r.oneHot(idx) {
		if d.Scaling != preprocess.ScaleNone {
			r.skip(name, fmt.Sprintf("%s scaling not applied: column was one-hot encoded", d.Scaling))
		}
		return
	}

	if d.Scaling != preprocess.ScaleNone {
		r.scale(&r.table.Columns[idx], d.Scaling)
	}
}

func (r *execution) record(kind preprocess.ChangeKind, column, source, detail string) {
	r.changes = append(r.changes, preprocess.Change{Kind: kind, Column: column, Source: source, Detail: detail})
}

func (r *execution) skip(column, detail string) {
	r.record(preprocess.ChangeSkipped, column, "", detail)
}

// impute fills missing cells only
func (r *execution) impute(col *dataset.Column, d preprocess.Directive) {
	gaps := 0
	for _, cell := range col.Cells {
		if cell.IsMissing() {
			gaps++
		}
	}
	if gaps == 0 {
		return
	}

	fill, reason := r.fillValue(*col, d)
	if reason != "" {
		r.skip(col.Name, fmt.Sprintf("%s imputation not applied: %s", d.Imputation, reason))
		return
	}

	for i, cell := range col.Cells {
		if cell.IsMissing() {
			col.Cells[i] = fill
		}
	}
	r.record(preprocess.ChangeImputed, col.Name, "",
		fmt.Sprintf("%s: filled %d cells with %q", d.Imputation, gaps, fill.String()))
}

// fillValue computes the replacement for missing cells. A non-empty reason
// means the strategy cannot apply to this column.
func (r *execution) fillValue(col dataset.Column, d preprocess.Directive) (dataset.Value, string) {
	switch d.Imputation {
	case preprocess.ImputeMean, preprocess.ImputeMedian:
		values, ok := r.numericCells(col)
		if !ok {
			return dataset.Value{}, "column has non-numeric values"
		}
		if len(values) == 0 {
			return dataset.Value{}, "column has no observed values"
		}
		var v float64
		if d.Imputation == preprocess.ImputeMean {
			v, _ = stats.Mean(values)
		} else {
			v, _ = stats.Median(values)
		}
		return dataset.NewNumericValue(v), ""

	case preprocess.ImputeMostFrequent:
		freq := CategoryCounts(col)
		if len(freq) == 0 {
			return dataset.Value{}, "column has no observed values"
		}
		mode := mostFrequent(freq)
		for _, cell := range col.Cells {
			if !cell.IsMissing() && cell.Key() == mode {
				return cell, ""
			}
		}

	case preprocess.ImputeConstant:
		if d.FillValue != nil {
			v := r.coercer.Coerce(*d.FillValue)
			if v.IsMissing() {
				return dataset.Value{}, "fill_value is empty"
			}
			return v, ""
		}
		if _, ok := r.numericCells(col); ok {
			return dataset.NewNumericValue(defaultNumericFill), ""
		}
		return dataset.NewStringValue(defaultTextFill), ""
	}

	return dataset.Value{}, "unsupported strategy"
}

// numericCells parses every non-missing cell; ok is false if any fails
func (r *execution) numericCells(col dataset.Column) ([]float64, bool) {
	values := make([]float64, 0, len(col.Cells))
	for _, cell := range col.Cells {
		if cell.IsMissing() {
			continue
		}
		v, ok := r.coercer.ParseNumber(cell)
		if !ok {
			return nil, false
		}
		values = append(values, v)
	}
	return values, true
}

// oneHot replaces the column at idx with 0/1 indicator columns. It reports
// false when there was nothing to encode.
func (r *execution) oneHot(idx int) bool {
	col := r.table.Columns[idx]
	freq := CategoryCounts(col)
	if len(freq) == 0 {
		r.skip(col.Name, "one_hot encoding not applied: column has no observed values")
		return false
	}

	categories := rankCategories(freq)
	withOther := false
	if limit := r.config.OneHotMaxCategories; limit > 0 && len(categories) > limit {
		categories = categories[:limit-1]
		withOther = true
	}
	sort.Strings(categories)

	kept := make(map[string]bool, len(categories))
	for _, c := range categories {
		kept[c] = true
	}

	taken := make(map[string]bool, len(r.table.Columns))
	for i, c := range r.table.Columns {
		if i != idx {
			taken[c.Name] = true
		}
	}

	rows := len(col.Cells)
	indicators := make([]dataset.Column, 0, len(categories)+1)
	for _, category := range categories {
		cells := make([]dataset.Value, rows)
		for i, cell := range col.Cells {
			cells[i] = indicator(!cell.IsMissing() && cell.Key() == category)
		}
		indicators = append(indicators, dataset.Column{Name: uniqueName(col.Name+"_"+category, taken), Cells: cells})
	}
	if withOther {
		cells := make([]dataset.Value, rows)
		for i, cell := range col.Cells {
			cells[i] = indicator(!cell.IsMissing() && !kept[cell.Key()])
		}
		indicators = append(indicators, dataset.Column{Name: uniqueName(col.Name+"_"+otherCategory, taken), Cells: cells})
	}

	columns := make([]dataset.Column, 0, len(r.table.Columns)+len(indicators)-1)
	columns = append(columns, r.table.Columns[:idx]...)
	columns = append(columns, indicators...)
	columns = append(columns, r.table.Columns[idx+1:]...)
	r.table.Columns = columns

	r.record(preprocess.ChangeRemoved, col.Name, "", fmt.Sprintf("one_hot: replaced by %d indicator columns", len(indicators)))
	for _, ind := range indicators {
		r.record(preprocess.ChangeAdded, ind.Name, col.Name, "one_hot indicator")
	}
	return true
}

// scale rescales the numeric cells of a column in place. Missing cells stay missing.
func (r *execution) scale(col *dataset.Column, scaling preprocess.Scaling) {
	values, ok := r.numericCells(*col)
	if !ok {
		r.skip(col.Name, fmt.Sprintf("%s scaling not applied: column has non-numeric values", scaling))
		return
	}
	if len(values) == 0 {
		r.skip(col.Name, fmt.Sprintf("%s scaling not applied: column has no observed values", scaling))
		return
	}

	var transform func(float64) float64
	var detail string
	switch scaling {
	case preprocess.ScaleStandard:
		mean, std := stat.PopMeanStdDev(values, nil)
		transform = func(v float64) float64 {
			if std == 0 {
				return 0
			}
			return (v - mean) / std
		}
		detail = fmt.Sprintf("standard: mean=%g std=%g", mean, std)
	case preprocess.ScaleMinMax:
		min, max := floats.Min(values), floats.Max(values)
		transform = func(v float64) float64 {
			if max == min {
				return 0
			}
			return (v - min) / (max - min)
		}
		detail = fmt.Sprintf("minmax: min=%g max=%g", min, max)
	default:
		r.skip(col.Name, fmt.Sprintf("unsupported scaling %q", scaling))
		return
	}

	for i, cell := range col.Cells {
		if cell.IsMissing() {
			continue
		}
		v, _ := r.coercer.ParseNumber(cell)
		col.Cells[i] = dataset.NewNumericValue(transform(v))
	}
	r.record(preprocess.ChangeScaled, col.Name, "", detail)
}

func indicator(on bool) dataset.Value {
	if on {
		return dataset.NewNumericValue(1)
	}
	return dataset.NewNumericValue(0)
}

// rankCategories orders categories by count descending, then value ascending
func rankCategories(freq map[string]int) []string {
	out := make([]string, 0, len(freq))
	for k := range freq {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if freq[out[i]] != freq[out[j]] {
			return freq[out[i]] > freq[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// mostFrequent returns the modal category; ties go to the smallest value
func mostFrequent(freq map[string]int) string {
	return rankCategories(freq)[0]
}

// uniqueName returns name, or name_2, name_3... if already taken, and marks it taken
func uniqueName(name string, taken map[string]bool) string {
	candidate := name
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%d", name, n)
	}
	taken[candidate] = true
	return candidate
}
