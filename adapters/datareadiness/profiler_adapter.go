package datareadiness

import (
	"context"
	"fmt"
	"math"
	"sort"

	"tabprep/adapters/datareadiness/coercer"
	"tabprep/domain/core"
	"tabprep/domain/datareadiness/profiling"
	"tabprep/domain/dataset"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
)

// ProfilerAdapter implements ProfilerPort for column quality profiling
type ProfilerAdapter struct {
	classifier *Classifier
	coercer    *coercer.TypeCoercer
	config     profiling.Config
}

// NewProfilerAdapter creates a new profiler adapter
func NewProfilerAdapter(c *coercer.TypeCoercer, config profiling.Config) *ProfilerAdapter {
	return &ProfilerAdapter{
		classifier: NewClassifier(c, config),
		coercer:    c,
		config:     config,
	}
}

// ProfileTable profiles every column. Columns are profiled concurrently but
// returned in column order. Data-quality problems never fail the call; only
// an empty table does.
func (p *ProfilerAdapter) ProfileTable(ctx context.Context, table *dataset.Table) ([]profiling.ColumnProfile, error) {
	if table == nil || table.ColumnCount() == 0 || table.RowCount() == 0 {
		return nil, core.ErrEmptyDataset
	}

	profiles := make([]profiling.ColumnProfile, table.ColumnCount())

	g, gctx := errgroup.WithContext(ctx)
	if p.config.ProfileWorkers > 0 {
		g.SetLimit(p.config.ProfileWorkers)
	}
	for i := range table.Columns {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			profiles[i] = p.ProfileColumn(table.Columns[i], i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("profiling interrupted: %w", err)
	}

	return profiles, nil
}

// ProfileColumn analyzes a single column
func (p *ProfilerAdapter) ProfileColumn(col dataset.Column, position int) profiling.ColumnProfile {
	cls := p.classifier.ClassifyColumn(col, position)
	rows := cls.Stats.RowCount
	missing := rows - cls.Stats.NonMissing

	profile := profiling.ColumnProfile{
		Name:         col.Name,
		Position:     position,
		Role:         cls.Role,
		AllMissing:   cls.AllMissing,
		RowCount:     rows,
		MissingCount: missing,
		UniqueCount:  cls.Stats.Distinct,
	}
	if rows > 0 {
		profile.MissingRatio = float64(missing) / float64(rows)
	}
	if cls.AllMissing {
		return profile
	}

	// Add role-specific stats
	switch cls.Role {
	case profiling.RoleNumeric:
		values, indices := p.numericValues(col)
		profile.Numeric = p.computeNumericStats(values)
		profile.Outliers = p.detectOutliers(values, indices, profile.Numeric)
	case profiling.RoleCategorical:
		profile.TopValues = p.computeTopValues(col, cls.Stats.NonMissing)
	case profiling.RoleDatetime:
		profile.Datetime = p.computeDatetimeStats(col)
	}

	return profile
}

// numericValues returns the parsed numbers and their row indices
func (p *ProfilerAdapter) numericValues(col dataset.Column) ([]float64, []int) {
	values := make([]float64, 0, len(col.Cells))
	indices := make([]int, 0, len(col.Cells))
	for i, cell := range col.Cells {
		if cell.IsMissing() {
			continue
		}
		if v, ok := p.coercer.ParseNumber(cell); ok {
			values = append(values, v)
			indices = append(indices, i)
		}
	}
	return values, indices
}

// computeNumericStats calculates summary statistics; nil when there are no values
func (p *ProfilerAdapter) computeNumericStats(values []float64) *profiling.NumericStats {
	if len(values) == 0 {
		return nil
	}

	mean, _ := stats.Mean(values)
	min, _ := stats.Min(values)
	max, _ := stats.Max(values)
	median, _ := stats.Median(values)

	var std float64
	if len(values) > 1 {
		std, _ = stats.StandardDeviationSample(values)
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return &profiling.NumericStats{
		Count:  len(values),
		Min:    min,
		Max:    max,
		Mean:   mean,
		Std:    std,
		Q1:     quantile(sorted, 0.25),
		Median: median,
		Q3:     quantile(sorted, 0.75),
	}
}

// quantile interpolates linearly between the closest ranks of sorted values
// (position (n-1)*p), the same estimate numpy.percentile makes by default
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// detectOutliers flags rows by IQR fences and by z-score; a row flagged by
// either detector is reported once with every method that caught it. A zero
// IQR or zero std disables that detector.
func (p *ProfilerAdapter) detectOutliers(values []float64, indices []int, s *profiling.NumericStats) []profiling.Outlier {
	if s == nil {
		return nil
	}

	iqr := s.Q3 - s.Q1
	lower := s.Q1 - p.config.IQRMultiplier*iqr
	upper := s.Q3 + p.config.IQRMultiplier*iqr
	useIQR := iqr > 0
	useZ := s.Std > 0 && !math.IsNaN(s.Std)

	var outliers []profiling.Outlier
	for i, x := range values {
		var methods []profiling.OutlierMethod
		if useIQR && (x < lower || x > upper) {
			methods = append(methods, profiling.MethodIQR)
		}
		if useZ && math.Abs((x-s.Mean)/s.Std) > p.config.ZThreshold {
			methods = append(methods, profiling.MethodZScore)
		}
		if len(methods) > 0 {
			outliers = append(outliers, profiling.Outlier{Index: indices[i], Value: x, Methods: methods})
		}
	}
	return outliers
}

// computeTopValues returns the most frequent categories, most frequent first
func (p *ProfilerAdapter) computeTopValues(col dataset.Column, nonMissing int) []profiling.CategoryFrequency {
	freq := CategoryCounts(col)
	if len(freq) == 0 {
		return nil
	}

	top := make([]profiling.CategoryFrequency, 0, len(freq))
	for value, count := range freq {
		top = append(top, profiling.CategoryFrequency{
			Value: value,
			Count: count,
			Ratio: float64(count) / float64(nonMissing),
		})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Value < top[j].Value
	})

	if p.config.TopCategories > 0 && len(top) > p.config.TopCategories {
		top = top[:p.config.TopCategories]
	}
	return top
}

// computeDatetimeStats returns the observed time range
func (p *ProfilerAdapter) computeDatetimeStats(col dataset.Column) *profiling.DatetimeStats {
	var out *profiling.DatetimeStats
	for _, cell := range col.Cells {
		if cell.IsMissing() {
			continue
		}
		ts, ok := p.coercer.ParseTimestamp(cell)
		if !ok {
			continue
		}
		if out == nil {
			out = &profiling.DatetimeStats{Min: ts, Max: ts}
			continue
		}
		if ts.Before(out.Min) {
			out.Min = ts
		}
		if ts.After(out.Max) {
			out.Max = ts
		}
	}
	return out
}

// CategoryCounts counts non-missing cells by value
func CategoryCounts(col dataset.Column) map[string]int {
	freq := make(map[string]int)
	for _, cell := range col.Cells {
		if !cell.IsMissing() {
			freq[cell.Key()]++
		}
	}
	return freq
}
