package datareadiness

import (
	"math"
	"regexp"

	"tabprep/adapters/datareadiness/coercer"
	"tabprep/domain/datareadiness/profiling"
	"tabprep/domain/dataset"
)

var (
	idNamePattern      = regexp.MustCompile(`(?i)^(id|uuid|guid)$|[_\-. ](id|uuid|guid)$`)
	camelIDNamePattern = regexp.MustCompile(`[a-z0-9](Id|ID|Uuid|UUID)$`)
)

// ColumnStats are the typed sample statistics role inference works from
type ColumnStats struct {
	Name          string  `json:"name"`
	Position      int     `json:"position"`
	RowCount      int     `json:"row_count"`
	NonMissing    int     `json:"non_missing"`
	Distinct      int     `json:"distinct"`
	NumericRatio  float64 `json:"numeric_ratio"`
	DatetimeRatio float64 `json:"datetime_ratio"`
	IDLikeName    bool    `json:"id_like_name"`
}

// Classification is the role assigned to one column
type Classification struct {
	Role       profiling.Role
	AllMissing bool
	Stats      ColumnStats
}

// IsIDLikeName reports whether a column name reads as an identifier
func IsIDLikeName(name string) bool {
	return idNamePattern.MatchString(name) || camelIDNamePattern.MatchString(name)
}

// ClassifyRole applies the ordered role heuristics; the first match wins.
// The second return value flags an all-missing column.
func ClassifyRole(s ColumnStats, cfg profiling.Config) (profiling.Role, bool) {
	if s.NonMissing == 0 {
		return profiling.RoleText, true
	}

	allUnique := s.Distinct == s.NonMissing && s.NonMissing == s.RowCount
	if allUnique && (s.IDLikeName || s.Position == 0) {
		return profiling.RoleIdentifier, false
	}

	// Checked before numeric so numeric-looking dates stay dates
	if s.DatetimeRatio >= cfg.DatetimeRatio {
		return profiling.RoleDatetime, false
	}

	if s.NumericRatio == 1 {
		threshold := cfg.NumericCardinalityMultiplier * math.Sqrt(float64(s.RowCount))
		if float64(s.Distinct) > threshold {
			return profiling.RoleNumeric, false
		}
		return profiling.RoleCategorical, false
	}

	if float64(s.Distinct) < categoricalLimit(s.RowCount, cfg) && s.Distinct < s.NonMissing {
		return profiling.RoleCategorical, false
	}

	return profiling.RoleText, false
}

// categoricalLimit is ratio*rows clamped to [min, max] distinct values
func categoricalLimit(rows int, cfg profiling.Config) float64 {
	limit := cfg.CategoricalRatio * float64(rows)
	if limit < float64(cfg.CategoricalMinDistinct) {
		limit = float64(cfg.CategoricalMinDistinct)
	}
	if cfg.CategoricalMaxDistinct > 0 && limit > float64(cfg.CategoricalMaxDistinct) {
		limit = float64(cfg.CategoricalMaxDistinct)
	}
	return limit
}

// Classifier infers a semantic role for every column of a table
type Classifier struct {
	coercer *coercer.TypeCoercer
	config  profiling.Config
}

// NewClassifier creates a classifier
func NewClassifier(c *coercer.TypeCoercer, config profiling.Config) *Classifier {
	return &Classifier{coercer: c, config: config}
}

// ColumnStats gathers the statistics for one column
func (c *Classifier) ColumnStats(col dataset.Column, position int) ColumnStats {
	analysis := c.coercer.AnalyzeTypeDistribution(col.Cells)
	return ColumnStats{
		Name:          col.Name,
		Position:      position,
		RowCount:      analysis.TotalCount,
		NonMissing:    analysis.ValidCount,
		Distinct:      analysis.DistinctCount,
		NumericRatio:  analysis.NumericRatio,
		DatetimeRatio: analysis.TimestampRatio,
		IDLikeName:    IsIDLikeName(col.Name),
	}
}

// ClassifyColumn assigns the role of the column at position
func (c *Classifier) ClassifyColumn(col dataset.Column, position int) Classification {
	stats := c.ColumnStats(col, position)
	role, allMissing := ClassifyRole(stats, c.config)
	return Classification{Role: role, AllMissing: allMissing, Stats: stats}
}

// Classify assigns a role to every column, in column order
func (c *Classifier) Classify(table *dataset.Table) []Classification {
	out := make([]Classification, len(table.Columns))
	for i, col := range table.Columns {
		out[i] = c.ClassifyColumn(col, i)
	}
	return out
}
