package profiling

import (
	"time"
)

// Role is the inferred semantic category of a column
type Role string

const (
	RoleNumeric     Role = "numeric"
	RoleCategorical Role = "categorical"
	RoleDatetime    Role = "datetime"
	RoleText        Role = "text"
	RoleIdentifier  Role = "identifier"
)

// OutlierMethod names the detector that flagged a value
type OutlierMethod string

const (
	MethodIQR    OutlierMethod = "iqr"
	MethodZScore OutlierMethod = "zscore"
)

// ColumnProfile contains the statistical profile of one column
type ColumnProfile struct {
	Name         string  `json:"name"`
	Position     int     `json:"position"`
	Role         Role    `json:"role"`
	AllMissing   bool    `json:"all_missing"`
	RowCount     int     `json:"row_count"`
	MissingCount int     `json:"missing_count"`
	MissingRatio float64 `json:"missing_ratio"`
	UniqueCount  int     `json:"unique_count"`

	// Only populated for numeric columns
	Outliers []Outlier `json:"outliers,omitempty"`

	Numeric   *NumericStats       `json:"numeric_stats,omitempty"`
	TopValues []CategoryFrequency `json:"top_values,omitempty"`
	Datetime  *DatetimeStats      `json:"datetime_stats,omitempty"`
}

// HasOutliers reports whether any detector flagged a row
func (p ColumnProfile) HasOutliers() bool {
	return len(p.Outliers) > 0
}

// OutlierIndices returns the flagged row indices in ascending order
func (p ColumnProfile) OutlierIndices() []int {
	idx := make([]int, len(p.Outliers))
	for i, o := range p.Outliers {
		idx[i] = o.Index
	}
	return idx
}

// Outlier is a flagged row in a numeric column
type Outlier struct {
	Index   int             `json:"index"`
	Value   float64         `json:"value"`
	Methods []OutlierMethod `json:"methods"`
}

// NumericStats contains statistics for numeric columns. Std is the sample
// standard deviation and is zero when fewer than two values exist.
type NumericStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
}

// CategoryFrequency represents a value and its frequency among non-missing cells
type CategoryFrequency struct {
	Value string  `json:"value"`
	Count int     `json:"count"`
	Ratio float64 `json:"ratio"`
}

// DatetimeStats contains the observed range of a datetime column
type DatetimeStats struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// Config defines the classification, profiling and recommendation thresholds
type Config struct {
	// Classifier
	DatetimeRatio                float64 `json:"datetime_ratio"`                 // share of non-missing values that must parse as dates
	NumericCardinalityMultiplier float64 `json:"numeric_cardinality_multiplier"` // distinct > k*sqrt(rows) keeps a numeric column numeric
	CategoricalRatio             float64 `json:"categorical_ratio"`              // distinct < ratio*rows for text to be categorical
	CategoricalMinDistinct       int     `json:"categorical_min_distinct"`
	CategoricalMaxDistinct       int     `json:"categorical_max_distinct"`

	// Profiler
	IQRMultiplier  float64 `json:"iqr_multiplier"`
	ZThreshold     float64 `json:"z_threshold"`
	TopCategories  int     `json:"top_categories"`
	ProfileWorkers int     `json:"profile_workers"`

	// Recommender and executor; both read the same value so a recommended
	// one-hot never expands differently at execution time.
	OneHotMaxCategories int `json:"one_hot_max_categories"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		DatetimeRatio:                0.9,
		NumericCardinalityMultiplier: 2.0,
		CategoricalRatio:             0.05,
		CategoricalMinDistinct:       10,
		CategoricalMaxDistinct:       50,
		IQRMultiplier:                1.5,
		ZThreshold:                   3.0,
		TopCategories:                10,
		ProfileWorkers:               4,
		OneHotMaxCategories:          20,
	}
}
