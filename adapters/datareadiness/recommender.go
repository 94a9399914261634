package datareadiness

import (
	"tabprep/domain/datareadiness/profiling"
	"tabprep/domain/preprocess"
)

// Recommender turns column profiles into a transformation plan
type Recommender struct {
	config profiling.Config
}

// NewRecommender creates a recommender
func NewRecommender(config profiling.Config) *Recommender {
	return &Recommender{config: config}
}

// Recommend builds a plan with one directive per profiled column, in
// profile order. It reads nothing but the profiles.
func (r *Recommender) Recommend(profiles []profiling.ColumnProfile) preprocess.Plan {
	plan := preprocess.NewPlan()
	for _, p := range profiles {
		plan.Set(p.Name, r.RecommendColumn(p))
	}
	return plan
}

// RecommendColumn picks the directive for one column
func (r *Recommender) RecommendColumn(p profiling.ColumnProfile) preprocess.Directive {
	d := preprocess.NoOp()
	if p.AllMissing {
		return d
	}

	switch p.Role {
	case profiling.RoleNumeric:
		d.Imputation = preprocess.ImputeMean
		if p.MissingCount > 0 && p.HasOutliers() {
			d.Imputation = preprocess.ImputeMedian
		}
		d.Scaling = preprocess.ScaleStandard
		if p.Numeric != nil && p.Numeric.Min >= 0 && p.Numeric.Max <= 1 {
			d.Scaling = preprocess.ScaleMinMax
		}
	case profiling.RoleCategorical:
		d.Imputation = preprocess.ImputeMostFrequent
		if p.UniqueCount <= r.config.OneHotMaxCategories {
			d.Encoding = preprocess.EncodeOneHot
		}
	}

	return d
}
