package ports

import (
	"context"

	"tabprep/domain/datareadiness/profiling"
	"tabprep/domain/dataset"
	"tabprep/domain/preprocess"
)

// ProfilerPort analyzes a table and returns one profile per column
type ProfilerPort interface {
	ProfileTable(ctx context.Context, table *dataset.Table) ([]profiling.ColumnProfile, error)
}

// RecommenderPort turns profiles into a complete transformation plan
type RecommenderPort interface {
	Recommend(profiles []profiling.ColumnProfile) preprocess.Plan
}

// ExecutorPort applies a plan to a dataset without mutating it
type ExecutorPort interface {
	Execute(ctx context.Context, ds *dataset.Dataset, plan preprocess.Plan) (*preprocess.ExecutionResult, error)
}
