package core

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrDatasetNotFound = fmt.Errorf("%w: dataset", ErrNotFound)

	// Request errors
	ErrEmptyDataset     = errors.New("dataset has no usable rows or columns")
	ErrPlanMismatch     = errors.New("plan does not match dataset")
	ErrConflictingWrite = errors.New("conflicting write in progress")
	ErrInvalidMode      = errors.New("invalid persist mode")

	// Format errors
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileTooLarge      = errors.New("file exceeds maximum upload size")
)

// PlanMismatchError names the plan entries that could not be matched
// against the dataset being transformed.
type PlanMismatchError struct {
	Columns []string
	Reason  string
}

func (e *PlanMismatchError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "columns not present in dataset"
	}
	return fmt.Sprintf("%s: %s: %s", ErrPlanMismatch, reason, strings.Join(e.Columns, ", "))
}

// Is lets errors.Is(err, ErrPlanMismatch) match.
func (e *PlanMismatchError) Is(target error) bool {
	return target == ErrPlanMismatch
}

// NewPlanMismatch builds a PlanMismatchError for missing columns.
func NewPlanMismatch(columns ...string) *PlanMismatchError {
	return &PlanMismatchError{Columns: columns}
}
