package errors

import (
	stderrors "errors"
	"fmt"

	"tabprep/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    Code(err),
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeDatabaseError     = "DATABASE_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeEmptyDataset      = "EMPTY_DATASET"
	CodePlanMismatch      = "PLAN_MISMATCH"
	CodeConflictingWrite  = "CONFLICTING_WRITE"
	CodeInvalidMode       = "INVALID_MODE"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
)

var domainCodes = []struct {
	err  error
	code string
}{
	{core.ErrNotFound, CodeNotFound},
	{core.ErrEmptyDataset, CodeEmptyDataset},
	{core.ErrPlanMismatch, CodePlanMismatch},
	{core.ErrConflictingWrite, CodeConflictingWrite},
	{core.ErrInvalidMode, CodeInvalidMode},
	{core.ErrUnsupportedFormat, CodeUnsupportedFormat},
	{core.ErrFileTooLarge, CodeFileTooLarge},
}

// Code returns a stable code for err: the domain error it wraps if any,
// then an AppError code anywhere in the chain, else INTERNAL_ERROR
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, dc := range domainCodes {
		if stderrors.Is(err, dc.err) {
			return dc.code
		}
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalError
}

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string) *AppError {
	return New(CodeDatabaseError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}
