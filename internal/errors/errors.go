package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeLocalPersistence = "LOCAL_PERSISTENCE_ERROR"
	ErrCodeSync             = "SYNC_ERROR"
	ErrCodeMigration        = "MIGRATION_ERROR"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	Code    string // Error code (e.g., "NOT_FOUND", "VALIDATION_ERROR")
	Message string // Human-readable error message
	Status  int    // HTTP status code
	Err     error  // Wrapped underlying error (optional)
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error wrapping support
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new NOT_FOUND error
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %v", resource, id),
		Status:  404,
	}
}

// NewValidationError creates a new VALIDATION_ERROR
func NewValidationError(field string, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("validation failed for %s: %s", field, reason),
		Status:  400,
	}
}

// WrapValidationError creates a VALIDATION_ERROR that keeps the cause for errors.Is.
func WrapValidationError(field string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("validation failed for %s: %v", field, err),
		Status:  400,
		Err:     err,
	}
}

// NewInternalError creates a new INTERNAL_ERROR
func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "internal server error",
		Status:  500,
		Err:     err,
	}
}

// NewBadRequestError creates a new BAD_REQUEST error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
		Status:  400,
	}
}

// NewLocalPersistenceError reports that a learning event could not be made durable.
func NewLocalPersistenceError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeLocalPersistence,
		Message: "failed to persist progress locally",
		Status:  503,
		Err:     err,
	}
}

// NewSyncError reports a remote push or pull failure.
func NewSyncError(op string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeSync,
		Message: fmt.Sprintf("remote %s failed", op),
		Status:  502,
		Err:     err,
	}
}

// NewSyncRejectedError reports a sync request the current state cannot serve,
// such as no remote store, no signed-in user or no connectivity.
func NewSyncRejectedError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeSync,
		Message: err.Error(),
		Status:  http.StatusConflict,
		Err:     err,
	}
}

// NewMigrationError reports persisted state the migration gate could not repair.
func NewMigrationError(reason string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeMigration,
		Message: reason,
		Status:  500,
		Err:     err,
	}
}

// HasCode reports whether err is (or wraps) an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// AsAppError returns err as an AppError, wrapping unknown errors as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(err)
}
