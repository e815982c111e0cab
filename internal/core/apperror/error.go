// Package apperror provides structured error handling for the sequence engine.
// All engine errors must use AppError so callers can map them to consistent
// API responses without parsing message strings.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the generation engine
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Pattern errors
	CodePatternSyntax     = "PATTERN_SYNTAX"
	CodePatternValidation = "PATTERN_VALIDATION"

	// Sequence lifecycle errors
	CodeSequenceNotFound = "SEQUENCE_NOT_FOUND"
	CodeSequenceDisabled = "SEQUENCE_DISABLED"

	// Counter protocol errors
	CodeCounterIncrement = "COUNTER_INCREMENT"
	CodeLockTimeout      = "LOCK_TIMEOUT"

	// Generic validation / conflict errors
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeDuplicate  = "DUPLICATE_ENTRY"
)

// AppError is the standard error type for the engine.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (variable names, positions, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewPatternSyntax creates a malformed-pattern error, detected at parse time.
func NewPatternSyntax(message string, position int) *AppError {
	return &AppError{
		Code:       CodePatternSyntax,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"position": position},
	}
}

// NewPatternValidation creates an error for syntactically valid patterns that
// cannot be evaluated (unknown variable, missing context, bad parameter).
func NewPatternValidation(message string) *AppError {
	return &AppError{
		Code:       CodePatternValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewUnknownVariable reports a pattern variable that is neither a built-in
// nor registered in the variable registry.
func NewUnknownVariable(name string) *AppError {
	return NewPatternValidation(fmt.Sprintf("unknown variable %q", name)).
		WithDetail("variable", name)
}

// NewUnsupportedParameter reports a parameter given to a variable that does
// not accept it.
func NewUnsupportedParameter(variable, param string) *AppError {
	return NewPatternValidation(fmt.Sprintf("variable %q does not support parameter %q", variable, param)).
		WithDetail("variable", variable).
		WithDetail("parameter", param)
}

// NewSequenceNotFound is returned when no sequence is provisioned under
// (scope, name) and auto-provisioning is disabled.
func NewSequenceNotFound(scope, name string) *AppError {
	return &AppError{
		Code:       CodeSequenceNotFound,
		Message:    "sequence not found",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"scope": scope, "sequence": name},
	}
}

// NewSequenceDisabled is returned when generating against a soft-disabled sequence.
func NewSequenceDisabled(scope, name string) *AppError {
	return &AppError{
		Code:       CodeSequenceDisabled,
		Message:    "sequence is disabled",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"scope": scope, "sequence": name},
	}
}

// NewCounterIncrement wraps a store-level failure during the atomic increment.
// No counter was consumed; the caller decides whether to retry.
func NewCounterIncrement(err error) *AppError {
	return &AppError{
		Code:       CodeCounterIncrement,
		Message:    "counter increment failed",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewLockTimeout is returned when the row lock was not acquired within the
// caller's budget. Lock acquisition is all-or-nothing, so retries are safe.
func NewLockTimeout(scope, name string) *AppError {
	return &AppError{
		Code:       CodeLockTimeout,
		Message:    "counter lock not acquired in time",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"scope": scope, "sequence": name},
	}
}

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode checks whether err carries the given engine code.
func IsCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsLockTimeout checks if error is CodeLockTimeout
func IsLockTimeout(err error) bool {
	return IsCode(err, CodeLockTimeout)
}

// IsSequenceNotFound checks if error is CodeSequenceNotFound
func IsSequenceNotFound(err error) bool {
	return IsCode(err, CodeSequenceNotFound)
}

// IsPatternValidation checks if error is CodePatternValidation
func IsPatternValidation(err error) bool {
	return IsCode(err, CodePatternValidation)
}
