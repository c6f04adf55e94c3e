// Package apperror provides structured error handling for the stock ledger.
// All business errors must use AppError so callers can render precise messages.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Business rule violations (422)
	CodeInvalidState         = "INVALID_STATE"
	CodeInsufficientQuantity = "INSUFFICIENT_QUANTITY"
	CodeConservation         = "CONSERVATION_VIOLATION"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict       = "CONFLICT"
	CodeLockContention = "LOCK_CONTENTION"

	// Authentication (401)
	CodeUnauthorized = "UNAUTHORIZED"
)

// AppError is the standard error type for the ledger.
// It implements the error interface and carries structured details
// (entity id, current vs. requested quantity, current state) so the
// boundary layer can render a message warehouse staff can act on.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (quantities, states, ids)
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

// NewInvalidState creates an error for operations against an entity whose
// lifecycle state does not permit them (e.g. adding a case to a sealed pallet).
func NewInvalidState(entity string, current, required string) *AppError {
	return &AppError{
		Code:       CodeInvalidState,
		Message:    fmt.Sprintf("%s is %s, operation requires %s", entity, current, required),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"entity": entity, "current": current, "required": required},
	}
}

// NewInsufficientQuantity creates a quantity shortage error.
// Message names both quantities so warehouse staff can self-correct.
func NewInsufficientQuantity(counter string, available, requested int) *AppError {
	return &AppError{
		Code:       CodeInsufficientQuantity,
		Message:    fmt.Sprintf("%s: %d, requested: %d", counter, available, requested),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"counter":   counter,
			"available": available,
			"requested": requested,
		},
	}
}

// NewConservation creates an error for repack configurations that would
// create or destroy bottles.
func NewConservation(message string) *AppError {
	return &AppError{
		Code:       CodeConservation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewLockContention is returned when identifier issuance could not acquire
// its scope lock within the retry bound.
func NewLockContention(scope string) *AppError {
	return &AppError{
		Code:       CodeLockContention,
		Message:    "Sequence scope is busy, retry the operation",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"scope": scope},
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
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

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsInsufficientQuantity checks if error is CodeInsufficientQuantity
func IsInsufficientQuantity(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeInsufficientQuantity
	}
	return false
}

// IsInvalidState checks if error is CodeInvalidState
func IsInvalidState(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeInvalidState
	}
	return false
}
