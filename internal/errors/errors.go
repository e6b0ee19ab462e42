package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Common error types that can be used across the application
var (
	ErrNotFound             = new(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists        = new(ErrCodeAlreadyExists, "resource already exists")
	ErrIdempotencyKeyReused = new(ErrCodeIdempotencyKeyReused, "idempotency key reused with different request")
	ErrIllegalTransition    = new(ErrCodeIllegalTransition, "illegal payment state transition")
	ErrStaleUpdate          = new(ErrCodeStaleUpdate, "concurrent update already applied")
	ErrRetryable            = new(ErrCodeRetryable, "transient failure, retry later")
	ErrRetriesExhausted     = new(ErrCodeRetriesExhausted, "retry attempts exhausted")
	ErrValidation           = new(ErrCodeValidation, "validation error")
	ErrInvalidOperation     = new(ErrCodeInvalidOperation, "invalid operation")
	ErrDatabase             = new(ErrCodeDatabase, "database error")
	ErrSystem               = new(ErrCodeSystemError, "system error")
	// maps errors to http status codes
	statusCodeMap = map[error]int{
		ErrNotFound:             http.StatusNotFound,
		ErrAlreadyExists:        http.StatusConflict,
		ErrIdempotencyKeyReused: http.StatusConflict,
		ErrIllegalTransition:    http.StatusUnprocessableEntity,
		ErrStaleUpdate:          http.StatusConflict,
		ErrRetryable:            http.StatusServiceUnavailable,
		ErrRetriesExhausted:     http.StatusUnprocessableEntity,
		ErrValidation:           http.StatusBadRequest,
		ErrInvalidOperation:     http.StatusBadRequest,
		ErrDatabase:             http.StatusInternalServerError,
		ErrSystem:               http.StatusInternalServerError,
	}
)

const (
	ErrCodeSystemError          = "system_error"
	ErrCodeNotFound             = "not_found"
	ErrCodeAlreadyExists        = "already_exists"
	ErrCodeIdempotencyKeyReused = "idempotency_key_reused"
	ErrCodeIllegalTransition    = "illegal_transition"
	ErrCodeStaleUpdate          = "stale_concurrent_update"
	ErrCodeRetryable            = "retryable_failure"
	ErrCodeRetriesExhausted     = "retries_exhausted"
	ErrCodeValidation           = "validation_error"
	ErrCodeInvalidOperation     = "invalid_operation"
	ErrCodeDatabase             = "database_error"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

// new creates a new InternalError
func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsIdempotencyKeyReused checks if an error is an idempotency key reuse conflict
func IsIdempotencyKeyReused(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyReused)
}

// IsIllegalTransition checks if an error is an illegal state transition
func IsIllegalTransition(err error) bool {
	return errors.Is(err, ErrIllegalTransition)
}

// IsStaleUpdate checks if an error signals a lost optimistic concurrency race.
// Callers re-read current state and re-derive intent, the error never surfaces.
func IsStaleUpdate(err error) bool {
	return errors.Is(err, ErrStaleUpdate)
}

// IsRetryable checks if an error is a transient failure worth retrying
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}

// IsRetriesExhausted checks if an error signals the retry budget ran out
func IsRetriesExhausted(err error) bool {
	return errors.Is(err, ErrRetriesExhausted)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidOperation checks if an error is an invalid operation error
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

func HTTPStatusFromErr(err error) int {
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}
