package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkedErrorsMatchTheirSentinel(t *testing.T) {
	err := NewError("payment already advanced").
		WithHint("Payment is now PROCESSING").
		Mark(ErrStaleUpdate)

	assert.True(t, IsStaleUpdate(err))
	assert.False(t, IsNotFound(err))
	assert.False(t, IsIllegalTransition(err))
}

func TestHTTPStatusFromErr(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", NewError("x").Mark(ErrNotFound), http.StatusNotFound},
		{"already exists", NewError("x").Mark(ErrAlreadyExists), http.StatusConflict},
		{"idempotency key reused", NewError("x").Mark(ErrIdempotencyKeyReused), http.StatusConflict},
		{"illegal transition", NewError("x").Mark(ErrIllegalTransition), http.StatusUnprocessableEntity},
		{"stale update", NewError("x").Mark(ErrStaleUpdate), http.StatusConflict},
		{"retryable", NewError("x").Mark(ErrRetryable), http.StatusServiceUnavailable},
		{"retries exhausted", NewError("x").Mark(ErrRetriesExhausted), http.StatusUnprocessableEntity},
		{"validation", NewError("x").Mark(ErrValidation), http.StatusBadRequest},
		{"unknown error", stderrors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, HTTPStatusFromErr(tc.err))
		})
	}
}

func TestWithErrorPreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := WithError(cause).
		WithHint("Failed to reach the gateway").
		Mark(ErrRetryable)

	assert.True(t, IsRetryable(err))
	assert.True(t, stderrors.Is(err, cause))
}
