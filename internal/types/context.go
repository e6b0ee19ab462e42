package types

import (
	"context"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID      ContextKey = "ctx_request_id"
	CtxIdempotencyKey ContextKey = "ctx_idempotency_key"
)

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

func GetIdempotencyKey(ctx context.Context) string {
	if key, ok := ctx.Value(CtxIdempotencyKey).(string); ok {
		return key
	}
	return ""
}

// SetRequestID stamps a request scoped identifier used for log correlation
func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}

func SetIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, CtxIdempotencyKey, key)
}
