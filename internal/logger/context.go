package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// WithRequestID stores the request id for FromCtx to pick up.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFrom returns the request id, or "" when the context has none.
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// FromCtx returns the global logger, tagged with the context's request
// id when one is present.
func FromCtx(ctx context.Context) *zap.Logger {
	reqID := RequestIDFrom(ctx)
	if reqID == "" {
		return L()
	}
	return L().With(zap.String("request_id", reqID))
}
