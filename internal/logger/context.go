package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// WithRequestID stores the correlation id on ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// RequestID returns the correlation id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

// FromContext returns the global logger annotated with the request id.
func FromContext(ctx context.Context) *zap.Logger {
	if rid := RequestID(ctx); rid != "" {
		return L().With(zap.String("requestId", rid))
	}
	return L()
}
