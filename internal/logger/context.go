package logger

import (
	"context"
	"log/slog"
)

// contextKey is an unexported empty struct so this package's context entry
// cannot collide with any other package's keys.
type contextKey struct{}

// WithContext returns a context carrying the given logger. HTTP middleware
// uses it to attach a request-scoped logger before handing off to handlers.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in the context. It never returns nil:
// code running outside the middleware (unit tests, background workers) gets
// the process default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
