package logger

import (
	"context"
	"log/slog"
)

// ctxKey is the private context key for the request-scoped logger.
type ctxKey struct{}

// WithLogger returns a copy of ctx carrying the given logger. Handlers and
// middleware use this to thread request-scoped fields (trace id, user id)
// down into stores and the task engine.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger stored in ctx, or the process default
// logger when none is present. It never returns nil.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
			return log
		}
	}
	return slog.Default()
}
