// Package middleware provides HTTP middleware for tracing and JWT
// authentication.
package middleware

import (
	"net/http"

	"github.com/revivephoto/revive-api/internal/api/shared"
	"github.com/revivephoto/revive-api/internal/platform/logger"
)

// TraceID attaches a trace ID to every request's context and enriches the
// context logger with it, so all log lines from one request correlate.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())

		log := logger.FromContext(ctx).With("trace_id", shared.GetTraceID(ctx))
		ctx = logger.WithLogger(ctx, log)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
