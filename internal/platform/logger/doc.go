// Package logger configures the application's slog-based structured logging
// and provides helpers for carrying a request-scoped logger through
// context.Context.
package logger
