package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind is the closed set of provider failure categories. It is assigned
// once, at the provider-adapter boundary, so classification downstream is a
// tag check rather than message scraping.
type ErrorKind string

const (
	// Transient failures, eligible for retry with backoff.
	KindTimeout     ErrorKind = "timeout"
	KindConnection  ErrorKind = "connection"
	KindRateLimited ErrorKind = "rate_limited"
	KindServerError ErrorKind = "server_error"
	KindUnavailable ErrorKind = "unavailable"

	// Terminal failures, never retried regardless of budget.
	KindContentBlocked   ErrorKind = "content_blocked"
	KindCopyrightBlocked ErrorKind = "copyright_blocked"
	KindMalformedInput   ErrorKind = "malformed_input"
	KindNoAgreement      ErrorKind = "no_agreement"

	// KindUnknown marks failures the adapter could not categorize. They are
	// treated as transient: an unreliable provider earns the benefit of the
	// doubt, and terminal classification is reserved for explicit signals.
	KindUnknown ErrorKind = "unknown"
)

// Error is the structured failure type returned by provider adapters.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	cause      error
}

// NewError creates a provider error with the given kind and message.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// NewHTTPError creates a provider error classified from an HTTP status code.
func NewHTTPError(statusCode int, message string, cause error) *Error {
	return &Error{
		Kind:       kindForStatus(statusCode),
		StatusCode: statusCode,
		Message:    message,
		cause:      cause,
	}
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error (%s, status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause to support errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether this failure category may resolve on its own.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindContentBlocked, KindCopyrightBlocked, KindMalformedInput, KindNoAgreement:
		return false
	default:
		return true
	}
}

// IsRetryable classifies an arbitrary error from a provider invocation.
// Structured provider errors answer from their kind; context deadline and
// net errors are transient; anything else defaults to retryable, because a
// terminal verdict must come from an explicit provider signal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var perr *Error
	if errors.As(err, &perr) {
		return perr.Retryable()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}

	return true
}

// IsTerminal is the complement of IsRetryable for non-nil errors.
func IsTerminal(err error) bool {
	return err != nil && !IsRetryable(err)
}

func kindForStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == 429:
		return KindRateLimited
	case statusCode == 503:
		return KindUnavailable
	case statusCode == 400:
		return KindMalformedInput
	case statusCode >= 500:
		return KindServerError
	default:
		return KindUnknown
	}
}
