package provider

import (
	"context"

	"github.com/revivephoto/revive-api/internal/domain"
)

// Output is the result of one successful provider invocation.
type Output struct {
	// ResultRef is a reference to the generated asset (URL or storage key).
	ResultRef string

	// Model identifies the provider model that produced the result.
	Model string
}

// Provider invokes the external image generation service for one task kind
// and payload. Implementations perform exactly one call per invocation; all
// retry behavior lives in the caller. Failures must be returned as (or
// wrapped around) *Error so callers can classify them.
type Provider interface {
	Generate(ctx context.Context, kind domain.TaskKind, payload domain.TaskPayload) (*Output, error)
}
