// Package provider defines the capability contract every backend adapter
// implements. New backends are added by implementing Adapter; the routing
// engine never branches on a backend type.
package provider

import (
	"context"

	"github.com/draftforge/genroute/internal/domain"
)

// Adapter is the contract between the routing engine and one upstream
// backend.
//
// Generate performs a single-shot completion. Failures carry a
// domain.ErrorKind so the retry loop can classify them.
//
// GenerateStream returns a finite, non-restartable chunk sequence. The
// chunks channel closes on success; a mid-sequence failure arrives on the
// error channel and terminates the stream. Retrying against another provider
// is only valid before the caller has observed the first chunk, and that
// decision belongs to the router, not the adapter.
//
// Health probing is deliberately not part of the contract: provider health
// is inferred from attempt outcomes alone.
type Adapter interface {
	ID() string
	Generate(ctx context.Context, req domain.GenerateRequest) (*domain.GenerateResult, error)
	GenerateStream(ctx context.Context, req domain.GenerateRequest) (<-chan domain.StreamChunk, <-chan error)
}
