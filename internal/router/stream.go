package router

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/draftforge/genroute/internal/domain"
	"github.com/draftforge/genroute/internal/metrics"
	"github.com/draftforge/genroute/internal/provider"
	"github.com/draftforge/genroute/internal/selection"
)

// RouteStream serves a streaming request. Failover across candidates is only
// valid while no chunk has reached the caller; once partial output is
// observed, any failure terminates the stream with StreamInterruptedError.
// The chunk channel closes on completion; at most one terminal error is
// delivered on the error channel.
func (r *Router) RouteStream(ctx context.Context, req domain.GenerateRequest) (<-chan domain.StreamChunk, <-chan error) {
	out := make(chan domain.StreamChunk)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		if err := req.Validate(); err != nil {
			errs <- err
			return
		}

		metrics.ActiveStreams.Inc()
		defer metrics.ActiveStreams.Dec()

		start := time.Now()
		candidates := streamCapable(r.strategy.Select(r.registry.Snapshot()))
		if len(candidates) == 0 {
			metrics.RecordRequest("none", "stream", "exhausted", time.Since(start).Seconds())
			errs <- &domain.ExhaustedError{}
			return
		}

		var attempts []domain.Attempt

		for _, cand := range candidates {
			if ctx.Err() != nil {
				return
			}

			desc := cand.Desc
			adapter, ok := r.adapter(desc.ID)
			if !ok {
				slog.Warn("no adapter registered for provider", "provider", desc.ID)
				continue
			}

			if cand.Trial && !r.health.AcquireTrial(desc.ID) {
				continue
			}
			releaseSlot, ok := r.limits.TryAcquire(desc.ID)
			if !ok {
				if cand.Trial {
					r.health.ReleaseTrial(desc.ID)
				}
				continue
			}

			outcome := r.relay(ctx, cand, adapter, req, out, errs)
			releaseSlot()

			switch outcome.status {
			case relayDone:
				metrics.RecordRequest(desc.ID, "stream", "success", time.Since(start).Seconds())
				return
			case relayInterrupted:
				// Relay already delivered the interruption error.
				metrics.RecordRequest(desc.ID, "stream", "interrupted", time.Since(start).Seconds())
				return
			case relayCancelled:
				return
			case relayFailedClean:
				attempts = append(attempts, outcome.attempt)
				metrics.RecordAttemptError(desc.ID, outcome.attempt.Kind.String())
				if outcome.attempt.Kind == domain.KindRejected {
					metrics.RecordRequest(desc.ID, "stream", "rejected", time.Since(start).Seconds())
					errs <- outcome.err
					return
				}
				// Next candidate: the caller has seen nothing yet.
			}
		}

		metrics.RecordRequest("none", "stream", "exhausted", time.Since(start).Seconds())
		errs <- &domain.ExhaustedError{Attempts: attempts}
	}()

	return out, errs
}

type relayStatus int

const (
	relayDone relayStatus = iota
	relayFailedClean
	relayInterrupted
	relayCancelled
)

type relayOutcome struct {
	status  relayStatus
	attempt domain.Attempt
	err     error
}

// relay forwards one adapter's stream to the caller. It owns the health
// bookkeeping for the attempt; the caller owns the concurrency slot.
func (r *Router) relay(ctx context.Context, cand selection.Candidate, adapter provider.Adapter, req domain.GenerateRequest, out chan<- domain.StreamChunk, errs chan<- error) relayOutcome {
	id := cand.Desc.ID

	attemptCtx, cancel := context.WithTimeout(ctx, r.timeoutFor(cand.Desc))
	defer cancel()

	start := time.Now()
	chunks, adapterErrs := adapter.GenerateStream(attemptCtx, req)
	emitted := 0

	fail := func(err error) relayOutcome {
		if ctx.Err() != nil && !errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			if cand.Trial {
				r.health.ReleaseTrial(id)
			}
			return relayOutcome{status: relayCancelled}
		}

		kind := domain.KindOf(err)
		r.health.RecordFailure(id, kind)
		slog.Warn("stream attempt failed",
			"provider", id,
			"kind", kind.String(),
			"chunks_emitted", emitted,
			"error", err,
		)

		if emitted > 0 {
			errs <- &domain.StreamInterruptedError{Provider: id, Chunks: emitted, Err: err}
			return relayOutcome{status: relayInterrupted}
		}
		return relayOutcome{
			status: relayFailedClean,
			err:    err,
			attempt: domain.Attempt{
				Provider:  id,
				Kind:      kind,
				Detail:    err.Error(),
				LatencyMs: time.Since(start).Milliseconds(),
			},
		}
	}

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				// Adapter finished; a pending error outranks the close.
				if adapterErrs != nil {
					if err, pending := <-adapterErrs; pending && err != nil {
						return fail(err)
					}
				}
				r.health.RecordSuccess(id)
				slog.Info("stream served",
					"provider", id,
					"chunks", emitted,
					"latency_ms", time.Since(start).Milliseconds(),
				)
				return relayOutcome{status: relayDone}
			}
			select {
			case out <- chunk:
				emitted++
			case <-ctx.Done():
				if cand.Trial {
					r.health.ReleaseTrial(id)
				}
				return relayOutcome{status: relayCancelled}
			}

		case err, ok := <-adapterErrs:
			if !ok {
				adapterErrs = nil
				continue
			}
			if err != nil {
				return fail(err)
			}

		case <-ctx.Done():
			if cand.Trial {
				r.health.ReleaseTrial(id)
			}
			return relayOutcome{status: relayCancelled}
		}
	}
}

// streamCapable drops candidates whose descriptor does not support
// streaming.
func streamCapable(cands []selection.Candidate) []selection.Candidate {
	out := cands[:0:0]
	for _, c := range cands {
		if c.Desc.SupportsStreaming {
			out = append(out, c)
		}
	}
	return out
}
