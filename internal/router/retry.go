package router

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/draftforge/genroute/internal/domain"
	"github.com/draftforge/genroute/internal/metrics"
	"github.com/draftforge/genroute/internal/telemetry"
)

// Route serves a non-streaming request: pick candidates, attempt them
// strictly in order, return the first success or a terminal error.
//
// Transient and credential-permanent failures advance to the next candidate.
// Request-rejection errors surface immediately: no other provider is
// expected to accept the same request. Caller cancellation is propagated and
// never recorded against provider health.
func (r *Router) Route(ctx context.Context, req domain.GenerateRequest) (*domain.GenerateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "router.Route")
	defer span.End()

	start := time.Now()
	candidates := r.strategy.Select(r.registry.Snapshot())
	if len(candidates) == 0 {
		metrics.RecordRequest("none", "generate", "exhausted", time.Since(start).Seconds())
		return nil, &domain.ExhaustedError{}
	}

	var attempts []domain.Attempt

	for _, cand := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
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

		attemptCtx, cancel := context.WithTimeout(ctx, r.timeoutFor(desc))
		attemptStart := time.Now()
		res, err := adapter.Generate(attemptCtx, req)
		cancel()
		releaseSlot()
		latency := time.Since(attemptStart)

		if err == nil {
			r.health.RecordSuccess(desc.ID)
			r.finish(res, desc.ID, time.Since(start))
			telemetry.AddTokenAttributes(span, res.Usage.PromptTokens, res.Usage.CompletionTokens)
			slog.Info("request served",
				"provider", desc.ID,
				"model", res.Model,
				"latency_ms", latency.Milliseconds(),
				"attempts", len(attempts)+1,
			)
			return res, nil
		}

		if ctx.Err() != nil && !errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			// Caller cancelled mid-attempt: not a provider failure.
			if cand.Trial {
				r.health.ReleaseTrial(desc.ID)
			}
			return nil, ctx.Err()
		}

		kind := domain.KindOf(err)
		attempts = append(attempts, domain.Attempt{
			Provider:  desc.ID,
			Kind:      kind,
			Detail:    err.Error(),
			LatencyMs: latency.Milliseconds(),
		})
		r.health.RecordFailure(desc.ID, kind)
		metrics.RecordAttemptError(desc.ID, kind.String())
		slog.Warn("provider attempt failed",
			"provider", desc.ID,
			"kind", kind.String(),
			"error", err,
		)

		if kind == domain.KindRejected {
			metrics.RecordRequest(desc.ID, "generate", "rejected", time.Since(start).Seconds())
			telemetry.AddErrorAttribute(span, err)
			return nil, err
		}
	}

	exhausted := &domain.ExhaustedError{Attempts: attempts}
	metrics.RecordRequest("none", "generate", "exhausted", time.Since(start).Seconds())
	telemetry.AddErrorAttribute(span, exhausted)
	slog.Error("all candidates exhausted", "attempts", len(attempts))
	return nil, exhausted
}

// finish stamps routing accounting onto a successful result.
func (r *Router) finish(res *domain.GenerateResult, providerID string, elapsed time.Duration) {
	res.Provider = providerID
	res.LatencyMs = elapsed.Milliseconds()
	res.CostUSD = r.costs.Estimate(res.Model, res.Usage)

	metrics.RecordRequest(providerID, "generate", "success", elapsed.Seconds())
	metrics.RecordTokens(providerID, res.Model, res.Usage.PromptTokens, res.Usage.CompletionTokens)
	metrics.RecordCost(providerID, res.Model, res.CostUSD)
}
