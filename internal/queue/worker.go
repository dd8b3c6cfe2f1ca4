package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/draftforge/genroute/internal/domain"
	"github.com/draftforge/genroute/internal/metrics"
)

// Generator routes one generation request. Satisfied by router.Router.
type Generator interface {
	Route(ctx context.Context, req domain.GenerateRequest) (*domain.GenerateResult, error)
}

// Worker drains the job queue and publishes outcomes. Several workers may
// run against the same queue.
type Worker struct {
	queue      Queue
	generator  Generator
	batchSize  int
	jobTimeout time.Duration
}

func NewWorker(q Queue, g Generator) *Worker {
	return &Worker{
		queue:      q,
		generator:  g,
		batchSize:  5,
		jobTimeout: 2 * time.Minute,
	}
}

// Run processes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("queue worker started")
	for {
		if ctx.Err() != nil {
			slog.Info("queue worker stopped")
			return
		}

		jobs, err := w.queue.ReceiveJobs(ctx, w.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("queue worker stopped")
				return
			}
			slog.Error("failed to receive jobs", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		if len(jobs) == 0 {
			// SQS long-polls; this only throttles non-polling backends.
			select {
			case <-ctx.Done():
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		for _, job := range jobs {
			w.process(ctx, job)
		}
	}
}

func (w *Worker) process(ctx context.Context, job GenerateJob) {
	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	outcome := GenerateOutcome{JobID: job.ID, CreatedAt: time.Now().UTC()}

	result, err := w.generator.Route(jobCtx, job.Request)
	if err != nil {
		outcome.Error = err.Error()
		metrics.RecordQueueJob("failed")
		slog.Warn("async job failed", "job_id", job.ID, "error", err)
	} else {
		outcome.Result = result
		metrics.RecordQueueJob("completed")
		slog.Info("async job completed",
			"job_id", job.ID,
			"provider", result.Provider,
			"latency_ms", result.LatencyMs,
		)
	}

	if err := w.queue.SendOutcome(ctx, outcome); err != nil {
		slog.Error("failed to publish job outcome", "job_id", job.ID, "error", err)
	}
}
