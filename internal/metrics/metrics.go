package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genroute_requests_total",
			Help: "Total number of routed generation requests",
		},
		[]string{"provider", "mode", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genroute_request_duration_seconds",
			Help:    "End-to-end routing duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "mode"},
	)

	AttemptErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genroute_attempt_errors_total",
			Help: "Failed provider attempts by error kind",
		},
		[]string{"provider", "kind"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "genroute_breaker_state",
			Help: "Circuit breaker state (0=closed, 2=open)",
		},
		[]string{"provider"},
	)

	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genroute_tokens_total",
			Help: "Total tokens processed",
		},
		[]string{"provider", "model", "type"},
	)

	CostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genroute_cost_usd_total",
			Help: "Estimated upstream cost in USD",
		},
		[]string{"provider", "model"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genroute_cache_hits_total",
			Help: "Total number of result cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genroute_cache_misses_total",
			Help: "Total number of result cache misses",
		},
	)

	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "genroute_active_streams",
			Help: "Number of active streaming relays",
		},
	)

	QueueJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genroute_queue_jobs_total",
			Help: "Async generation jobs processed by outcome",
		},
		[]string{"outcome"},
	)
)

func RecordRequest(provider, mode, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(provider, mode, status).Inc()
	RequestDuration.WithLabelValues(provider, mode).Observe(durationSec)
}

func RecordAttemptError(provider, kind string) {
	AttemptErrors.WithLabelValues(provider, kind).Inc()
}

func SetBreakerState(provider string, state int) {
	BreakerState.WithLabelValues(provider).Set(float64(state))
}

func RecordTokens(provider, model string, inputTokens, outputTokens int) {
	TokensTotal.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	TokensTotal.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
}

func RecordCost(provider, model string, costUSD float64) {
	CostTotal.WithLabelValues(provider, model).Add(costUSD)
}

func RecordQueueJob(outcome string) {
	QueueJobs.WithLabelValues(outcome).Inc()
}
