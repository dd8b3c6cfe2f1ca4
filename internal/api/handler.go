// Package api exposes the HTTP surface: synchronous and streamed
// generation, async job submission, health and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/draftforge/genroute/internal/cache"
	"github.com/draftforge/genroute/internal/domain"
	"github.com/draftforge/genroute/internal/metrics"
	"github.com/draftforge/genroute/internal/queue"
)

// Router is the routing engine surface the handler needs. Satisfied by
// router.Router.
type Router interface {
	Route(ctx context.Context, req domain.GenerateRequest) (*domain.GenerateResult, error)
	RouteStream(ctx context.Context, req domain.GenerateRequest) (<-chan domain.StreamChunk, <-chan error)
	BreakerStates() map[string]string
	Providers() []string
}

type HandlerConfig struct {
	Router   Router
	Cache    cache.Cache
	CacheTTL time.Duration
	Queue    queue.Queue // optional; enables POST /v1/generate/async
}

type Handler struct {
	router   Router
	cache    cache.Cache
	cacheTTL time.Duration
	queue    queue.Queue
	mux      *http.ServeMux
}

func NewHandler(cfg HandlerConfig) *Handler {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	h := &Handler{
		router:   cfg.Router,
		cache:    cfg.Cache,
		cacheTTL: cacheTTL,
		queue:    cfg.Queue,
		mux:      http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /v1/generate", h.handleGenerate)
	h.mux.HandleFunc("POST /v1/generate/async", h.handleGenerateAsync)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /health/live", h.handleHealthLive)
	h.mux.HandleFunc("GET /health/ready", h.handleHealthReady)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}

	var req domain.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Stream {
		h.handleGenerateStream(w, r, req, requestID, start)
		return
	}

	skipCache := r.Header.Get("X-Skip-Cache") == "true"

	var cacheKey string
	if h.cache != nil && !skipCache {
		cacheKey = cache.Key(req)
		if cached, ok := h.cache.Get(ctx, cacheKey); ok {
			metrics.CacheHits.Inc()
			slog.Info("cache hit",
				"request_id", requestID,
				"subject", req.Subject,
				"latency_ms", time.Since(start).Milliseconds(),
			)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Request-ID", requestID)
			w.Header().Set("X-Cache", "HIT")
			json.NewEncoder(w).Encode(cached)
			return
		}
		metrics.CacheMisses.Inc()
	}

	result, err := h.router.Route(ctx, req)
	if err != nil {
		writeRoutingError(w, requestID, err)
		return
	}

	if h.cache != nil && cacheKey != "" {
		if err := h.cache.Set(ctx, cacheKey, result, h.cacheTTL); err != nil {
			slog.Warn("failed to cache result", "error", err, "request_id", requestID)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("X-Cache", "MISS")
	json.NewEncoder(w).Encode(result)
}

func (h *Handler) handleGenerateStream(w http.ResponseWriter, r *http.Request, req domain.GenerateRequest, requestID string, start time.Time) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	chunks, errs := h.router.RouteStream(ctx, req)

	headersSent := false
	sendHeaders := func() {
		if headersSent {
			return
		}
		headersSent = true
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Request-ID", requestID)
		w.WriteHeader(http.StatusOK)
	}

	emitted := 0
	for chunk := range chunks {
		sendHeaders()
		data, _ := json.Marshal(chunk)
		w.Write([]byte("data: " + string(data) + "\n\n"))
		flusher.Flush()
		emitted++
	}

	if err := <-errs; err != nil {
		if emitted == 0 {
			// Nothing reached the client; a plain error response is
			// still possible.
			writeRoutingError(w, requestID, err)
			return
		}
		sendHeaders()
		slog.Error("stream aborted", "error", err, "request_id", requestID, "chunks", emitted)
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		w.Write([]byte("data: " + string(payload) + "\n\n"))
		flusher.Flush()
		return
	}

	sendHeaders()
	w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()

	slog.Info("streaming request completed",
		"request_id", requestID,
		"chunks", emitted,
		"latency_ms", time.Since(start).Milliseconds(),
	)
}

func (h *Handler) handleGenerateAsync(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		writeError(w, http.StatusNotImplemented, "async generation is not configured")
		return
	}

	var req domain.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Stream {
		writeError(w, http.StatusBadRequest, "async requests cannot stream")
		return
	}

	job := queue.GenerateJob{
		ID:        uuid.New().String(),
		Request:   req,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.queue.SendJob(r.Context(), job); err != nil {
		slog.Error("failed to enqueue job", "error", err)
		writeError(w, http.StatusServiceUnavailable, "failed to enqueue job")
		return
	}
	metrics.RecordQueueJob("enqueued")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job_id": job.ID})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	states := h.router.BreakerStates()

	status := "healthy"
	for _, s := range states {
		if s != "closed" {
			status = "degraded"
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"providers": states,
	})
}

func (h *Handler) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	if len(h.router.Providers()) == 0 {
		writeError(w, http.StatusServiceUnavailable, "no providers configured")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// writeRoutingError maps the routing error taxonomy onto HTTP statuses.
// Upstream payloads never pass through; the response carries only our own
// error text.
func writeRoutingError(w http.ResponseWriter, requestID string, err error) {
	var (
		ve *domain.ValidationError
		ee *domain.ExhaustedError
	)

	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case domain.KindOf(err) == domain.KindRejected:
		slog.Warn("request rejected upstream", "request_id", requestID, "error", err)
		writeError(w, http.StatusUnprocessableEntity, "request rejected by provider")
	case errors.As(err, &ee):
		slog.Error("routing exhausted", "request_id", requestID, "error", err)
		writeError(w, http.StatusBadGateway, ee.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; status code is moot.
		writeError(w, http.StatusBadGateway, "request cancelled")
	default:
		slog.Error("routing failed", "request_id", requestID, "error", err)
		writeError(w, http.StatusBadGateway, "generation failed")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    status,
		},
	})
}
