// Package router is the single entry point of the routing engine. It
// combines the registry, health tracker, selection strategy and concurrency
// limits, drives the retry loop across candidates and relays streamed
// output, returning a normalized result or a terminal error.
package router

import (
	"sync"
	"time"

	"github.com/draftforge/genroute/internal/cost"
	"github.com/draftforge/genroute/internal/health"
	"github.com/draftforge/genroute/internal/limits"
	"github.com/draftforge/genroute/internal/provider"
	"github.com/draftforge/genroute/internal/registry"
	"github.com/draftforge/genroute/internal/selection"
)

const defaultAttemptTimeout = 60 * time.Second

// Strategy produces the ordered candidate list for one request.
type Strategy interface {
	Select(providers []registry.Descriptor) []selection.Candidate
}

// Config wires the router's collaborators.
type Config struct {
	Registry *registry.Registry
	Health   *health.Tracker
	Limits   *limits.Limiter
	Strategy Strategy
	Adapters map[string]provider.Adapter

	// Costs estimates upstream spend for result accounting. Optional.
	Costs *cost.Estimator

	// AttemptTimeout bounds a single provider attempt when the descriptor
	// does not carry its own timeout.
	AttemptTimeout time.Duration
}

type Router struct {
	registry       *registry.Registry
	health         *health.Tracker
	limits         *limits.Limiter
	strategy       Strategy
	costs          *cost.Estimator
	attemptTimeout time.Duration

	mu       sync.RWMutex
	adapters map[string]provider.Adapter
}

func New(cfg Config) *Router {
	r := &Router{
		registry:       cfg.Registry,
		health:         cfg.Health,
		limits:         cfg.Limits,
		strategy:       cfg.Strategy,
		adapters:       cfg.Adapters,
		costs:          cfg.Costs,
		attemptTimeout: cfg.AttemptTimeout,
	}
	if r.strategy == nil {
		r.strategy = selection.NewRoundRobin(cfg.Health, cfg.Limits)
	}
	if r.costs == nil {
		r.costs = cost.NewEstimator()
	}
	if r.attemptTimeout <= 0 {
		r.attemptTimeout = defaultAttemptTimeout
	}
	return r
}

// Reload swaps the provider configuration wholesale: registry snapshot,
// per-provider semaphores, adapters and health state for removed providers.
// In-flight requests keep the snapshot they started with.
func (r *Router) Reload(providers []registry.Descriptor, adapters map[string]provider.Adapter) {
	r.registry.Reload(providers)
	r.limits.Rebuild(r.registry.Snapshot())
	r.mu.Lock()
	r.adapters = adapters
	r.mu.Unlock()
	r.health.Prune(r.registry.IDs())
}

func (r *Router) adapter(providerID string) (provider.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[providerID]
	return a, ok
}

// BreakerStates reports the breaker state per provider for diagnostics.
func (r *Router) BreakerStates() map[string]string {
	return r.health.States()
}

// Providers lists the enabled provider ids in the active snapshot.
func (r *Router) Providers() []string {
	return r.registry.IDs()
}

func (r *Router) timeoutFor(desc registry.Descriptor) time.Duration {
	if desc.Timeout > 0 {
		return desc.Timeout
	}
	return r.attemptTimeout
}
