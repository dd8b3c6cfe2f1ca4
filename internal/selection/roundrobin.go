// Package selection turns a registry snapshot plus health state into an
// ordered candidate list for one request.
package selection

import (
	"sync"

	"github.com/draftforge/genroute/internal/health"
	"github.com/draftforge/genroute/internal/registry"
)

// Candidate is one provider eligible to serve the current request.
// Trial marks a half-open provider whose single trial slot must be acquired
// before dispatching.
type Candidate struct {
	Desc  registry.Descriptor
	Trial bool
}

// HealthView is the subset of the health tracker the strategy reads.
type HealthView interface {
	State(providerID string) health.State
}

// SlotView is the subset of the concurrency limiter the strategy reads.
type SlotView interface {
	Saturated(providerID string) bool
}

// Strategy produces an ordered candidate list for one request.
type Strategy interface {
	Select(providers []registry.Descriptor) []Candidate
}

// RoundRobin spreads load evenly across closed providers using a single
// cursor shared by all requests, streaming and non-streaming alike.
// Open providers are excluded; half-open providers join the rotation but are
// capped at one concurrent trial by the health tracker.
type RoundRobin struct {
	mu     sync.Mutex
	cursor uint64
	health HealthView
	slots  SlotView
}

// NewRoundRobin creates the default selection strategy.
func NewRoundRobin(h HealthView, s SlotView) *RoundRobin {
	return &RoundRobin{health: h, slots: s}
}

// Select returns the eligible providers rotated to start at the cursor.
// If the provider at the cursor is saturated, the rotation leads with the
// next free provider but the cursor is not advanced, so the skipped provider
// stays next in line for a future request. Saturated providers remain later
// in the list; the retry loop skips them if they are still full at dispatch
// time.
func (rr *RoundRobin) Select(providers []registry.Descriptor) []Candidate {
	eligible := make([]Candidate, 0, len(providers))
	for _, p := range providers {
		switch rr.health.State(p.ID) {
		case health.StateClosed:
			eligible = append(eligible, Candidate{Desc: p})
		case health.StateHalfOpen:
			eligible = append(eligible, Candidate{Desc: p, Trial: true})
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	rr.mu.Lock()
	n := uint64(len(eligible))
	start := rr.cursor % n
	lead := start
	if rr.slots.Saturated(eligible[start].Desc.ID) {
		for i := uint64(1); i < n; i++ {
			idx := (start + i) % n
			if !rr.slots.Saturated(eligible[idx].Desc.ID) {
				lead = idx
				break
			}
		}
	} else {
		rr.cursor++
	}
	rr.mu.Unlock()

	ordered := make([]Candidate, 0, len(eligible))
	for i := uint64(0); i < n; i++ {
		ordered = append(ordered, eligible[(lead+i)%n])
	}
	return ordered
}
