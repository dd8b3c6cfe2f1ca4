// Package limits enforces per-provider concurrency caps with counting
// semaphores. Acquisition is always non-blocking: a saturated provider is
// skipped by the selection strategy rather than waited on, so a loaded
// backend never causes head-of-line blocking.
package limits

import (
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/draftforge/genroute/internal/registry"
)

// Limiter holds one semaphore per provider. A limit of zero or less means
// unlimited concurrency for that provider.
type Limiter struct {
	mu    sync.RWMutex
	slots map[string]*semaphore.Weighted
}

// New builds a limiter for the given provider snapshot.
func New(providers []registry.Descriptor) *Limiter {
	l := &Limiter{}
	l.Rebuild(providers)
	return l
}

// Rebuild replaces all semaphores wholesale on configuration reload.
// In-flight requests hold release closures bound to the old instances, so
// their slots drain into the discarded semaphores rather than unbalancing
// the fresh ones.
func (l *Limiter) Rebuild(providers []registry.Descriptor) {
	slots := make(map[string]*semaphore.Weighted, len(providers))
	for _, p := range providers {
		if p.ConcurrencyLimit > 0 {
			slots[p.ID] = semaphore.NewWeighted(int64(p.ConcurrencyLimit))
		}
	}

	l.mu.Lock()
	l.slots = slots
	l.mu.Unlock()
}

func (l *Limiter) get(providerID string) *semaphore.Weighted {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.slots[providerID]
}

// TryAcquire claims a slot on the provider without blocking. On success the
// returned closure releases the slot; it is bound to the semaphore the slot
// was taken from, so it stays balanced across a Rebuild.
func (l *Limiter) TryAcquire(providerID string) (release func(), ok bool) {
	sem := l.get(providerID)
	if sem == nil {
		return func() {}, true
	}
	if !sem.TryAcquire(1) {
		return nil, false
	}
	return func() { sem.Release(1) }, true
}

// Saturated reports whether the provider currently has no free slot.
// It is a point-in-time peek used for cursor tie-breaking; callers still
// need TryAcquire before dispatching.
func (l *Limiter) Saturated(providerID string) bool {
	sem := l.get(providerID)
	if sem == nil {
		return false
	}
	if !sem.TryAcquire(1) {
		return true
	}
	sem.Release(1)
	return false
}
