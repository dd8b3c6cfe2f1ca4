// Package health tracks per-provider failure state with a circuit breaker.
// Health is inferred purely from attempt outcomes reported by the retry
// loop; there is no separate probing loop.
//
// States per provider:
//   - Closed: eligible for selection
//   - Open: ineligible, cooling down; cool-down doubles on repeated trips
//   - Half-Open: one trial attempt permitted system-wide
package health

import (
	"sync"
	"time"

	"github.com/draftforge/genroute/internal/domain"
)

// State is the breaker state of a single provider.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config defines breaker behavior.
type Config struct {
	FailureThreshold int           // consecutive failures before opening
	FailureWindow    time.Duration // failures further apart than this reset the streak
	Cooldown         time.Duration // initial open duration, doubled per trip
	MaxCooldown      time.Duration // cap for the doubling
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		FailureWindow:    time.Minute,
		Cooldown:         30 * time.Second,
		MaxCooldown:      10 * time.Minute,
	}
}

// Listener observes breaker transitions, e.g. to publish operator
// notifications or update metrics.
type Listener interface {
	ProviderDown(providerID string, cooldown time.Duration)
	ProviderUp(providerID string)
}

// Tracker owns the HealthState of every configured provider. Updates are
// serialized per provider, never under a global lock, so unrelated providers
// are not contended against each other.
type Tracker struct {
	mu        sync.RWMutex
	providers map[string]*providerHealth
	cfg       Config
	listeners []Listener
	now       func() time.Time
}

type providerHealth struct {
	mu            sync.Mutex
	state         State
	failures      int
	trips         int
	lastFailure   time.Time
	cooldownUntil time.Time
	trialing      bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithListener registers a transition listener.
func WithListener(l Listener) Option {
	return func(t *Tracker) {
		t.listeners = append(t.listeners, l)
	}
}

func withClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker with the given breaker config.
func NewTracker(cfg Config, opts ...Option) *Tracker {
	t := &Tracker{
		providers: make(map[string]*providerHealth),
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) get(providerID string) *providerHealth {
	t.mu.RLock()
	ph, ok := t.providers[providerID]
	t.mu.RUnlock()
	if ok {
		return ph
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if ph, ok := t.providers[providerID]; ok {
		return ph
	}
	ph = &providerHealth{state: StateClosed}
	t.providers[providerID] = ph
	return ph
}

// State returns the provider's current breaker state, promoting open
// providers to half-open once their cool-down has elapsed.
func (t *Tracker) State(providerID string) State {
	ph := t.get(providerID)
	ph.mu.Lock()
	defer ph.mu.Unlock()

	if ph.state == StateOpen && !t.now().Before(ph.cooldownUntil) {
		ph.state = StateHalfOpen
		ph.trialing = false
	}
	return ph.state
}

// AcquireTrial claims the single half-open trial slot for the provider.
// Returns false if the provider is not half-open or another request already
// holds the trial.
func (t *Tracker) AcquireTrial(providerID string) bool {
	ph := t.get(providerID)
	ph.mu.Lock()
	defer ph.mu.Unlock()

	if ph.state == StateOpen && !t.now().Before(ph.cooldownUntil) {
		ph.state = StateHalfOpen
		ph.trialing = false
	}
	if ph.state != StateHalfOpen || ph.trialing {
		return false
	}
	ph.trialing = true
	return true
}

// ReleaseTrial gives the trial slot back without recording an outcome,
// e.g. when the caller cancelled before the attempt finished.
func (t *Tracker) ReleaseTrial(providerID string) {
	ph := t.get(providerID)
	ph.mu.Lock()
	ph.trialing = false
	ph.mu.Unlock()
}

// RecordSuccess resets the provider to normal rotation.
func (t *Tracker) RecordSuccess(providerID string) {
	ph := t.get(providerID)
	ph.mu.Lock()
	recovered := ph.state != StateClosed
	ph.state = StateClosed
	ph.failures = 0
	ph.trips = 0
	ph.trialing = false
	ph.mu.Unlock()

	if recovered {
		for _, l := range t.listeners {
			l.ProviderUp(providerID)
		}
	}
}

// RecordFailure applies one failed attempt. Permanent failures trip the
// breaker immediately; transient failures trip it after the configured
// streak. Cancellations must not be reported here.
func (t *Tracker) RecordFailure(providerID string, kind domain.ErrorKind) {
	ph := t.get(providerID)
	ph.mu.Lock()

	now := t.now()
	if t.cfg.FailureWindow > 0 && !ph.lastFailure.IsZero() && now.Sub(ph.lastFailure) > t.cfg.FailureWindow {
		ph.failures = 0
	}
	ph.lastFailure = now
	ph.failures++
	ph.trialing = false

	tripped := false
	var cooldown time.Duration
	switch {
	case kind == domain.KindPermanent:
		cooldown = t.trip(ph, now)
		tripped = true
	case ph.state == StateHalfOpen:
		cooldown = t.trip(ph, now)
		tripped = true
	case ph.state == StateClosed && ph.failures >= t.cfg.FailureThreshold:
		cooldown = t.trip(ph, now)
		tripped = true
	}
	ph.mu.Unlock()

	if tripped {
		for _, l := range t.listeners {
			l.ProviderDown(providerID, cooldown)
		}
	}
}

// trip opens the breaker with an exponentially growing cool-down.
// Caller holds ph.mu.
func (t *Tracker) trip(ph *providerHealth, now time.Time) time.Duration {
	ph.state = StateOpen
	ph.trips++

	cooldown := t.cfg.Cooldown
	for i := 1; i < ph.trips && cooldown < t.cfg.MaxCooldown; i++ {
		cooldown *= 2
	}
	if t.cfg.MaxCooldown > 0 && cooldown > t.cfg.MaxCooldown {
		cooldown = t.cfg.MaxCooldown
	}
	ph.cooldownUntil = now.Add(cooldown)
	return cooldown
}

// Failures returns the provider's consecutive-failure count.
func (t *Tracker) Failures(providerID string) int {
	ph := t.get(providerID)
	ph.mu.Lock()
	defer ph.mu.Unlock()
	return ph.failures
}

// States reports every tracked provider's state for diagnostics.
func (t *Tracker) States() map[string]string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.providers))
	for id := range t.providers {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	states := make(map[string]string, len(ids))
	for _, id := range ids {
		states[id] = t.State(id).String()
	}
	return states
}

// Prune drops state for providers no longer present in the registry, so a
// removed provider leaves no dangling HealthState behind.
func (t *Tracker) Prune(activeIDs []string) {
	active := make(map[string]struct{}, len(activeIDs))
	for _, id := range activeIDs {
		active[id] = struct{}{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.providers {
		if _, ok := active[id]; !ok {
			delete(t.providers, id)
		}
	}
}
