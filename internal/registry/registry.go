// Package registry holds the configured set of providers as an immutable,
// atomically swapped snapshot. A reload in progress never exposes a
// half-updated list to an in-flight request.
package registry

import (
	"sync/atomic"
	"time"
)

// Descriptor is the static configuration of one upstream provider.
// It is immutable during a routing decision and replaced wholesale on reload.
type Descriptor struct {
	ID                string
	Name              string
	Type              string
	Model             string
	BaseURL           string
	Weight            int
	ConcurrencyLimit  int
	Timeout           time.Duration
	SupportsStreaming bool
	SupportsChat      bool
	CredentialRef     string
	Enabled           bool
}

type snapshot struct {
	providers []Descriptor
	version   uint64
}

// Registry presents an atomic, consistent view of the enabled providers.
// Readers never block a reload and vice versa.
type Registry struct {
	current atomic.Pointer[snapshot]
	version atomic.Uint64
}

// New builds a registry from the initial provider list.
func New(providers []Descriptor) *Registry {
	r := &Registry{}
	r.Reload(providers)
	return r
}

// Snapshot returns the ordered list of enabled providers. The returned slice
// is shared and must be treated as read-only.
func (r *Registry) Snapshot() []Descriptor {
	return r.current.Load().providers
}

// Version identifies the currently active snapshot.
func (r *Registry) Version() uint64 {
	return r.current.Load().version
}

// Reload replaces the provider list wholesale. Disabled entries are dropped
// and duplicate identifiers keep their first occurrence, so at most one
// descriptor per provider id is ever active.
func (r *Registry) Reload(providers []Descriptor) {
	seen := make(map[string]struct{}, len(providers))
	enabled := make([]Descriptor, 0, len(providers))
	for _, p := range providers {
		if !p.Enabled {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		enabled = append(enabled, p)
	}

	r.current.Store(&snapshot{
		providers: enabled,
		version:   r.version.Add(1),
	})
}

// IDs returns the identifiers of the enabled providers, in order.
func (r *Registry) IDs() []string {
	providers := r.Snapshot()
	ids := make([]string, 0, len(providers))
	for _, p := range providers {
		ids = append(ids, p.ID)
	}
	return ids
}
