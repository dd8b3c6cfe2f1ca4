// Package configstore loads provider configuration from its source of
// truth. Sources return plain descriptor lists; validation and filtering of
// disabled entries happens in the registry on reload.
package configstore

import (
	"context"

	"github.com/draftforge/genroute/internal/registry"
)

// Source loads the provider set. Implementations exist for YAML files and
// Postgres; Static serves tests and embedded defaults.
type Source interface {
	Load(ctx context.Context) ([]registry.Descriptor, error)
}

// Static is a fixed in-memory provider list.
type Static struct {
	Providers []registry.Descriptor
}

func (s Static) Load(ctx context.Context) ([]registry.Descriptor, error) {
	out := make([]registry.Descriptor, len(s.Providers))
	copy(out, s.Providers)
	return out, nil
}
