package configstore

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/draftforge/genroute/internal/registry"
)

// YAMLFile loads providers from a YAML file:
//
//	providers:
//	  - id: openai-primary
//	    type: openai
//	    model: gpt-4o-mini
//	    credential_ref: env:OPENAI_API_KEY
//	    concurrency_limit: 8
//	    timeout: 45s
//	    supports_streaming: true
//	    enabled: true
type YAMLFile struct {
	Path string
}

type yamlConfig struct {
	Providers []yamlProvider `yaml:"providers"`
}

type yamlProvider struct {
	ID                string        `yaml:"id"`
	Name              string        `yaml:"name"`
	Type              string        `yaml:"type"`
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url"`
	Weight            int           `yaml:"weight"`
	ConcurrencyLimit  int           `yaml:"concurrency_limit"`
	Timeout           time.Duration `yaml:"timeout"`
	SupportsStreaming bool          `yaml:"supports_streaming"`
	SupportsChat      bool          `yaml:"supports_chat"`
	CredentialRef     string        `yaml:"credential_ref"`
	Enabled           bool          `yaml:"enabled"`
}

func (f YAMLFile) Load(ctx context.Context) ([]registry.Descriptor, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	var cfg yamlConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse providers file %s: %w", f.Path, err)
	}

	out := make([]registry.Descriptor, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if p.ID == "" {
			return nil, fmt.Errorf("provider entry in %s is missing an id", f.Path)
		}
		out = append(out, registry.Descriptor{
			ID:                p.ID,
			Name:              p.Name,
			Type:              p.Type,
			Model:             p.Model,
			BaseURL:           p.BaseURL,
			Weight:            p.Weight,
			ConcurrencyLimit:  p.ConcurrencyLimit,
			Timeout:           p.Timeout,
			SupportsStreaming: p.SupportsStreaming,
			SupportsChat:      p.SupportsChat,
			CredentialRef:     p.CredentialRef,
			Enabled:           p.Enabled,
		})
	}
	return out, nil
}
