// Package cost estimates the upstream spend of a generation from its token
// usage, for result accounting and metrics. Unknown models estimate to zero.
package cost

import "github.com/draftforge/genroute/internal/domain"

type ModelPricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

var defaultPricing = map[string]ModelPricing{
	"gpt-4o":                     {InputPer1K: 0.005, OutputPer1K: 0.015},
	"gpt-4o-mini":                {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"gpt-4-turbo":                {InputPer1K: 0.01, OutputPer1K: 0.03},
	"gpt-3.5-turbo":              {InputPer1K: 0.0005, OutputPer1K: 0.0015},
	"claude-3-5-sonnet-20241022": {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-3-5-haiku-20241022":  {InputPer1K: 0.001, OutputPer1K: 0.005},
	"claude-3-haiku-20240307":    {InputPer1K: 0.00025, OutputPer1K: 0.00125},
}

type Estimator struct {
	pricing map[string]ModelPricing
}

func NewEstimator() *Estimator {
	return &Estimator{pricing: defaultPricing}
}

// WithPricing overrides or adds pricing for a model.
func (e *Estimator) WithPricing(model string, p ModelPricing) *Estimator {
	merged := make(map[string]ModelPricing, len(e.pricing)+1)
	for k, v := range e.pricing {
		merged[k] = v
	}
	merged[model] = p
	return &Estimator{pricing: merged}
}

func (e *Estimator) Estimate(model string, usage domain.Usage) float64 {
	pricing, ok := e.pricing[model]
	if !ok {
		return 0
	}
	inputCost := float64(usage.PromptTokens) / 1000 * pricing.InputPer1K
	outputCost := float64(usage.CompletionTokens) / 1000 * pricing.OutputPer1K
	return inputCost + outputCost
}
