package cost

import (
	"math"
	"testing"

	"github.com/draftforge/genroute/internal/domain"
)

func TestEstimator_KnownModel(t *testing.T) {
	e := NewEstimator()

	got := e.Estimate("gpt-4o", domain.Usage{PromptTokens: 1000, CompletionTokens: 2000})
	want := 0.005 + 2*0.015

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %f, got %f", want, got)
	}
}

func TestEstimator_UnknownModelIsZero(t *testing.T) {
	e := NewEstimator()

	if got := e.Estimate("mystery-model", domain.Usage{PromptTokens: 500}); got != 0 {
		t.Errorf("expected 0 for unknown model, got %f", got)
	}
}

func TestEstimator_WithPricing(t *testing.T) {
	e := NewEstimator().WithPricing("local-llama", ModelPricing{InputPer1K: 0.001, OutputPer1K: 0.002})

	got := e.Estimate("local-llama", domain.Usage{PromptTokens: 1000, CompletionTokens: 1000})
	want := 0.003

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %f, got %f", want, got)
	}
}
