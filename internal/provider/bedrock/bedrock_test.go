package bedrock

import (
	"errors"
	"testing"

	"github.com/aws/smithy-go"

	"github.com/draftforge/genroute/internal/domain"
)

func TestToWire(t *testing.T) {
	a := &Adapter{id: "bedrock-1", model: "anthropic.claude-3-haiku"}

	wire := a.toWire(domain.GenerateRequest{
		Subject:  "glaciers",
		Style:    "You are a geologist.",
		Language: "French",
	})

	if wire.AnthropicVersion != anthropicAPIVersion {
		t.Errorf("unexpected version %q", wire.AnthropicVersion)
	}
	if wire.MaxTokens != defaultMaxTokens {
		t.Errorf("expected default max tokens, got %d", wire.MaxTokens)
	}
	if wire.System != "You are a geologist. Respond in French." {
		t.Errorf("unexpected system prompt %q", wire.System)
	}
	if len(wire.Messages) != 1 || wire.Messages[0].Content != "glaciers" {
		t.Errorf("unexpected messages %+v", wire.Messages)
	}
}

func TestClassify(t *testing.T) {
	a := &Adapter{id: "bedrock-1"}

	tests := []struct {
		code string
		want domain.ErrorKind
	}{
		{"AccessDeniedException", domain.KindPermanent},
		{"ExpiredTokenException", domain.KindPermanent},
		{"ValidationException", domain.KindRejected},
		{"ThrottlingException", domain.KindTransient},
		{"ServiceUnavailableException", domain.KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := a.classify(&smithy.GenericAPIError{Code: tt.code, Message: "upstream detail"})
			if domain.KindOf(err) != tt.want {
				t.Errorf("classify(%s) = %v, want %v", tt.code, domain.KindOf(err), tt.want)
			}
		})
	}

	if domain.KindOf(a.classify(errors.New("dial tcp: timeout"))) != domain.KindTransient {
		t.Error("non-API errors should be transient")
	}
}
