package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/draftforge/genroute/internal/domain"
)

func TestGenerate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing anthropic-version header")
		}

		var req messagesRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.MaxTokens <= 0 {
			t.Errorf("max_tokens must default to a positive value, got %d", req.MaxTokens)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"model":   "claude-3-5-haiku-20241022",
			"content": []map[string]string{{"type": "text", "text": "Wind is cheap."}},
			"usage":   map[string]int{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer srv.Close()

	a := New("anthropic", "test-key", "claude-3-5-haiku-20241022").WithBaseURL(srv.URL)

	res, err := a.Generate(context.Background(), domain.GenerateRequest{Subject: "wind power"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Body != "Wind is cheap." {
		t.Errorf("unexpected body %q", res.Body)
	}
	if res.Usage.TotalTokens != 15 {
		t.Errorf("expected combined usage 15, got %d", res.Usage.TotalTokens)
	}
}

func TestGenerate_InvalidKeyIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"error"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := New("anthropic", "bad-key", "claude-3-5-haiku-20241022").WithBaseURL(srv.URL)

	_, err := a.Generate(context.Background(), domain.GenerateRequest{Subject: "x"})

	var pe *domain.ProviderError
	if !errors.As(err, &pe) || pe.Kind != domain.KindPermanent {
		t.Errorf("expected permanent provider error, got %v", err)
	}
}

func TestGenerateStream_ForwardsDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Hi"}}` + "\n\n"))
		w.Write([]byte(`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":" there"}}` + "\n\n"))
		w.Write([]byte(`data: {"type":"message_stop"}` + "\n\n"))
	}))
	defer srv.Close()

	a := New("anthropic", "k", "claude-3-5-haiku-20241022").WithBaseURL(srv.URL)
	chunks, errs := a.GenerateStream(context.Background(), domain.GenerateRequest{Subject: "x", Stream: true})

	var got string
	for chunk := range chunks {
		got += chunk.Delta
	}
	if err := <-errs; err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if got != "Hi there" {
		t.Errorf("expected %q, got %q", "Hi there", got)
	}
}
