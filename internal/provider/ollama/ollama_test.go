package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/draftforge/genroute/internal/domain"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		if req.Model != "llama3" {
			t.Errorf("unexpected model %q", req.Model)
		}
		if req.Messages[len(req.Messages)-1].Content != "volcanoes" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(chatResponse{
			Model:           "llama3",
			Message:         message{Role: "assistant", Content: "Volcanoes are..."},
			Done:            true,
			PromptEvalCount: 12,
			EvalCount:       40,
		})
	}))
	defer srv.Close()

	adapter := New("ollama-local", srv.URL, "llama3")

	res, err := adapter.Generate(context.Background(), domain.GenerateRequest{Subject: "volcanoes"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Body != "Volcanoes are..." {
		t.Errorf("unexpected body %q", res.Body)
	}
	if res.Usage.TotalTokens != 52 {
		t.Errorf("unexpected usage %+v", res.Usage)
	}
}

func TestGenerateServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model is loading", http.StatusInternalServerError)
	}))
	defer srv.Close()

	adapter := New("ollama-local", srv.URL, "llama3")

	_, err := adapter.Generate(context.Background(), domain.GenerateRequest{Subject: "x"})
	if domain.KindOf(err) != domain.KindTransient {
		t.Errorf("expected transient, got %v", err)
	}
}

func TestGenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(chatResponse{Message: message{Content: "Hello"}})
		enc.Encode(chatResponse{Message: message{Content: " world"}})
		enc.Encode(chatResponse{Done: true})
	}))
	defer srv.Close()

	adapter := New("ollama-local", srv.URL, "llama3")

	chunks, errs := adapter.GenerateStream(context.Background(), domain.GenerateRequest{Subject: "x", Stream: true})

	var got string
	for chunk := range chunks {
		got += chunk.Delta
	}
	if err := <-errs; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello world" {
		t.Errorf("got %q", got)
	}
}
