// Package openai adapts an OpenAI-compatible chat completions endpoint to
// the generation contract. It is the reference adapter: any backend speaking
// the same wire format (vLLM, LM Studio, OpenRouter) can reuse it with a
// different base URL.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/draftforge/genroute/internal/domain"
	"github.com/draftforge/genroute/internal/httputil"
)

type Adapter struct {
	id      string
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func New(id, apiKey, baseURL, model string) *Adapter {
	return &Adapter{
		id:      id,
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  httputil.DefaultClient(),
	}
}

// WithClient overrides the HTTP client, mainly for tests.
func (a *Adapter) WithClient(c *http.Client) *Adapter {
	a.client = c
	return a
}

func (a *Adapter) ID() string {
	return a.id
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (a *Adapter) toWire(req domain.GenerateRequest, stream bool) chatRequest {
	msgs := make([]message, 0, 2)
	if hint := systemHint(req); hint != "" {
		msgs = append(msgs, message{Role: "system", Content: hint})
	}
	msgs = append(msgs, message{Role: "user", Content: req.Subject})

	return chatRequest{
		Model:       a.model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      stream,
	}
}

// systemHint passes the caller-supplied style and language hints through
// verbatim. Prompt construction belongs to the caller, not the adapter.
func systemHint(req domain.GenerateRequest) string {
	parts := make([]string, 0, 2)
	if req.Style != "" {
		parts = append(parts, req.Style)
	}
	if req.Language != "" {
		parts = append(parts, "Respond in "+req.Language+".")
	}
	return strings.Join(parts, " ")
}

func (a *Adapter) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.GenerateResult, error) {
	body, err := json.Marshal(a.toWire(req, false))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, domain.Transient(a.id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, a.classify(resp)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, domain.Transient(a.id, fmt.Errorf("decode response: %w", err))
	}
	if len(chatResp.Choices) == 0 {
		return nil, domain.Transient(a.id, fmt.Errorf("empty choices"))
	}

	return &domain.GenerateResult{
		Body:     chatResp.Choices[0].Message.Content,
		Model:    chatResp.Model,
		Provider: a.id,
		Usage: domain.Usage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		},
	}, nil
}

func (a *Adapter) GenerateStream(ctx context.Context, req domain.GenerateRequest) (<-chan domain.StreamChunk, <-chan error) {
	chunks := make(chan domain.StreamChunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		body, err := json.Marshal(a.toWire(req, true))
		if err != nil {
			errs <- fmt.Errorf("marshal request: %w", err)
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			errs <- fmt.Errorf("create request: %w", err)
			return
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := a.client.Do(httpReq)
		if err != nil {
			errs <- domain.Transient(a.id, err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			errs <- a.classify(resp)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}

			select {
			case chunks <- domain.StreamChunk{Provider: a.id, Delta: chunk.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- domain.Transient(a.id, fmt.Errorf("read stream: %w", err))
		}
	}()

	return chunks, errs
}

// classify maps an upstream error response onto the error taxonomy.
// The raw body goes to the log only; caller-visible errors stay terse.
func (a *Adapter) classify(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	slog.Warn("upstream error response",
		"provider", a.id,
		"status", resp.StatusCode,
		"body", string(bodyBytes),
	)
	return domain.FromStatus(a.id, resp.StatusCode)
}
