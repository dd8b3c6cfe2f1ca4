// Package ollama adapts a local Ollama instance to the generation contract.
// Ollama streams newline-delimited JSON rather than SSE.
package ollama

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
	baseURL string
	model   string
	client  *http.Client
}

func New(id, baseURL, model string) *Adapter {
	return &Adapter{
		id:      id,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  httputil.DefaultClient(),
	}
}

func (a *Adapter) WithClient(c *http.Client) *Adapter {
	a.client = c
	return a
}

func (a *Adapter) ID() string {
	return a.id
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string  `json:"model"`
	Message message `json:"message"`
	Done    bool    `json:"done"`

	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

func (a *Adapter) toWire(req domain.GenerateRequest, stream bool) chatRequest {
	msgs := make([]message, 0, 2)
	if req.Style != "" {
		msgs = append(msgs, message{Role: "system", Content: req.Style})
	}
	msgs = append(msgs, message{Role: "user", Content: req.Subject})

	opts := map[string]any{}
	if req.Temperature != nil {
		opts["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		opts["top_p"] = *req.TopP
	}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	if len(opts) == 0 {
		opts = nil
	}

	return chatRequest{
		Model:    a.model,
		Messages: msgs,
		Stream:   stream,
		Options:  opts,
	}
}

func (a *Adapter) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.GenerateResult, error) {
	body, err := json.Marshal(a.toWire(req, false))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	return &domain.GenerateResult{
		Body:     chatResp.Message.Content,
		Model:    chatResp.Model,
		Provider: a.id,
		Usage: domain.Usage{
			PromptTokens:     chatResp.PromptEvalCount,
			CompletionTokens: chatResp.EvalCount,
			TotalTokens:      chatResp.PromptEvalCount + chatResp.EvalCount,
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

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			errs <- fmt.Errorf("create request: %w", err)
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")

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
			var chunk chatResponse
			if err := json.Unmarshal(scanner.Bytes(), &chunk); err != nil {
				continue
			}
			if chunk.Message.Content != "" {
				select {
				case chunks <- domain.StreamChunk{Provider: a.id, Delta: chunk.Message.Content}:
				case <-ctx.Done():
					return
				}
			}
			if chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- domain.Transient(a.id, fmt.Errorf("read stream: %w", err))
		}
	}()

	return chunks, errs
}

func (a *Adapter) classify(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	slog.Warn("upstream error response",
		"provider", a.id,
		"status", resp.StatusCode,
		"body", string(bodyBytes),
	)
	return domain.FromStatus(a.id, resp.StatusCode)
}
