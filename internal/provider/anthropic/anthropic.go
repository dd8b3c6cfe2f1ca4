// Package anthropic adapts the Anthropic Messages API to the generation
// contract.
package anthropic

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

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
	defaultMaxTokens = 4096
)

type Adapter struct {
	id      string
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func New(id, apiKey, model string) *Adapter {
	return &Adapter{
		id:      id,
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   model,
		client:  httputil.DefaultClient(),
	}
}

// WithBaseURL overrides the endpoint, mainly for tests.
func (a *Adapter) WithBaseURL(baseURL string) *Adapter {
	a.baseURL = strings.TrimSuffix(baseURL, "/")
	return a
}

func (a *Adapter) WithClient(c *http.Client) *Adapter {
	a.client = c
	return a
}

func (a *Adapter) ID() string {
	return a.id
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

func (a *Adapter) toWire(req domain.GenerateRequest, stream bool) messagesRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	system := req.Style
	if req.Language != "" {
		if system != "" {
			system += " "
		}
		system += "Respond in " + req.Language + "."
	}

	return messagesRequest{
		Model:       a.model,
		System:      system,
		Messages:    []message{{Role: "user", Content: req.Subject}},
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      stream,
	}
}

func (a *Adapter) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.GenerateResult, error) {
	body, err := json.Marshal(a.toWire(req, false))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := a.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, domain.Transient(a.id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, a.classify(resp)
	}

	var msgResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return nil, domain.Transient(a.id, fmt.Errorf("decode response: %w", err))
	}

	var text strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	usage := domain.Usage{
		PromptTokens:     msgResp.Usage.InputTokens,
		CompletionTokens: msgResp.Usage.OutputTokens,
		TotalTokens:      msgResp.Usage.InputTokens + msgResp.Usage.OutputTokens,
	}

	return &domain.GenerateResult{
		Body:     text.String(),
		Model:    msgResp.Model,
		Provider: a.id,
		Usage:    usage,
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

		httpReq, err := a.newRequest(ctx, body)
		if err != nil {
			errs <- err
			return
		}
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

			var event streamEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				continue
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta.Text == "" {
					continue
				}
				select {
				case chunks <- domain.StreamChunk{Provider: a.id, Delta: event.Delta.Text}:
				case <-ctx.Done():
					return
				}
			case "message_stop":
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- domain.Transient(a.id, fmt.Errorf("read stream: %w", err))
		}
	}()

	return chunks, errs
}

func (a *Adapter) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	return httpReq, nil
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
