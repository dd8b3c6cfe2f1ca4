// Package bedrock adapts AWS Bedrock (Anthropic models via InvokeModel) to
// the generation contract.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/draftforge/genroute/internal/domain"
)

const (
	anthropicAPIVersion = "bedrock-2023-05-31"
	defaultMaxTokens    = 4096
)

type Adapter struct {
	id     string
	model  string
	client *bedrockruntime.Client
}

func New(ctx context.Context, id, region, model string) (*Adapter, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithConfig(cfg, id, model), nil
}

func NewWithConfig(cfg aws.Config, id, model string) *Adapter {
	return &Adapter{
		id:     id,
		model:  model,
		client: bedrockruntime.NewFromConfig(cfg),
	}
}

func (a *Adapter) ID() string {
	return a.id
}

type invokeRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	System           string    `json:"system,omitempty"`
	Messages         []message `json:"messages"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      *float64  `json:"temperature,omitempty"`
	TopP             *float64  `json:"top_p,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type invokeResponse struct {
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
		Text string `json:"text"`
	} `json:"delta"`
}

func (a *Adapter) toWire(req domain.GenerateRequest) invokeRequest {
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

	return invokeRequest{
		AnthropicVersion: anthropicAPIVersion,
		System:           system,
		Messages:         []message{{Role: "user", Content: req.Subject}},
		MaxTokens:        maxTokens,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
	}
}

func (a *Adapter) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.GenerateResult, error) {
	body, err := json.Marshal(a.toWire(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	output, err := a.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(a.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, a.classify(err)
	}

	var invokeResp invokeResponse
	if err := json.Unmarshal(output.Body, &invokeResp); err != nil {
		return nil, domain.Transient(a.id, fmt.Errorf("decode response: %w", err))
	}

	var text string
	for _, block := range invokeResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &domain.GenerateResult{
		Body:     text,
		Model:    a.model,
		Provider: a.id,
		Usage: domain.Usage{
			PromptTokens:     invokeResp.Usage.InputTokens,
			CompletionTokens: invokeResp.Usage.OutputTokens,
			TotalTokens:      invokeResp.Usage.InputTokens + invokeResp.Usage.OutputTokens,
		},
	}, nil
}

func (a *Adapter) GenerateStream(ctx context.Context, req domain.GenerateRequest) (<-chan domain.StreamChunk, <-chan error) {
	chunks := make(chan domain.StreamChunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		body, err := json.Marshal(a.toWire(req))
		if err != nil {
			errs <- fmt.Errorf("marshal request: %w", err)
			return
		}

		output, err := a.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
			ModelId:     aws.String(a.model),
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
			Body:        body,
		})
		if err != nil {
			errs <- a.classify(err)
			return
		}

		stream := output.GetStream()
		defer stream.Close()

		for event := range stream.Events() {
			chunk, ok := event.(*types.ResponseStreamMemberChunk)
			if !ok {
				continue
			}

			var ev streamEvent
			if err := json.Unmarshal(chunk.Value.Bytes, &ev); err != nil {
				continue
			}
			if ev.Type != "content_block_delta" || ev.Delta.Text == "" {
				continue
			}

			select {
			case chunks <- domain.StreamChunk{Provider: a.id, Delta: ev.Delta.Text}:
			case <-ctx.Done():
				return
			}
		}

		if err := stream.Err(); err != nil {
			errs <- a.classify(err)
		}
	}()

	return chunks, errs
}

// classify maps AWS SDK errors onto the taxonomy. Throttling and service
// faults retry elsewhere; credential and validation faults do not.
func (a *Adapter) classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		slog.Warn("bedrock error", "provider", a.id, "code", apiErr.ErrorCode(), "message", apiErr.ErrorMessage())
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException", "ResourceNotFoundException":
			return domain.Permanent(a.id, fmt.Errorf("aws %s", apiErr.ErrorCode()))
		case "ValidationException":
			return domain.Rejected(a.id, fmt.Errorf("aws %s", apiErr.ErrorCode()))
		}
	}
	return domain.Transient(a.id, err)
}
