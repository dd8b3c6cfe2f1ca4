package domain

// GenerateRequest is the provider-agnostic "produce text" request exchanged
// between callers and the routing engine. It is created once per external
// call and never mutated.
type GenerateRequest struct {
	Subject     string   `json:"subject"`
	Style       string   `json:"style,omitempty"`
	Language    string   `json:"language,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	Stream      bool     `json:"stream,omitempty"`
}

// Validate checks the request before any provider is contacted.
// Failures here are never recorded against provider health.
func (r GenerateRequest) Validate() error {
	if r.Subject == "" {
		return &ValidationError{Field: "subject", Reason: "must not be empty"}
	}
	if r.MaxTokens < 0 {
		return &ValidationError{Field: "max_tokens", Reason: "must not be negative"}
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return &ValidationError{Field: "temperature", Reason: "must be between 0 and 2"}
	}
	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		return &ValidationError{Field: "top_p", Reason: "must be between 0 and 1"}
	}
	return nil
}

// GenerateResult is the normalized outcome of a successfully routed request.
type GenerateResult struct {
	Title     string  `json:"title,omitempty"`
	Body      string  `json:"body"`
	Model     string  `json:"model,omitempty"`
	Provider  string  `json:"provider"`
	Usage     Usage   `json:"usage"`
	LatencyMs int64   `json:"latency_ms"`
	CostUSD   float64 `json:"cost_usd"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is one incremental piece of generated text.
type StreamChunk struct {
	Provider string `json:"provider,omitempty"`
	Delta    string `json:"delta"`
}
