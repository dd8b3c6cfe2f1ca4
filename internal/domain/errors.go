// Package domain holds the normalized request/result shapes and the error
// taxonomy shared by the routing engine and the provider adapters.
//
// Provider failures are classified into kinds rather than concrete types so
// the retry loop can decide between "try the next candidate" and "surface to
// the caller" without inspecting upstream wire formats.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a provider failure for retry and breaker decisions.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota

	// KindTransient covers timeouts, rate limits and 5xx-equivalents.
	// Retried against the next candidate.
	KindTransient

	// KindPermanent covers invalid credentials or a provider disabled
	// upstream. Trips the breaker immediately but the next candidate may
	// still serve the request.
	KindPermanent

	// KindRejected means the provider judged the request itself invalid
	// or policy-violating. Surfaced immediately, never retried elsewhere.
	KindRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ProviderError is a classified failure from a single provider attempt.
// The message stays terse on purpose: raw upstream payloads and credentials
// are logged by the adapter, never carried into caller-visible errors.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s: %s failure (status %d)", e.Provider, e.Kind, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s failure: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("provider %s: %s failure", e.Provider, e.Kind)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient builds a transient provider error.
func Transient(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindTransient, Err: err}
}

// Permanent builds a permanent (credential-class) provider error.
func Permanent(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindPermanent, Err: err}
}

// Rejected builds a request-rejected provider error.
func Rejected(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindRejected, Err: err}
}

// FromStatus classifies an upstream HTTP status into a ProviderError.
//
//	400, 422        -> rejected (malformed request or content policy)
//	401, 403, 404   -> permanent (credential or upstream configuration)
//	408, 429, 5xx   -> transient
func FromStatus(provider string, status int) *ProviderError {
	kind := KindTransient
	switch {
	case status == 400 || status == 422:
		kind = KindRejected
	case status == 401 || status == 403 || status == 404:
		kind = KindPermanent
	case status == 408 || status == 429 || status >= 500:
		kind = KindTransient
	}
	return &ProviderError{Provider: provider, Kind: kind, Status: status}
}

// KindOf extracts the ErrorKind from an error chain.
// Anything unclassified is treated as transient so a flaky provider never
// blocks failover.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

// ValidationError reports a malformed GenerateRequest. It fails the call
// before any provider is contacted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// MarshalJSON renders the kind as its label so attempt diagnostics stay
// readable in logs and API responses.
func (k ErrorKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// Attempt records the outcome of one provider attempt for diagnostics.
type Attempt struct {
	Provider  string    `json:"provider"`
	Kind      ErrorKind `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
}

// ExhaustedError is the terminal error when no eligible candidate existed or
// every candidate failed. Attempts lists each tried provider in order.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "routing exhausted: no eligible providers"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Provider+"="+a.Kind.String())
	}
	return "routing exhausted: all providers failed: " + strings.Join(parts, ", ")
}

// StreamInterruptedError terminates a stream that failed after partial
// output was already emitted to the caller. No other provider is attempted
// because the caller has observed partial output.
type StreamInterruptedError struct {
	Provider string
	Chunks   int
	Err      error
}

func (e *StreamInterruptedError) Error() string {
	return fmt.Sprintf("stream from %s interrupted after %d chunks", e.Provider, e.Chunks)
}

func (e *StreamInterruptedError) Unwrap() error { return e.Err }
