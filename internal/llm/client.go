package llm

import (
	"context"
	"fmt"
)

// UseCase identifies the kind of work a request performs. The router maps
// each use case to a configured client.
type UseCase string

const (
	UseCaseExtraction UseCase = "extraction"
	UseCaseChat       UseCase = "chat"
	UseCaseSummary    UseCase = "summary"
	UseCaseAnalysis   UseCase = "analysis"
	UseCaseDefault    UseCase = "default"
)

// Request is a single completion request. Extra carries provider-specific
// parameters that participate in cache key derivation.
type Request struct {
	Extra        map[string]string
	SystemPrompt string
	Prompt       string
	UseCase      UseCase
	Temperature  float64
	MaxTokens    int
}

// Response is the provider's reply with usage accounting.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client defines the interface for LLM providers.
type Client interface {
	// Provider reports which backend this client talks to.
	Provider() Provider
	// Model reports the configured model identifier.
	Model() string
	// Generate sends the request and returns the raw completion text with
	// token usage. Transport, authentication, and provider-side errors are
	// returned as *ProviderError.
	Generate(ctx context.Context, req Request) (Response, error)
}

// Config holds the settings needed to construct a client.
type Config struct {
	Provider    Provider
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// ProviderError is a failure reaching or using a provider's API. It is
// distinct from content-level problems like unparseable completions.
type ProviderError struct {
	Err        error
	Provider   Provider
	StatusCode int
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRateLimited reports whether the provider rejected the call for quota
// reasons.
func (e *ProviderError) IsRateLimited() bool {
	return e.StatusCode == 429
}
