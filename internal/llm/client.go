package llm

import (
	"context"
	"errors"
	"strings"
)

// Provider represents an LLM provider.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderOllama    Provider = "ollama"
)

// Request represents a chat completion request.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// JSONMode asks the provider to constrain output to a JSON object where
	// the API supports it.
	JSONMode bool
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Response represents a chat completion response.
type Response struct {
	Content string
	Model   string
}

// Client is the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Provider() Provider
	Model() string
}

var (
	// ErrInvalidResponse indicates the LLM returned an invalid response.
	ErrInvalidResponse = errors.New("invalid LLM response")

	// ErrEmptyResponse indicates the LLM returned no content.
	ErrEmptyResponse = errors.New("empty LLM response")

	// ErrRateLimit indicates rate limiting was hit.
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrProviderError indicates a provider-specific error.
	ErrProviderError = errors.New("provider error")

	// ErrNotConfigured indicates the requested provider has no credentials.
	ErrNotConfigured = errors.New("provider not configured")
)

// splitSystem separates system messages from the conversation for providers
// that take the system prompt as a dedicated parameter.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
