package llm

import (
	"context"
	"fmt"
	"log/slog"
)

// ModelInfo describes an available model.
type ModelInfo struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Provider Provider `json:"provider"`
}

// ProviderInfo describes an available provider.
type ProviderInfo struct {
	ID        Provider    `json:"id"`
	Name      string      `json:"name"`
	Available bool        `json:"available"`
	Models    []ModelInfo `json:"models"`
}

// ClientFactory is the interface for LLM client factories.
type ClientFactory interface {
	Available() bool
	DefaultProvider() Provider
	DefaultModel() string
	ListProviders(ctx context.Context) []ProviderInfo
	CreateClient(provider Provider, model string) (Client, error)
	CreateDefaultClient() (Client, error)
}

// Credentials holds provider credentials and endpoints. Values are supplied
// by the caller; the factory never reads the environment.
type Credentials struct {
	OpenAIKey     string
	OpenAIBaseURL string
	AnthropicKey  string
	GeminiKey     string
	OllamaHost    string

	// DefaultProvider and DefaultModel override auto-detection when set.
	DefaultProvider Provider
	DefaultModel    string
}

var knownModels = map[Provider][]ModelInfo{
	ProviderAnthropic: {
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", Provider: ProviderAnthropic},
		{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", Provider: ProviderAnthropic},
		{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", Provider: ProviderAnthropic},
	},
	ProviderGoogle: {
		{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Provider: ProviderGoogle},
		{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Provider: ProviderGoogle},
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: ProviderGoogle},
	},
	ProviderOpenAI: {
		{ID: "gpt-4o", Name: "GPT-4o", Provider: ProviderOpenAI},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: ProviderOpenAI},
		{ID: "gpt-4.1", Name: "GPT-4.1", Provider: ProviderOpenAI},
		{ID: "o3-mini", Name: "o3 Mini", Provider: ProviderOpenAI},
	},
}

// Factory creates LLM clients on demand.
type Factory struct {
	creds      Credentials
	defaultMod string
	defaultPrv Provider
	logger     *slog.Logger
}

// NewFactory creates a new LLM client factory from explicit credentials.
func NewFactory(creds Credentials, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Factory{creds: creds, logger: logger}

	// Prefer Anthropic > Google > OpenAI > Ollama unless overridden.
	switch {
	case creds.DefaultProvider != "" && f.configured(creds.DefaultProvider):
		f.defaultPrv = creds.DefaultProvider
	case creds.AnthropicKey != "":
		f.defaultPrv = ProviderAnthropic
	case creds.GeminiKey != "":
		f.defaultPrv = ProviderGoogle
	case creds.OpenAIKey != "":
		f.defaultPrv = ProviderOpenAI
	case creds.OllamaHost != "":
		f.defaultPrv = ProviderOllama
	}

	f.defaultMod = creds.DefaultModel
	if f.defaultMod == "" {
		f.defaultMod = firstModel(f.defaultPrv)
	}
	return f
}

func firstModel(p Provider) string {
	if p == ProviderOllama {
		return defaultOllamaModel
	}
	if models := knownModels[p]; len(models) > 0 {
		return models[0].ID
	}
	return ""
}

func (f *Factory) configured(p Provider) bool {
	switch p {
	case ProviderAnthropic:
		return f.creds.AnthropicKey != ""
	case ProviderGoogle:
		return f.creds.GeminiKey != ""
	case ProviderOpenAI:
		return f.creds.OpenAIKey != ""
	case ProviderOllama:
		return f.creds.OllamaHost != ""
	default:
		return false
	}
}

// Available returns true if at least one provider is configured.
func (f *Factory) Available() bool {
	return f.defaultPrv != ""
}

// DefaultProvider returns the default provider.
func (f *Factory) DefaultProvider() Provider {
	return f.defaultPrv
}

// DefaultModel returns the default model.
func (f *Factory) DefaultModel() string {
	return f.defaultMod
}

// ListProviders returns all providers with their availability status.
// Installed Ollama models are fetched live; the rest are a static catalog.
func (f *Factory) ListProviders(ctx context.Context) []ProviderInfo {
	providers := []ProviderInfo{
		{ID: ProviderAnthropic, Name: "Anthropic Claude"},
		{ID: ProviderGoogle, Name: "Google Gemini"},
		{ID: ProviderOpenAI, Name: "OpenAI"},
		{ID: ProviderOllama, Name: "Ollama"},
	}
	for i := range providers {
		p := &providers[i]
		p.Available = f.configured(p.ID)
		p.Models = []ModelInfo{}
		if !p.Available {
			continue
		}
		if p.ID != ProviderOllama {
			p.Models = append(p.Models, knownModels[p.ID]...)
			continue
		}
		models, err := FetchOllamaModels(ctx, f.creds.OllamaHost)
		if err != nil {
			f.logger.Warn("failed to fetch ollama models", "error", err)
			models = []ModelInfo{{ID: defaultOllamaModel, Name: defaultOllamaModel, Provider: ProviderOllama}}
		}
		p.Models = models
	}
	return providers
}

// CreateClient creates a client for the specified provider and model.
func (f *Factory) CreateClient(provider Provider, model string) (Client, error) {
	if !f.configured(provider) {
		switch provider {
		case ProviderAnthropic, ProviderGoogle, ProviderOpenAI, ProviderOllama:
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, provider)
		default:
			return nil, fmt.Errorf("unsupported provider: %s", provider)
		}
	}

	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(f.creds.AnthropicKey, model, f.logger), nil
	case ProviderGoogle:
		return NewGeminiClient(f.creds.GeminiKey, model, f.logger), nil
	case ProviderOpenAI:
		return NewOpenAIClient(f.creds.OpenAIKey, model, f.logger, WithOpenAIBaseURL(f.creds.OpenAIBaseURL)), nil
	default:
		return NewOllamaClient(f.creds.OllamaHost, model, f.logger), nil
	}
}

// CreateDefaultClient creates a client with the default provider and model.
func (f *Factory) CreateDefaultClient() (Client, error) {
	if !f.Available() {
		return nil, fmt.Errorf("%w: no LLM credentials", ErrNotConfigured)
	}
	return f.CreateClient(f.defaultPrv, f.defaultMod)
}

// StaticFactory hands out a single pre-built client. Useful for tests and
// for wiring a client constructed elsewhere.
type StaticFactory struct {
	Client Client
}

// NewStaticFactory wraps client in a ClientFactory.
func NewStaticFactory(client Client) *StaticFactory {
	return &StaticFactory{Client: client}
}

func (s *StaticFactory) Available() bool           { return s.Client != nil }
func (s *StaticFactory) DefaultProvider() Provider { return s.Client.Provider() }
func (s *StaticFactory) DefaultModel() string      { return s.Client.Model() }

func (s *StaticFactory) ListProviders(ctx context.Context) []ProviderInfo {
	return []ProviderInfo{{
		ID:        s.Client.Provider(),
		Name:      string(s.Client.Provider()),
		Available: true,
		Models:    []ModelInfo{{ID: s.Client.Model(), Name: s.Client.Model(), Provider: s.Client.Provider()}},
	}}
}

func (s *StaticFactory) CreateClient(provider Provider, model string) (Client, error) {
	return s.Client, nil
}

func (s *StaticFactory) CreateDefaultClient() (Client, error) {
	return s.Client, nil
}

var (
	_ ClientFactory = (*Factory)(nil)
	_ ClientFactory = (*StaticFactory)(nil)
)
