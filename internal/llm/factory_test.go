package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFactory_Defaults(t *testing.T) {
	tests := []struct {
		name      string
		creds     Credentials
		wantPrv   Provider
		wantModel string
	}{
		{"none", Credentials{}, "", ""},
		{"anthropic preferred", Credentials{AnthropicKey: "a", OpenAIKey: "o"}, ProviderAnthropic, "claude-sonnet-4-20250514"},
		{"gemini over openai", Credentials{GeminiKey: "g", OpenAIKey: "o"}, ProviderGoogle, "gemini-2.5-flash"},
		{"openai only", Credentials{OpenAIKey: "o"}, ProviderOpenAI, "gpt-4o"},
		{"ollama only", Credentials{OllamaHost: "http://localhost:11434"}, ProviderOllama, "llama3.2"},
		{"explicit override", Credentials{AnthropicKey: "a", OpenAIKey: "o", DefaultProvider: ProviderOpenAI, DefaultModel: "gpt-4.1"}, ProviderOpenAI, "gpt-4.1"},
		{"override ignored when unconfigured", Credentials{OpenAIKey: "o", DefaultProvider: ProviderGoogle}, ProviderOpenAI, "gpt-4o"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFactory(tt.creds, nil)
			assert.Equal(t, tt.wantPrv, f.DefaultProvider())
			assert.Equal(t, tt.wantModel, f.DefaultModel())
			assert.Equal(t, tt.wantPrv != "", f.Available())
		})
	}
}

func TestFactory_CreateClient(t *testing.T) {
	f := NewFactory(Credentials{OpenAIKey: "o", AnthropicKey: "a", GeminiKey: "g"}, nil)

	c, err := f.CreateClient(ProviderOpenAI, "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, c.Provider())
	assert.Equal(t, "gpt-4o-mini", c.Model())

	c, err = f.CreateClient(ProviderGoogle, "")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", c.Model())

	c, err = f.CreateDefaultClient()
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, c.Provider())

	_, err = f.CreateClient(ProviderOllama, "")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = f.CreateClient("bogus", "")
	assert.Error(t, err)

	_, err = NewFactory(Credentials{}, nil).CreateDefaultClient()
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFactory_ListProviders(t *testing.T) {
	f := NewFactory(Credentials{OpenAIKey: "o"}, nil)

	providers := f.ListProviders(context.Background())
	require.Len(t, providers, 4)
	for _, p := range providers {
		assert.NotNil(t, p.Models)
		if p.ID == ProviderOpenAI {
			assert.True(t, p.Available)
			assert.NotEmpty(t, p.Models)
		} else {
			assert.False(t, p.Available)
			assert.Empty(t, p.Models)
		}
	}
}

func TestStaticFactory(t *testing.T) {
	mock := NewMockClient(`{}`)
	f := NewStaticFactory(mock)

	assert.True(t, f.Available())
	assert.Equal(t, "mock-model", f.DefaultModel())

	c, err := f.CreateClient(ProviderOpenAI, "ignored")
	require.NoError(t, err)
	assert.Same(t, mock, c)
	assert.Len(t, f.ListProviders(context.Background()), 1)
}
