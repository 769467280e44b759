package llm

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureGeminiModel(t *testing.T) {
	model := &genai.GenerativeModel{}
	parts := configureGeminiModel(model, testRequest())

	require.NotNil(t, model.SystemInstruction)
	assert.Equal(t, []genai.Part{genai.Text("persona")}, model.SystemInstruction.Parts)
	assert.Equal(t, "application/json", model.ResponseMIMEType)
	require.NotNil(t, model.MaxOutputTokens)
	assert.Equal(t, int32(512), *model.MaxOutputTokens)
	require.NotNil(t, model.Temperature)
	assert.Equal(t, float32(0.5), *model.Temperature)
	assert.Equal(t, []genai.Part{genai.Text("idea")}, parts)
}

func TestConfigureGeminiModel_PlainText(t *testing.T) {
	model := &genai.GenerativeModel{}
	parts := configureGeminiModel(model, Request{Messages: []Message{{Role: "user", Content: "hi"}}})

	assert.Nil(t, model.SystemInstruction)
	assert.Empty(t, model.ResponseMIMEType)
	assert.Nil(t, model.MaxOutputTokens)
	assert.Len(t, parts, 1)
}

func TestGeminiText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"a":`), genai.Text(`1}`)}},
	}}}
	got, err := geminiText(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got)

	for _, bad := range []*genai.GenerateContentResponse{
		nil,
		{},
		{Candidates: []*genai.Candidate{{}}},
	} {
		_, err := geminiText(bad)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	}
}

func TestGeminiClient_Defaults(t *testing.T) {
	c := NewGeminiClient("key", "", nil)
	assert.Equal(t, ProviderGoogle, c.Provider())
	assert.Equal(t, defaultGeminiModel, c.Model())
}
