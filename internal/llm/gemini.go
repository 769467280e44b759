package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient implements Client for Google Gemini.
type GeminiClient struct {
	apiKey string
	model  string
	opts   []option.ClientOption
	logger *slog.Logger
}

// NewGeminiClient creates a new Gemini client. The underlying SDK client is
// opened per call and closed when the call returns.
func NewGeminiClient(apiKey, model string, logger *slog.Logger, opts ...option.ClientOption) *GeminiClient {
	if model == "" {
		model = defaultGeminiModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiClient{apiKey: apiKey, model: model, opts: opts, logger: logger}
}

func (c *GeminiClient) Provider() Provider { return ProviderGoogle }
func (c *GeminiClient) Model() string      { return c.model }

// Complete sends a completion request to Gemini.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (*Response, error) {
	opts := append([]option.ClientOption{option.WithAPIKey(c.apiKey)}, c.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(c.model)
	parts := configureGeminiModel(model, req)

	c.logger.Debug("gemini request", "model", c.model, "parts", len(parts))
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderError, err)
	}

	content, err := geminiText(resp)
	if err != nil {
		return nil, err
	}
	return &Response{
		Content: content,
		Model:   c.model,
	}, nil
}

// configureGeminiModel applies the request's system prompt and generation
// settings to model and returns the remaining messages as parts.
func configureGeminiModel(model *genai.GenerativeModel, req Request) []genai.Part {
	system, rest := splitSystem(req.Messages)
	if system != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}

	temp := float32(req.Temperature)
	model.GenerationConfig = genai.GenerationConfig{Temperature: &temp}
	if req.MaxTokens > 0 {
		maxTokens := int32(req.MaxTokens)
		model.GenerationConfig.MaxOutputTokens = &maxTokens
	}
	if req.JSONMode {
		model.GenerationConfig.ResponseMIMEType = "application/json"
	}

	parts := make([]genai.Part, 0, len(rest))
	for _, m := range rest {
		parts = append(parts, genai.Text(m.Content))
	}
	return parts
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrInvalidResponse
	}
	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.WriteString(string(txt))
		}
	}
	return out.String(), nil
}

var _ Client = (*GeminiClient)(nil)
