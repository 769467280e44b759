package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaModel = "llama3.2"

// OllamaClient implements Client for an Ollama server.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// NewOllamaClient creates a new Ollama client for the server at baseURL.
func NewOllamaClient(baseURL, model string, logger *slog.Logger) *OllamaClient {
	if model == "" {
		model = defaultOllamaModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 600 * time.Second}, // local inference is slow
		logger:  logger,
	}
}

func (c *OllamaClient) Provider() Provider { return ProviderOllama }
func (c *OllamaClient) Model() string      { return c.model }

// ollamaRequest represents the request to Ollama's /api/chat endpoint.
type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
	Format   string          `json:"format,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"` // max tokens
}

type ollamaResponse struct {
	Model      string        `json:"model"`
	Message    ollamaMessage `json:"message"`
	Done       bool          `json:"done"`
	DoneReason string        `json:"done_reason,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Complete sends a completion request to Ollama.
func (c *OllamaClient) Complete(ctx context.Context, req Request) (*Response, error) {
	messages := make([]ollamaMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, ollamaMessage{Role: m.Role, Content: m.Content})
	}

	ollamaReq := ollamaRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options:  &ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
	}
	if req.JSONMode {
		ollamaReq.Format = "json"
	}

	body, err := json.Marshal(ollamaReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("ollama request", "model", c.model, "host", c.baseURL, "prompt_bytes", len(body))
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderError, resp.StatusCode, string(respBody[:min(500, len(respBody))]))
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(respBody, &ollamaResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if ollamaResp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrProviderError, ollamaResp.Error)
	}
	if ollamaResp.DoneReason == "length" {
		return nil, fmt.Errorf("%w: response truncated (hit token limit)", ErrInvalidResponse)
	}

	return &Response{
		Content: ollamaResp.Message.Content,
		Model:   c.model,
	}, nil
}

type ollamaTagsResponse struct {
	Models []struct {
		Name    string `json:"name"`
		Model   string `json:"model"`
		Details struct {
			ParameterSize string `json:"parameter_size"`
		} `json:"details"`
	} `json:"models"`
}

// FetchOllamaModels lists the models installed on an Ollama server.
func FetchOllamaModels(ctx context.Context, baseURL string) ([]ModelInfo, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch models failed: status %d", resp.StatusCode)
	}

	var tagsResp ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	models := make([]ModelInfo, 0, len(tagsResp.Models))
	for _, m := range tagsResp.Models {
		id := m.Name
		if id == "" {
			id = m.Model
		}
		name := id
		if m.Details.ParameterSize != "" {
			name = fmt.Sprintf("%s (%s)", id, m.Details.ParameterSize)
		}
		models = append(models, ModelInfo{ID: id, Name: name, Provider: ProviderOllama})
	}
	return models, nil
}

var _ Client = (*OllamaClient)(nil)
