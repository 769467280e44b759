package llm

import (
	"context"
	"sync"
)

// MockClient is a mock LLM client for testing.
type MockClient struct {
	mu          sync.Mutex
	Response    string
	Error       error
	CallCount   int
	LastRequest *Request
}

// NewMockClient creates a new mock LLM client.
func NewMockClient(response string) *MockClient {
	return &MockClient{Response: response}
}

// Complete returns the mock response.
func (c *MockClient) Complete(ctx context.Context, req Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.CallCount++
	c.LastRequest = &req

	if c.Error != nil {
		return nil, c.Error
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Response{
		Content: c.Response,
		Model:   "mock-model",
	}, nil
}

// Calls returns the number of Complete calls so far.
func (c *MockClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCount
}

// Provider returns the mock provider.
func (c *MockClient) Provider() Provider {
	return "mock"
}

// Model returns the mock model name.
func (c *MockClient) Model() string {
	return "mock-model"
}

var _ Client = (*MockClient)(nil)
