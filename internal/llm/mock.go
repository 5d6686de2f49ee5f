package llm

import (
	"context"

	"github.com/largeweb/skapp-sub000/internal/domain"
)

// MockClient is a configurable generation client for testing. Set the
// response fields to control what Generate returns; Responses (when
// non-empty) is consumed one entry per call before falling back to
// GenerateResponse.
type MockClient struct {
	GenerateResponse string
	GenerateError    error
	Responses        []string

	// Call tracking for assertions
	GenerateCalls []domain.GenerationRequest
}

func NewMockClient() *MockClient {
	return &MockClient{
		GenerateResponse: "Mock response",
	}
}

func (c *MockClient) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	c.GenerateCalls = append(c.GenerateCalls, req)
	if c.GenerateError != nil {
		return "", c.GenerateError
	}
	if len(c.Responses) > 0 {
		resp := c.Responses[0]
		c.Responses = c.Responses[1:]
		return resp, nil
	}
	return c.GenerateResponse, nil
}

// Reset clears recorded calls and restores default responses.
func (c *MockClient) Reset() {
	c.GenerateResponse = "Mock response"
	c.GenerateError = nil
	c.Responses = nil
	c.GenerateCalls = nil
}
