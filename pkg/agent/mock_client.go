package agent

import (
	"context"
	"fmt"

	"devteam/pkg/llm"
)

// MockLLMClient provides a controllable implementation of llm.Client for
// testing. Responses and errors are consumed in order; CompleteFunc, when
// set, overrides the scripted behavior entirely.
type MockLLMClient struct {
	CompleteFunc  func(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error)
	Requests      []llm.CompletionRequest
	responses     []llm.CompletionResponse
	responseIndex int
	errors        []error
	errorIndex    int
}

// NewMockLLMClient creates a new mock client with predefined responses.
func NewMockLLMClient(responses []llm.CompletionResponse, errors []error) *MockLLMClient {
	return &MockLLMClient{
		responses: responses,
		errors:    errors,
	}
}

// Complete returns the next predefined response or error.
func (m *MockLLMClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	m.Requests = append(m.Requests, in)

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, in)
	}

	if m.errorIndex < len(m.errors) && m.errors[m.errorIndex] != nil {
		err := m.errors[m.errorIndex]
		m.errorIndex++
		return llm.CompletionResponse{}, err
	}

	if m.responseIndex >= len(m.responses) {
		return llm.CompletionResponse{}, fmt.Errorf("mock client: no more responses")
	}

	resp := m.responses[m.responseIndex]
	m.responseIndex++
	return resp, nil
}

// ModelName returns a fixed identifier for log assertions.
func (m *MockLLMClient) ModelName() string {
	return "mock-model"
}
