// Package llm defines the interface for language model inference and the
// completion types shared by all provider clients.
package llm

import (
	"context"

	"devteam/pkg/tools"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	// RoleSystem indicates a system message that provides instructions or context.
	RoleSystem CompletionRole = "system"
	// RoleUser indicates a message from the human user (or a tool result).
	RoleUser CompletionRole = "user"
	// RoleAssistant indicates a message from the model.
	RoleAssistant CompletionRole = "assistant"
)

// CompletionMessage represents a message in a completion request.
type CompletionMessage struct {
	Role    CompletionRole
	Content string
}

// ToolCall represents a tool call made by the model.
type ToolCall struct {
	Parameters map[string]any `json:"parameters"`
	ID         string         `json:"id"`
	Name       string         `json:"name"`
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Messages    []CompletionMessage
	Tools       []tools.ToolDefinition
	Temperature float32
	MaxTokens   int
}

// CompletionResponse represents a response from a completion request.
type CompletionResponse struct {
	Content    string
	StopReason string
	ToolCalls  []ToolCall
}

// Client defines the interface for language model interactions. Inference
// failures are terminal for the call; the orchestration core does not retry
// them.
type Client interface {
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// ModelName returns the backing model identifier for logging.
	ModelName() string
}

// NewCompletionRequest creates a completion request with default limits.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		MaxTokens:   4096,
		Temperature: 0.2,
	}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleAssistant, Content: content}
}
