// Package ollama provides the Ollama client implementation of llm.Client.
// Ollama is a local LLM runtime for running open-source models.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"devteam/pkg/llm"
	"devteam/pkg/llm/llmerrors"
	"devteam/pkg/tools"
)

// DefaultHost is the Ollama server address used when none is configured.
const DefaultHost = "http://localhost:11434"

// Client wraps the Ollama API client to implement llm.Client.
type Client struct {
	client *api.Client
	model  string
}

// NewClient creates a new Ollama client for the given model. hostURL is the
/// Ollama server URL, e.g. "http://localhost:11434".
func NewClient(hostURL, model string) llm.Client {
	parsed, err := url.Parse(hostURL)
	if err != nil || hostURL == "" {
		parsed, _ = url.Parse(DefaultHost)
	}
	return &Client{
		client: api.NewClient(parsed, http.DefaultClient),
		model:  model,
	}
}

// Complete implements the llm.Client interface.
func (o *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	if len(in.Messages) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "message list cannot be empty")
	}

	messages := make([]api.Message, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		messages = append(messages, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxTokens,
		},
	}

	if len(in.Tools) > 0 {
		req.Tools = convertTools(in.Tools)
	}

	var response api.ChatResponse
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}

	result := llm.CompletionResponse{
		Content:    response.Message.Content,
		StopReason: stopReason(&response),
	}
	if len(response.Message.ToolCalls) > 0 {
		result.ToolCalls = convertToolCalls(response.Message.ToolCalls)
	}

	return result, nil
}

// ModelName returns the model name for this client.
func (o *Client) ModelName() string {
	return o.model
}

// convertTools converts tool definitions to Ollama's Tool format.
func convertTools(toolDefs []tools.ToolDefinition) api.Tools {
	ollamaTools := make(api.Tools, len(toolDefs))
	for i := range toolDefs {
		td := &toolDefs[i]
		properties := api.NewToolPropertiesMap()
		for name := range td.InputSchema.Properties {
			prop := td.InputSchema.Properties[name]
			properties.Set(name, convertProperty(&prop))
		}
		ollamaTools[i] = api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        td.Name,
				Description: td.Description,
				Parameters: api.ToolFunctionParameters{
					Type:       td.InputSchema.Type,
					Properties: properties,
					Required:   td.InputSchema.Required,
				},
			},
		}
	}
	return ollamaTools
}

// convertProperty converts a tool property to Ollama format.
func convertProperty(prop *tools.Property) api.ToolProperty {
	ollamaProp := api.ToolProperty{
		Type:        api.PropertyType{prop.Type},
		Description: prop.Description,
	}

	if len(prop.Enum) > 0 {
		enumVals := make([]any, len(prop.Enum))
		for i, v := range prop.Enum {
			enumVals[i] = v
		}
		ollamaProp.Enum = enumVals
	}

	if prop.Items != nil {
		ollamaProp.Items = convertProperty(prop.Items)
	}

	return ollamaProp
}

// convertToolCalls extracts tool calls from an Ollama response.
func convertToolCalls(calls []api.ToolCall) []llm.ToolCall {
	result := make([]llm.ToolCall, len(calls))
	for i := range calls {
		call := &calls[i]
		id := call.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		result[i] = llm.ToolCall{
			ID:         id,
			Name:       call.Function.Name,
			Parameters: call.Function.Arguments.ToMap(),
		}
	}
	return result
}

// stopReason converts Ollama's done_reason to the shared stop reason format.
func stopReason(resp *api.ChatResponse) string {
	if !resp.Done {
		return "incomplete"
	}
	switch resp.DoneReason {
	case "stop", "":
		return "end_turn"
	case "length":
		return "max_tokens"
	default:
		return resp.DoneReason
	}
}

// classifyError converts Ollama errors to structured error types.
func classifyError(err error) error {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "Ollama server not reachable")
	case strings.Contains(errStr, "model") && strings.Contains(errStr, "not found"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "Ollama model not found")
	case strings.Contains(errStr, "context canceled") || strings.Contains(errStr, "timeout"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request interrupted")
	default:
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, "Ollama API error")
	}
}
