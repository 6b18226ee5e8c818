// Package google provides the Google Gemini client implementation of llm.Client.
package google

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"devteam/pkg/llm"
	"devteam/pkg/llm/llmerrors"
	"devteam/pkg/tools"
)

// Client wraps the Google GenAI client to implement llm.Client.
type Client struct {
	client *genai.Client
	apiKey string
	model  string
}

// NewClient creates a new Gemini client for the given model. The underlying
// genai client needs a context, so it is created lazily on first use.
func NewClient(apiKey, model string) llm.Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
	}
}

// Complete implements the llm.Client interface.
func (g *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	if g.client == nil {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, err, "failed to create Gemini client")
		}
		g.client = client
	}

	contents, systemInstruction, err := convertMessages(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message conversion error: %v", err))
	}

	config := &genai.GenerateContentConfig{
		Temperature:     &in.Temperature,
		MaxOutputTokens: int32(in.MaxTokens), //nolint:gosec // MaxTokens validated at config load
	}

	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}

	if len(in.Tools) > 0 {
		config.Tools = []*genai.Tool{
			{FunctionDeclarations: convertTools(in.Tools)},
		}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAuto,
			},
		}
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, "Gemini API call failed")
	}
	if result == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from Gemini API")
	}

	response := llm.CompletionResponse{
		Content:    result.Text(),
		StopReason: "end_turn",
	}
	if calls := result.FunctionCalls(); len(calls) > 0 {
		response.ToolCalls = convertFunctionCalls(calls)
	}

	return response, nil
}

// ModelName returns the model name for this client.
func (g *Client) ModelName() string {
	return g.model
}

// convertMessages converts messages to Gemini's Content format. System
// messages collapse into the returned system instruction. Gemini uses
// "model" where other providers use "assistant".
func convertMessages(messages []llm.CompletionMessage) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("message list cannot be empty")
	}

	var systemInstruction string
	var contents []*genai.Content
	for i := range messages {
		msg := &messages[i]

		if msg.Role == llm.RoleSystem {
			if systemInstruction != "" {
				systemInstruction += "\n\n" + msg.Content
			} else {
				systemInstruction = msg.Content
			}
			continue
		}

		var role string
		switch msg.Role {
		case llm.RoleUser:
			role = "user"
		case llm.RoleAssistant:
			role = "model"
		default:
			return nil, "", fmt.Errorf("unsupported message role: %s", msg.Role)
		}

		if msg.Content == "" {
			continue
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	return contents, systemInstruction, nil
}

// convertTools converts tool definitions to Gemini function declarations.
func convertTools(toolDefs []tools.ToolDefinition) []*genai.FunctionDeclaration {
	declarations := make([]*genai.FunctionDeclaration, len(toolDefs))
	for i := range toolDefs {
		tool := &toolDefs[i]
		properties := make(map[string]*genai.Schema)
		for name, prop := range tool.InputSchema.Properties {
			properties[name] = propertySchema(&prop)
		}
		declarations[i] = &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   tool.InputSchema.Required,
			},
		}
	}
	return declarations
}

// propertySchema recursively converts a Property to Gemini schema format.
func propertySchema(prop *tools.Property) *genai.Schema {
	schema := &genai.Schema{
		Description: prop.Description,
	}

	switch prop.Type {
	case "string":
		schema.Type = genai.TypeString
	case "number":
		schema.Type = genai.TypeNumber
	case "integer":
		schema.Type = genai.TypeInteger
	case "boolean":
		schema.Type = genai.TypeBoolean
	case "array":
		schema.Type = genai.TypeArray
		if prop.Items != nil {
			schema.Items = propertySchema(prop.Items)
		}
	case "object":
		schema.Type = genai.TypeObject
		if prop.Properties != nil {
			children := make(map[string]*genai.Schema)
			for name, child := range prop.Properties {
				if child != nil {
					children[name] = propertySchema(child)
				}
			}
			schema.Properties = children
		}
	default:
		schema.Type = genai.TypeString
	}

	if len(prop.Enum) > 0 {
		schema.Enum = prop.Enum
	}

	return schema
}

// convertFunctionCalls converts Gemini function calls to llm.ToolCall.
// Gemini does not always provide call IDs, so the function name stands in.
func convertFunctionCalls(calls []*genai.FunctionCall) []llm.ToolCall {
	toolCalls := make([]llm.ToolCall, len(calls))
	for i := range calls {
		call := calls[i]
		id := call.ID
		if id == "" {
			id = call.Name
		}
		toolCalls[i] = llm.ToolCall{
			ID:         id,
			Name:       call.Name,
			Parameters: call.Args,
		}
	}
	return toolCalls
}
