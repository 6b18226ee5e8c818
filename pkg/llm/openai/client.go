// Package openai provides the OpenAI client implementation of llm.Client
// using the official OpenAI Go package.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"devteam/pkg/llm"
	"devteam/pkg/llm/llmerrors"
	"devteam/pkg/tools"
)

// Client wraps the official OpenAI Go client to implement llm.Client.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates a new OpenAI client for the given model.
func NewClient(apiKey, model string) llm.Client {
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// propertySchema recursively converts a Property to OpenAI schema format.
func propertySchema(prop *tools.Property) map[string]interface{} {
	schema := map[string]interface{}{
		"type":        prop.Type,
		"description": prop.Description,
	}
	if len(prop.Enum) > 0 {
		schema["enum"] = prop.Enum
	}
	if prop.Type == "array" && prop.Items != nil {
		schema["items"] = propertySchema(prop.Items)
	}
	if prop.Type == "object" && prop.Properties != nil {
		children := make(map[string]interface{})
		for name, child := range prop.Properties {
			if child != nil {
				children[name] = propertySchema(child)
			}
		}
		schema["properties"] = children
	}
	return schema
}

// Complete implements the llm.Client interface using the Responses API.
func (o *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	// The Responses API takes a single input string, so fold the
	// conversation into one transcript.
	var inputText string
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case llm.RoleSystem:
			inputText += fmt.Sprintf("System: %s\n\n", msg.Content)
		case llm.RoleAssistant:
			inputText += fmt.Sprintf("Assistant: %s\n\n", msg.Content)
		default:
			inputText += msg.Content + "\n\n"
		}
	}

	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(int64(in.MaxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(inputText)},
	}

	if len(in.Tools) > 0 {
		toolParams := make([]responses.ToolUnionParam, len(in.Tools))
		for i := range in.Tools {
			tool := &in.Tools[i]
			properties := make(map[string]interface{})
			for name, prop := range tool.InputSchema.Properties {
				properties[name] = propertySchema(&prop)
			}
			toolParams[i] = responses.ToolUnionParam{
				OfFunction: &responses.FunctionToolParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters: openai.FunctionParameters(map[string]interface{}{
						"type":       "object",
						"properties": properties,
						"required":   tool.InputSchema.Required,
					}),
				},
			}
		}
		params.Tools = toolParams
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}

	var toolCalls []llm.ToolCall
	for i := range resp.Output {
		item := &resp.Output[i]
		if item.Type != "function_call" {
			continue
		}
		call := item.AsFunctionCall()
		var args map[string]interface{}
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				continue
			}
		}
		toolCalls = append(toolCalls, llm.ToolCall{
			ID:         call.ID,
			Name:       call.Name,
			Parameters: args,
		})
	}

	return llm.CompletionResponse{
		Content:   resp.OutputText(),
		ToolCalls: toolCalls,
	}, nil
}

// ModelName returns the model name for this client.
func (o *Client) ModelName() string {
	return o.model
}

// classifyError maps OpenAI SDK errors to structured error types.
func classifyError(err error) *llmerrors.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request interrupted")
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return llmerrors.NewErrorWithStatus(llmerrors.ClassifyStatus(apiErr.StatusCode), apiErr.StatusCode, apiErr.Error())
	}

	return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, "OpenAI Responses API failed")
}
