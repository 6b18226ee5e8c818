// Package anthropic provides the Anthropic Claude client implementation of llm.Client.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"devteam/pkg/llm"
	"devteam/pkg/llm/llmerrors"
)

// Client wraps the Anthropic API client to implement llm.Client.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClient creates a new Claude client for the given model.
func NewClient(apiKey, model string) llm.Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// ensureAlternation prepares messages for Anthropic API requirements:
// system messages move to the top-level system parameter, consecutive
// non-assistant messages merge into single user messages, and the
// sequence must end with a user message.
func ensureAlternation(messages []llm.CompletionMessage) (systemPrompt string, alternating []llm.CompletionMessage, err error) {
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("message list cannot be empty")
	}

	var systemParts []string
	var rest []llm.CompletionMessage
	for i := range messages {
		msg := &messages[i]
		if msg.Role == llm.RoleSystem {
			systemParts = append(systemParts, msg.Content)
		} else {
			rest = append(rest, *msg)
		}
	}
	systemPrompt = strings.Join(systemParts, "\n\n")

	if len(rest) == 0 {
		return "", nil, fmt.Errorf("must have at least one non-system message")
	}

	var merged []llm.CompletionMessage
	var userParts []string
	for i := range rest {
		msg := &rest[i]
		if msg.Role == llm.RoleAssistant {
			if len(userParts) > 0 {
				merged = append(merged, llm.CompletionMessage{
					Role:    llm.RoleUser,
					Content: strings.Join(userParts, "\n\n"),
				})
				userParts = nil
			}
			merged = append(merged, *msg)
		} else {
			userParts = append(userParts, msg.Content)
		}
	}
	if len(userParts) > 0 {
		merged = append(merged, llm.CompletionMessage{
			Role:    llm.RoleUser,
			Content: strings.Join(userParts, "\n\n"),
		})
	}

	if merged[0].Role != llm.RoleUser {
		return "", nil, fmt.Errorf("first message must be user role, got: %s", merged[0].Role)
	}
	if merged[len(merged)-1].Role != llm.RoleUser {
		return "", nil, fmt.Errorf("last message must be user role, got: %s", merged[len(merged)-1].Role)
	}

	return systemPrompt, merged, nil
}

// Complete implements the llm.Client interface.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	systemPrompt, alternating, err := ensureAlternation(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message alternation error: %v", err))
	}

	messages := make([]anthropic.MessageParam, 0, len(alternating))
	for i := range alternating {
		msg := &alternating[i]
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   int64(in.MaxTokens),
		Temperature: anthropic.Float(float64(in.Temperature)),
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{
			Text: systemPrompt,
			Type: "text",
		}}
	}

	if len(in.Tools) > 0 {
		var toolParams []anthropic.ToolUnionParam
		for i := range in.Tools {
			tool := &in.Tools[i]

			var properties any
			if len(tool.InputSchema.Properties) > 0 {
				props := make(map[string]any)
				for name, prop := range tool.InputSchema.Properties {
					propMap := map[string]any{"type": prop.Type}
					if prop.Description != "" {
						propMap["description"] = prop.Description
					}
					if len(prop.Enum) > 0 {
						propMap["enum"] = prop.Enum
					}
					props[name] = propMap
				}
				properties = props
			}

			schema := anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: properties,
				Required:   tool.InputSchema.Required,
			}
			toolParams = append(toolParams, anthropic.ToolUnionParamOfTool(schema, tool.Name))
		}
		params.Tools = toolParams
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty response from Claude API")
	}

	var responseText string
	var toolCalls []llm.ToolCall
	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			responseText += block.AsText().Text
		case "tool_use":
			toolUse := block.AsToolUse()
			var args map[string]any
			if err := json.Unmarshal(toolUse.Input, &args); err != nil {
				return llm.CompletionResponse{}, fmt.Errorf("failed to parse tool input: %w", err)
			}
			toolCalls = append(toolCalls, llm.ToolCall{
				ID:         toolUse.ID,
				Name:       toolUse.Name,
				Parameters: args,
			})
		}
	}

	return llm.CompletionResponse{
		Content:    responseText,
		ToolCalls:  toolCalls,
		StopReason: string(resp.StopReason),
	}, nil
}

// ModelName returns the model name for this client.
func (c *Client) ModelName() string {
	return string(c.model)
}

// classifyError maps Anthropic SDK errors to structured error types.
func classifyError(err error) *llmerrors.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request interrupted")
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return llmerrors.NewErrorWithStatus(llmerrors.ClassifyStatus(apiErr.StatusCode), apiErr.StatusCode, apiErr.Error())
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "connection") || strings.Contains(errStr, "eof"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "network error")
	case strings.Contains(errStr, "rate") || strings.Contains(errStr, "quota"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeRateLimit, err, "rate limiting detected")
	case strings.Contains(errStr, "auth") || strings.Contains(errStr, "unauthorized"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, err, "authentication error")
	default:
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, "unclassified error")
	}
}
