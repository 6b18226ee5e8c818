// Package tools provides the tool registry, capability gating, and the
// concrete tool implementations offered to role agents.
package tools

import "context"

// Tool is a named operation an agent can invoke.
type Tool interface {
	// Name returns the stable identifier agents use to invoke the tool.
	Name() string

	// Definition returns the tool definition passed to the LLM.
	Definition() ToolDefinition

	// Exec executes the tool with arguments decoded from the LLM tool call.
	Exec(ctx context.Context, args map[string]any) (*ExecResult, error)
}

// ToolDefinition describes a tool to the LLM.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema InputSchema
}

// InputSchema is a JSON-schema object describing tool parameters.
type InputSchema struct {
	Type       string
	Properties map[string]Property
	Required   []string
}

// Property describes a single schema property.
type Property struct {
	Type        string
	Description string
	Enum        []string
	Items       *Property
	Properties  map[string]*Property
}

// ExecResult is the outcome of a tool execution, rendered back to the LLM as
// a tool result message.
type ExecResult struct {
	Content string
	Success bool
}

func successResult(content string) *ExecResult {
	return &ExecResult{Content: content, Success: true}
}

func errorResult(content string) *ExecResult {
	return &ExecResult{Content: content, Success: false}
}
