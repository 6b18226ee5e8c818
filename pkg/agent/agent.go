// Package agent builds role-specialized LLM agents and the manager that
// coordinates them. An agent is an LLM client plus an immutable, ordered set
// of tool bindings resolved once at construction.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"devteam/pkg/config"
	"devteam/pkg/llm"
	"devteam/pkg/logx"
	"devteam/pkg/tools"
)

// RoleAgent is a single specialist agent. Its tool bindings are resolved
// against capability availability at construction time and never change
// afterwards.
type RoleAgent struct {
	role         string
	client       llm.Client
	bindings     []tools.Tool
	byName       map[string]tools.Tool
	defs         []tools.ToolDefinition
	imports      []string
	systemPrompt string
	modelCfg     config.AgentModelConfig
	logger       *logx.Logger
}

// Builder constructs agents from configuration. NewClient defaults to the
// provider factory; tests replace it with a mock.
type Builder struct {
	Config    *config.Config
	Provider  *tools.Provider
	NewClient ClientFactory
	Logger    *logx.Logger
}

// candidatesForRole returns the ordered candidate tool list for a role.
func candidatesForRole(role string) []string {
	switch role {
	case config.RoleArchitect:
		return tools.ArchitectTools
	case config.RoleDeveloper:
		return tools.DeveloperTools
	case config.RoleTester:
		return tools.TesterTools
	case config.RoleReviewer:
		return tools.ReviewerTools
	default:
		return nil
	}
}

// RoleAgent builds the agent for a role. Returns
// ErrMissingModelConfiguration when the role has no model id so callers can
// aggregate missing roles into a single report.
func (b *Builder) RoleAgent(role string) (*RoleAgent, error) {
	ac, ok := b.Config.AgentConfig(role)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingModelConfiguration, role)
	}

	newClient := b.NewClient
	if newClient == nil {
		newClient = NewLLMClient
	}
	client, err := newClient(ac)
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", role, err)
	}

	bound, err := b.Provider.Bind(candidatesForRole(role))
	if err != nil {
		return nil, fmt.Errorf("binding %s tools: %w", role, err)
	}

	byName := make(map[string]tools.Tool, len(bound))
	defs := make([]tools.ToolDefinition, 0, len(bound))
	for _, t := range bound {
		byName[t.Name()] = t
		defs = append(defs, t.Definition())
	}

	logger := b.Logger
	if logger == nil {
		logger = logx.NewLogger(role)
	}

	imports := uniqueImports(ac.PermittedImports)

	return &RoleAgent{
		role:         role,
		client:       client,
		bindings:     bound,
		byName:       byName,
		defs:         defs,
		imports:      imports,
		systemPrompt: roleSystemPrompt(role, bound, imports),
		modelCfg:     ac,
		logger:       logger,
	}, nil
}

// uniqueImports copies the configured import list, dropping duplicates while
// keeping first-seen order.
func uniqueImports(configured []string) []string {
	seen := make(map[string]struct{}, len(configured))
	imports := make([]string, 0, len(configured))
	for _, name := range configured {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		imports = append(imports, name)
	}
	return imports
}

// Role returns the role name.
func (a *RoleAgent) Role() string {
	return a.role
}

// PermittedImports returns the agent's import allow-list in configuration
// order.
func (a *RoleAgent) PermittedImports() []string {
	return a.imports
}

// Bindings returns the agent's tool bindings in construction order.
func (a *RoleAgent) Bindings() []tools.Tool {
	return a.bindings
}

// ModelName returns the backing model identifier.
func (a *RoleAgent) ModelName() string {
	return a.client.ModelName()
}

// stepBudget returns the configured budget for this agent.
func (a *RoleAgent) stepBudget() int {
	if a.modelCfg.StepBudget > 0 {
		return a.modelCfg.StepBudget
	}
	return config.DefaultStepBudget
}

// Run executes the tool loop for a task. Each iteration costs one step of
// the budget; the loop ends when the model replies without tool calls. Tool
// failures are fed back to the model as results, never raised.
func (a *RoleAgent) Run(ctx context.Context, task string) (string, error) {
	messages := []llm.CompletionMessage{
		llm.NewSystemMessage(a.systemPrompt),
		llm.NewUserMessage(task),
	}

	budget := a.stepBudget()
	var lastContent string

	for step := 1; step <= budget; step++ {
		req := llm.CompletionRequest{
			Messages:    messages,
			Tools:       a.defs,
			Temperature: a.modelCfg.Temperature,
			MaxTokens:   a.modelCfg.MaxTokens,
		}

		resp, err := a.client.Complete(ctx, req)
		if err != nil {
			return "", fmt.Errorf("%s inference failed at step %d: %w", a.role, step, err)
		}

		if resp.Content != "" {
			lastContent = resp.Content
		}
		if len(resp.ToolCalls) == 0 {
			a.logger.Debug("%s finished after %d steps", a.role, step)
			return resp.Content, nil
		}

		messages = append(messages, llm.NewAssistantMessage(renderAssistantTurn(&resp)))
		for i := range resp.ToolCalls {
			call := &resp.ToolCalls[i]
			messages = append(messages, llm.NewUserMessage(a.execTool(ctx, call)))
		}
	}

	a.logger.Warn("%s exhausted step budget of %d", a.role, budget)
	if lastContent != "" {
		return lastContent, nil
	}
	return "", fmt.Errorf("%s exhausted step budget of %d without producing a result", a.role, budget)
}

// execTool runs one tool call and renders the outcome as a message for the
// next model turn.
func (a *RoleAgent) execTool(ctx context.Context, call *llm.ToolCall) string {
	tool, ok := a.byName[call.Name]
	if !ok {
		a.logger.Warn("%s requested unbound tool %s", a.role, call.Name)
		return fmt.Sprintf("Tool %s is not available to you.", call.Name)
	}

	a.logger.DebugDomain("tools", "%s calling %s", a.role, call.Name)
	result, err := tool.Exec(ctx, call.Parameters)
	if err != nil {
		return fmt.Sprintf("Tool %s failed: %v", call.Name, err)
	}
	if !result.Success {
		return fmt.Sprintf("Tool %s reported an error: %s", call.Name, result.Content)
	}
	return fmt.Sprintf("Result of %s:\n%s", call.Name, result.Content)
}

// renderAssistantTurn serializes the assistant's reply, including its tool
// calls, into the text transcript.
func renderAssistantTurn(resp *llm.CompletionResponse) string {
	text := resp.Content
	for i := range resp.ToolCalls {
		call := &resp.ToolCalls[i]
		args, err := json.Marshal(call.Parameters)
		if err != nil {
			args = []byte("{}")
		}
		if text != "" {
			text += "\n"
		}
		text += fmt.Sprintf("Calling tool %s with %s", call.Name, args)
	}
	if text == "" {
		text = "(no content)"
	}
	return text
}
