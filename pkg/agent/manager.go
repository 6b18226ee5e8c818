package agent

import (
	"context"
	"fmt"
	"strings"

	"devteam/pkg/config"
	"devteam/pkg/llm"
	"devteam/pkg/logx"
)

// Manager coordinates the specialist agents. It carries no tool bindings;
// its only capability is delegating sub-tasks to team members and composing
// their reports.
type Manager struct {
	client   llm.Client
	team     map[string]*RoleAgent
	modelCfg config.AgentModelConfig
	logger   *logx.Logger
}

// Manager builds the manager agent over an already-constructed team. The
// manager reuses the architect's model configuration when it has none of its
// own.
func (b *Builder) Manager(team map[string]*RoleAgent) (*Manager, error) {
	ac, ok := b.Config.AgentConfig(config.RoleManager)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingModelConfiguration, config.RoleManager)
	}

	newClient := b.NewClient
	if newClient == nil {
		newClient = NewLLMClient
	}
	client, err := newClient(ac)
	if err != nil {
		return nil, fmt.Errorf("creating manager client: %w", err)
	}

	logger := b.Logger
	if logger == nil {
		logger = logx.NewLogger(config.RoleManager)
	}

	return &Manager{
		client:   client,
		team:     team,
		modelCfg: ac,
		logger:   logger,
	}, nil
}

// stepBudget returns the manager's delegation budget. Delegated sub-tasks
// each cost a step, so the manager gets a larger default than specialists.
func (m *Manager) stepBudget() int {
	if m.modelCfg.StepBudget > 0 {
		return m.modelCfg.StepBudget
	}
	return config.DefaultManagerStepBudget
}

// Delegate runs the manager loop for a task. Each turn the model either
// hands a sub-task to a team member or produces the final summary. Specialist
// failures are reported back to the manager rather than aborting the loop.
func (m *Manager) Delegate(ctx context.Context, task string) (string, error) {
	messages := []llm.CompletionMessage{
		llm.NewSystemMessage(managerSystemPrompt(m.team)),
		llm.NewUserMessage(task),
	}

	budget := m.stepBudget()
	var lastContent string

	for step := 1; step <= budget; step++ {
		req := llm.CompletionRequest{
			Messages:    messages,
			Temperature: m.modelCfg.Temperature,
			MaxTokens:   m.modelCfg.MaxTokens,
		}

		resp, err := m.client.Complete(ctx, req)
		if err != nil {
			return "", fmt.Errorf("manager inference failed at step %d: %w", step, err)
		}

		role, subTask, delegated := parseDelegation(resp.Content)
		if !delegated {
			final := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(resp.Content), "FINAL"))
			if final != "" {
				return final, nil
			}
			if lastContent != "" {
				return lastContent, nil
			}
			return "", fmt.Errorf("manager produced no result")
		}

		messages = append(messages, llm.NewAssistantMessage(resp.Content))

		member, ok := m.team[role]
		if !ok {
			m.logger.Warn("manager delegated to unknown role %s", role)
			messages = append(messages, llm.NewUserMessage(fmt.Sprintf("There is no %s on the team.", role)))
			continue
		}

		m.logger.Info("delegating to %s: %s", role, firstLine(subTask))
		report, err := member.Run(ctx, subTask)
		if err != nil {
			m.logger.Warn("%s failed: %v", role, err)
			messages = append(messages, llm.NewUserMessage(fmt.Sprintf("The %s agent failed: %v", role, err)))
			continue
		}

		lastContent = report
		messages = append(messages, llm.NewUserMessage(fmt.Sprintf("Report from %s:\n%s", role, report)))
	}

	m.logger.Warn("manager exhausted step budget of %d", budget)
	if lastContent != "" {
		return lastContent, nil
	}
	return "", fmt.Errorf("manager exhausted step budget of %d without producing a result", budget)
}

// parseDelegation extracts a DELEGATE directive from a manager reply.
func parseDelegation(content string) (role, subTask string, ok bool) {
	trimmed := strings.TrimSpace(content)
	first, rest, _ := strings.Cut(trimmed, "\n")
	first = strings.TrimSpace(first)

	if !strings.HasPrefix(first, "DELEGATE") {
		return "", "", false
	}
	role = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(first, "DELEGATE")))
	subTask = strings.TrimSpace(rest)
	if role == "" || subTask == "" {
		return "", "", false
	}
	return role, subTask, true
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
