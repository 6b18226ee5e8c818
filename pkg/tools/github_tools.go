package tools

import (
	"context"
	"fmt"

	"devteam/pkg/github"
)

// githubTool adapts a version-control operation into a tool binding. VCS
// failures come back as tagged results, so a failed operation is reported to
// the LLM but never raised.
type githubTool struct {
	client      *github.Client
	ws          *Workspace
	name        string
	description string
	schema      InputSchema
	run         func(ctx context.Context, t *githubTool, args map[string]any) github.Result
}

// Name returns the tool name.
func (t *githubTool) Name() string { return t.name }

// Definition returns the tool definition for the LLM.
func (t *githubTool) Definition() ToolDefinition {
	return ToolDefinition{Name: t.name, Description: t.description, InputSchema: t.schema}
}

// Exec executes the tool.
func (t *githubTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	result := t.run(ctx, t, args)
	content := fmt.Sprintf("%s: %s", result.Status, result.Message)
	if result.Status == github.StatusError {
		return errorResult(content), nil
	}
	return successResult(content), nil
}

func requireGitHub(ctx AgentContext, name string) (*github.Client, error) {
	if ctx.GitHub == nil {
		return nil, fmt.Errorf("%s tool requires a github client", name)
	}
	return ctx.GitHub, nil
}

func createCreateBranchTool(ctx AgentContext) (Tool, error) {
	client, err := requireGitHub(ctx, ToolCreateBranch)
	if err != nil {
		return nil, err
	}
	return &githubTool{
		client:      client,
		ws:          ctx.Workspace,
		name:        ToolCreateBranch,
		description: "Create a git branch from the base branch.",
		schema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"name": {Type: "string", Description: "Branch name"},
				"base": {Type: "string", Description: "Base branch, defaults to main"},
			},
			Required: []string{"name"},
		},
		run: func(ctx context.Context, t *githubTool, args map[string]any) github.Result {
			name, _ := args["name"].(string)
			base, _ := args["base"].(string)
			return t.client.CreateBranch(ctx, name, base)
		},
	}, nil
}

func createCommitChangesTool(ctx AgentContext) (Tool, error) {
	client, err := requireGitHub(ctx, ToolCommitChanges)
	if err != nil {
		return nil, err
	}
	return &githubTool{
		client:      client,
		ws:          ctx.Workspace,
		name:        ToolCommitChanges,
		description: "Stage all project changes, commit them to a branch, and push.",
		schema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"message": {Type: "string", Description: "Commit message"},
				"branch":  {Type: "string", Description: "Branch to commit to"},
			},
			Required: []string{"message", "branch"},
		},
		run: func(ctx context.Context, t *githubTool, args map[string]any) github.Result {
			message, _ := args["message"].(string)
			branch, _ := args["branch"].(string)
			return t.client.Commit(ctx, message, branch, t.ws.Root())
		},
	}, nil
}

func createCreatePullRequestTool(ctx AgentContext) (Tool, error) {
	client, err := requireGitHub(ctx, ToolCreatePullRequest)
	if err != nil {
		return nil, err
	}
	return &githubTool{
		client:      client,
		ws:          ctx.Workspace,
		name:        ToolCreatePullRequest,
		description: "Open a pull request from a head branch into the base branch.",
		schema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"title": {Type: "string", Description: "Pull request title"},
				"body":  {Type: "string", Description: "Pull request body"},
				"head":  {Type: "string", Description: "Head branch"},
				"base":  {Type: "string", Description: "Base branch, defaults to main"},
			},
			Required: []string{"title", "head"},
		},
		run: func(ctx context.Context, t *githubTool, args map[string]any) github.Result {
			title, _ := args["title"].(string)
			body, _ := args["body"].(string)
			head, _ := args["head"].(string)
			base, _ := args["base"].(string)
			return t.client.CreatePullRequest(ctx, title, body, head, base)
		},
	}, nil
}
