package tools

import (
	"context"
	"fmt"

	execpkg "devteam/pkg/exec"
)

// commandTool shells a fixed command out through the executor with a single
// path argument. The static-analysis and test collaborators are external
// programs; these tools only bind their invocations to stable names.
type commandTool struct {
	executor    execpkg.Executor
	ws          *Workspace
	name        string
	description string
	command     []string // path argument appended when pathArg is true
	pathArg     bool
}

// Name returns the tool name.
func (t *commandTool) Name() string { return t.name }

// Definition returns the tool definition for the LLM.
func (t *commandTool) Definition() ToolDefinition {
	schema := InputSchema{Type: "object"}
	if t.pathArg {
		schema.Properties = map[string]Property{
			"path": {Type: "string", Description: "File path relative to the project root"},
		}
		schema.Required = []string{"path"}
	}
	return ToolDefinition{Name: t.name, Description: t.description, InputSchema: schema}
}

// Exec executes the bound command and reports combined output. A non-zero
// exit is a tool-level failure for the LLM to react to, not an error.
func (t *commandTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	root := t.ws.Root()
	cmd := append([]string{}, t.command...)
	if t.pathArg {
		path, err := stringArg(args, "path")
		if err != nil {
			return nil, err
		}
		resolved, err := resolvePath(root, path)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		cmd = append(cmd, resolved)
	}

	result, err := t.executor.Run(ctx, cmd, &execpkg.Opts{WorkDir: root, Timeout: execpkg.ArtifactTimeout})
	if err != nil {
		return errorResult(fmt.Sprintf("%s failed to start: %v", t.name, err)), nil
	}

	output := result.Stdout
	if result.Stderr != "" {
		output += "\n" + result.Stderr
	}
	if result.Failed() {
		return errorResult(fmt.Sprintf("%s exited %d:\n%s", t.name, result.ExitCode, output)), nil
	}
	if output == "" {
		output = t.name + " passed"
	}
	return successResult(output), nil
}

func createAnalyzeCodeTool(ctx AgentContext) (Tool, error) {
	if ctx.Executor == nil {
		return nil, fmt.Errorf("analyze_code tool requires an executor")
	}
	return &commandTool{
		executor:    ctx.Executor,
		ws:          ctx.Workspace,
		name:        ToolAnalyzeCode,
		description: "Check a source file for syntax errors and report structural problems.",
		command:     []string{"python3", "-m", "py_compile"},
		pathArg:     true,
	}, nil
}

func createFormatCodeTool(ctx AgentContext) (Tool, error) {
	if ctx.Executor == nil {
		return nil, fmt.Errorf("format_code tool requires an executor")
	}
	return &commandTool{
		executor:    ctx.Executor,
		ws:          ctx.Workspace,
		name:        ToolFormatCode,
		description: "Format a source file in place with the project formatter.",
		command:     []string{"black", "-q"},
		pathArg:     true,
	}, nil
}

func createLintCodeTool(ctx AgentContext) (Tool, error) {
	if ctx.Executor == nil {
		return nil, fmt.Errorf("lint_code tool requires an executor")
	}
	return &commandTool{
		executor:    ctx.Executor,
		ws:          ctx.Workspace,
		name:        ToolLintCode,
		description: "Lint a source file and report style or correctness findings.",
		command:     []string{"pyflakes"},
		pathArg:     true,
	}, nil
}

func createRunTestsTool(ctx AgentContext) (Tool, error) {
	if ctx.Executor == nil {
		return nil, fmt.Errorf("run_tests tool requires an executor")
	}
	return &commandTool{
		executor:    ctx.Executor,
		ws:          ctx.Workspace,
		name:        ToolRunTests,
		description: "Run the project's test suite and report results.",
		command:     []string{"python3", "-m", "pytest", "-q"},
		pathArg:     false,
	}, nil
}
