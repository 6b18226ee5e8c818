package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// resolvePath resolves a tool path argument against the project root unless
// it is already absolute, and rejects traversal outside the root.
func resolvePath(root, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if root == "" {
		return "", fmt.Errorf("no active project")
	}

	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(root, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the project root", path)
	}
	return resolved, nil
}

func stringArg(args map[string]any, key string) (string, error) {
	value, ok := args[key].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%s is required and must be a string", key)
	}
	return value, nil
}

// ListDirectoryTool lists entries of a directory within the project.
type ListDirectoryTool struct {
	ws *Workspace
}

func createListDirectoryTool(ctx AgentContext) (Tool, error) {
	return &ListDirectoryTool{ws: ctx.Workspace}, nil
}

// Name returns the tool name.
func (t *ListDirectoryTool) Name() string { return ToolListDirectory }

// Definition returns the tool definition for the LLM.
func (t *ListDirectoryTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolListDirectory,
		Description: "List the entries of a directory in the project. Directories are suffixed with '/'.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {Type: "string", Description: "Directory path relative to the project root. Defaults to the root."},
			},
		},
	}
}

// Exec executes the tool.
func (t *ListDirectoryTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}

	resolved, err := resolvePath(t.ws.Root(), path)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to list %s: %v", path, err)), nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return successResult(strings.Join(names, "\n")), nil
}

// ReadFileTool reads file contents from the project.
type ReadFileTool struct {
	ws           *Workspace
	maxSizeBytes int64
}

func createReadFileTool(ctx AgentContext) (Tool, error) {
	return &ReadFileTool{ws: ctx.Workspace, maxSizeBytes: 1 << 20}, nil
}

// Name returns the tool name.
func (t *ReadFileTool) Name() string { return ToolReadFile }

// Definition returns the tool definition for the LLM.
func (t *ReadFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolReadFile,
		Description: "Read the contents of a file in the project.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {Type: "string", Description: "File path relative to the project root"},
			},
			Required: []string{"path"},
		},
	}
}

// Exec executes the tool.
func (t *ReadFileTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}

	resolved, err := resolvePath(t.ws.Root(), path)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to stat %s: %v", path, err)), nil
	}
	if info.Size() > t.maxSizeBytes {
		return errorResult(fmt.Sprintf("%s is %d bytes, over the %d byte read cap", path, info.Size(), t.maxSizeBytes)), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to read %s: %v", path, err)), nil
	}
	return successResult(string(data)), nil
}

// WriteFileTool writes file contents into the project, creating parent
// directories as needed.
type WriteFileTool struct {
	ws *Workspace
}

func createWriteFileTool(ctx AgentContext) (Tool, error) {
	return &WriteFileTool{ws: ctx.Workspace}, nil
}

// Name returns the tool name.
func (t *WriteFileTool) Name() string { return ToolWriteFile }

// Definition returns the tool definition for the LLM.
func (t *WriteFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolWriteFile,
		Description: "Write content to a file in the project, creating parent directories as needed. Overwrites existing content.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path":    {Type: "string", Description: "File path relative to the project root"},
				"content": {Type: "string", Description: "Full file content to write"},
			},
			Required: []string{"path", "content"},
		},
	}
}

// Exec executes the tool.
func (t *WriteFileTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	content, ok := args["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content is required and must be a string")
	}

	resolved, err := resolvePath(t.ws.Root(), path)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return errorResult(fmt.Sprintf("failed to create parent directory for %s: %v", path, err)), nil
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil { //nolint:gosec // Project files are world-readable
		return errorResult(fmt.Sprintf("failed to write %s: %v", path, err)), nil
	}
	return successResult(fmt.Sprintf("wrote %d bytes to %s", len(content), path)), nil
}

// CreateDirectoryTool creates a directory within the project.
type CreateDirectoryTool struct {
	ws *Workspace
}

func createCreateDirectoryTool(ctx AgentContext) (Tool, error) {
	return &CreateDirectoryTool{ws: ctx.Workspace}, nil
}

// Name returns the tool name.
func (t *CreateDirectoryTool) Name() string { return ToolCreateDirectory }

// Definition returns the tool definition for the LLM.
func (t *CreateDirectoryTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolCreateDirectory,
		Description: "Create a directory (and any missing parents) in the project.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {Type: "string", Description: "Directory path relative to the project root"},
			},
			Required: []string{"path"},
		},
	}
}

// Exec executes the tool.
func (t *CreateDirectoryTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}

	resolved, err := resolvePath(t.ws.Root(), path)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	if err := os.MkdirAll(resolved, 0o755); err != nil {
		return errorResult(fmt.Sprintf("failed to create %s: %v", path, err)), nil
	}
	return successResult("created " + path), nil
}
