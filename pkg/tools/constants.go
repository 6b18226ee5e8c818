package tools

// Tool name constants - use these instead of magic strings to prevent typos.
const (
	// Filesystem tools.
	ToolListDirectory   = "list_directory"
	ToolReadFile        = "read_file"
	ToolWriteFile       = "write_file"
	ToolCreateDirectory = "create_directory"

	// Static-analysis tools.
	ToolAnalyzeCode = "analyze_code"
	ToolFormatCode  = "format_code"
	ToolLintCode    = "lint_code"

	// Test-execution tools.
	ToolRunTests = "run_tests"

	// Version-control tools.
	ToolCreateBranch      = "create_branch"
	ToolCommitChanges     = "commit_changes"
	ToolCreatePullRequest = "create_pull_request"
)

// Per-role candidate tool lists. Order is preserved into agent descriptors so
// prompts referencing "tools in this order" stay reproducible. Entries whose
// capability group is unavailable are filtered out at agent construction.
//
//nolint:gochecknoglobals // Role tool tables are package constants in spirit
var (
	ArchitectTools = []string{
		ToolListDirectory,
		ToolReadFile,
		ToolWriteFile,
		ToolCreateDirectory,
		ToolAnalyzeCode,
	}

	DeveloperTools = []string{
		ToolListDirectory,
		ToolReadFile,
		ToolWriteFile,
		ToolCreateDirectory,
		ToolAnalyzeCode,
		ToolFormatCode,
		ToolLintCode,
		ToolCommitChanges,
	}

	TesterTools = []string{
		ToolListDirectory,
		ToolReadFile,
		ToolWriteFile,
		ToolRunTests,
	}

	ReviewerTools = []string{
		ToolListDirectory,
		ToolReadFile,
		ToolWriteFile,
		ToolAnalyzeCode,
		ToolLintCode,
		ToolCreatePullRequest,
	}
)
