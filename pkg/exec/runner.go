package exec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"devteam/pkg/logx"
)

// Runner executes generated code artifacts. Each execution gets a fresh
// isolated working directory so artifacts cannot observe each other.
type Runner struct {
	executor    Executor
	interpreter []string // command prefix, e.g. ["python3"]
	logger      *logx.Logger
}

// NewRunner creates an artifact runner backed by the given executor.
func NewRunner(executor Executor, interpreter []string) *Runner {
	if len(interpreter) == 0 {
		interpreter = []string{"python3"}
	}
	return &Runner{
		executor:    executor,
		interpreter: interpreter,
		logger:      logx.NewLogger("runner"),
	}
}

// suffixFor maps an interpreter command to the artifact file suffix.
func suffixFor(interpreter string) string {
	switch filepath.Base(interpreter) {
	case "python", "python3":
		return ".py"
	case "node":
		return ".js"
	case "ruby":
		return ".rb"
	default:
		return ""
	}
}

// Execute writes code into a fresh temp directory and runs it under the
// fixed timeout ceiling. The returned result is always populated; the error
// is reserved for environment failures (temp dir creation, interpreter
// missing).
func (r *Runner) Execute(ctx context.Context, code string) (Result, error) {
	workDir, err := os.MkdirTemp("", "devteam-run-")
	if err != nil {
		return Result{Status: StatusError, ExitCode: -1},
			fmt.Errorf("failed to create execution directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	artifactPath := filepath.Join(workDir, "artifact"+suffixFor(r.interpreter[0]))
	if err := os.WriteFile(artifactPath, []byte(code), 0o600); err != nil {
		return Result{Status: StatusError, ExitCode: -1},
			fmt.Errorf("failed to write artifact: %w", err)
	}

	cmd := append(append([]string{}, r.interpreter...), artifactPath)
	opts := Opts{Timeout: ArtifactTimeout, WorkDir: workDir}

	result, err := r.executor.Run(ctx, cmd, &opts)
	if err != nil {
		return result, fmt.Errorf("artifact execution failed to start: %w", err)
	}

	r.logger.Debug("artifact executed: status=%s exit=%d duration=%s",
		result.Status, result.ExitCode, result.Duration)
	return result, nil
}
