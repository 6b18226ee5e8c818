package exec

import (
	"context"
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"strings"
	"time"
)

// LocalExec executes commands directly on the local system.
type LocalExec struct{}

// NewLocalExec creates a new LocalExec executor.
func NewLocalExec() *LocalExec {
	return &LocalExec{}
}

// Name returns the executor name.
func (e *LocalExec) Name() string {
	return "local"
}

// Available returns true since local execution is always available.
func (e *LocalExec) Available() bool {
	return true
}

// Run executes a command locally. Non-zero exit codes are reported through
// the result, not the error; the error is reserved for failures to start.
func (e *LocalExec) Run(ctx context.Context, cmd []string, opts *Opts) (Result, error) {
	if len(cmd) == 0 {
		return Result{Status: StatusError, ExitCode: -1}, fmt.Errorf("command cannot be empty")
	}
	if opts == nil {
		defaults := DefaultOpts()
		opts = &defaults
	}

	startTime := time.Now()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	execCmd := osexec.CommandContext(ctx, cmd[0], cmd[1:]...)

	if opts.WorkDir != "" {
		if _, err := os.Stat(opts.WorkDir); os.IsNotExist(err) {
			return Result{Status: StatusError, ExitCode: -1},
				fmt.Errorf("working directory does not exist: %s", opts.WorkDir)
		}
		execCmd.Dir = opts.WorkDir
	}

	if len(opts.Env) > 0 {
		execCmd.Env = append(os.Environ(), opts.Env...)
	}

	var stdoutBuf, stderrBuf strings.Builder
	execCmd.Stdout = &stdoutBuf
	execCmd.Stderr = &stderrBuf

	runErr := execCmd.Run()
	duration := time.Since(startTime)

	result := Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: duration,
		Status:   StatusSuccess,
	}

	if runErr != nil {
		// Timeout is surfaced as a populated result, never an error.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.Status = StatusTimeout
			result.ExitCode = -1
			return result, nil
		}

		var exitErr *osexec.ExitError
		if errors.As(runErr, &exitErr) {
			result.Status = StatusError
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}

		// Command failed to start.
		result.Status = StatusError
		result.ExitCode = -1
		return result, runErr
	}

	return result, nil
}
