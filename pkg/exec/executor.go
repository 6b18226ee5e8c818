// Package exec provides command execution abstractions used to run generated
// code artifacts. Execution results are always populated, even on timeout, so
// callers can feed failure detail back into the repair loop.
package exec

import (
	"context"
	"time"
)

// Status is the closed set of execution outcomes.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
)

// ArtifactTimeout is the fixed ceiling for a single artifact execution. It is
// an external constraint, not tunable per call.
const ArtifactTimeout = 2 * time.Minute

// Executor defines the interface for executing commands.
type Executor interface {
	// Run executes a command with the given options and returns the result.
	Run(ctx context.Context, cmd []string, opts *Opts) (Result, error)

	// Name returns the executor name for logging.
	Name() string

	// Available returns true if this executor can be used in the current environment.
	Available() bool
}

// Opts contains options for command execution.
type Opts struct {
	// Env contains extra environment variables (KEY=VALUE format).
	Env []string

	// Timeout is the maximum duration for command execution.
	Timeout time.Duration

	// WorkDir is the working directory for the command.
	WorkDir string
}

// Result contains the outcome of a command execution.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
	ExitCode int
	Status   Status
}

// Failed reports whether the execution did not succeed, for any reason.
func (r Result) Failed() bool {
	return r.Status != StatusSuccess
}

// DefaultOpts returns default execution options.
func DefaultOpts() Opts {
	return Opts{Timeout: ArtifactTimeout}
}
