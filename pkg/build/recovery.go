package build

import (
	"context"
	"regexp"
	"strings"

	execpkg "devteam/pkg/exec"
	"devteam/pkg/logx"
)

// TaskRunner is the slice of a role agent the recovery loop needs.
type TaskRunner interface {
	Run(ctx context.Context, task string) (string, error)
}

// RunFunc executes artifact code in an isolated working directory.
type RunFunc func(ctx context.Context, code string) (execpkg.Result, error)

// The recovery loop never issues more than two execution attempts per
// artifact: the original run plus at most one repaired run.
const maxExecutionAttempts = 2

// fencedCodeRe matches the first fenced code block in an agent reply.
var fencedCodeRe = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\\s*\\n(.*?)\\n```")

// ExtractCode pulls the first fenced code block out of an agent reply. The
// second return reports whether a fence was actually present; only fenced
// artifacts are treated as executable.
func ExtractCode(reply string) (string, bool) {
	if match := fencedCodeRe.FindStringSubmatch(reply); match != nil {
		return match[1], true
	}
	return strings.TrimSpace(reply), false
}

// RunWithRecovery executes artifact code, and on failure asks the
// originating agent for a corrected version exactly once before running the
// final attempt. The returned code is whichever version ran last. A non-nil
// error means repair inference itself failed; execution failures are
// reported through the result's status.
func RunWithRecovery(ctx context.Context, code string, origin TaskRunner, run RunFunc, logger *logx.Logger) (execpkg.Result, string, error) {
	result := execute(ctx, code, run)
	if result.Status == execpkg.StatusSuccess {
		return result, code, nil
	}

	logger.Warn("artifact execution failed (%s, exit %d), requesting repair", result.Status, result.ExitCode)

	reply, err := origin.Run(ctx, repairPrompt(code, &result))
	if err != nil {
		return result, code, err
	}

	repaired, _ := ExtractCode(reply)
	if repaired == "" {
		repaired = code
	}

	second := execute(ctx, repaired, run)
	if second.Status != execpkg.StatusSuccess {
		logger.Warn("artifact still failing after repair (%s, exit %d)", second.Status, second.ExitCode)
	}
	return second, repaired, nil
}

// execute wraps run so start failures surface as populated error results.
func execute(ctx context.Context, code string, run RunFunc) execpkg.Result {
	result, err := run(ctx, code)
	if err != nil {
		return execpkg.Result{
			Stderr:   err.Error(),
			ExitCode: -1,
			Status:   execpkg.StatusError,
		}
	}
	return result
}
