package build

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	execpkg "devteam/pkg/exec"
	"devteam/pkg/logx"
)

// fakeTaskRunner scripts the originating agent's repair replies.
type fakeTaskRunner struct {
	runFunc func(ctx context.Context, task string) (string, error)
	tasks   []string
}

func (f *fakeTaskRunner) Run(ctx context.Context, task string) (string, error) {
	f.tasks = append(f.tasks, task)
	if f.runFunc != nil {
		return f.runFunc(ctx, task)
	}
	return "", nil
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		wantCode   string
		wantFenced bool
	}{
		{
			name:       "fenced with language",
			reply:      "Here you go:\n```python\nprint('hi')\n```\nDone.",
			wantCode:   "print('hi')",
			wantFenced: true,
		},
		{
			name:       "fenced without language",
			reply:      "```\nx = 1\ny = 2\n```",
			wantCode:   "x = 1\ny = 2",
			wantFenced: true,
		},
		{
			name:       "first of several fences",
			reply:      "```python\nfirst\n```\ntext\n```python\nsecond\n```",
			wantCode:   "first",
			wantFenced: true,
		},
		{
			name:       "no fence",
			reply:      "  I implemented the feature in main.py.  ",
			wantCode:   "I implemented the feature in main.py.",
			wantFenced: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, fenced := ExtractCode(tt.reply)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantFenced, fenced)
		})
	}
}

func TestRunWithRecovery_SuccessFirstTry(t *testing.T) {
	executions := 0
	run := func(context.Context, string) (execpkg.Result, error) {
		executions++
		return execpkg.Result{Status: execpkg.StatusSuccess}, nil
	}
	origin := &fakeTaskRunner{}

	result, code, err := RunWithRecovery(context.Background(), "print('hi')", origin, run, logx.NewLogger("test"))
	require.NoError(t, err)
	assert.Equal(t, execpkg.StatusSuccess, result.Status)
	assert.Equal(t, "print('hi')", code)
	assert.Equal(t, 1, executions)
	assert.Empty(t, origin.tasks, "no repair is requested on success")
}

func TestRunWithRecovery_RepairSucceeds(t *testing.T) {
	executions := 0
	var executed []string
	run := func(_ context.Context, code string) (execpkg.Result, error) {
		executions++
		executed = append(executed, code)
		if code == "broken" {
			return execpkg.Result{Status: execpkg.StatusError, ExitCode: 1, Stderr: "SyntaxError"}, nil
		}
		return execpkg.Result{Status: execpkg.StatusSuccess}, nil
	}
	origin := &fakeTaskRunner{
		runFunc: func(_ context.Context, task string) (string, error) {
			assert.Contains(t, task, "failed to execute")
			assert.Contains(t, task, "SyntaxError")
			return "```python\nfixed\n```", nil
		},
	}

	result, code, err := RunWithRecovery(context.Background(), "broken", origin, run, logx.NewLogger("test"))
	require.NoError(t, err)
	assert.Equal(t, execpkg.StatusSuccess, result.Status)
	assert.Equal(t, "fixed", code)
	assert.Equal(t, []string{"broken", "fixed"}, executed)
	assert.Len(t, origin.tasks, 1)
	assert.Equal(t, 2, executions)
}

func TestRunWithRecovery_BoundedAtTwoExecutions(t *testing.T) {
	executions := 0
	run := func(context.Context, string) (execpkg.Result, error) {
		executions++
		return execpkg.Result{Status: execpkg.StatusError, ExitCode: 1, Stderr: "still broken"}, nil
	}
	origin := &fakeTaskRunner{
		runFunc: func(context.Context, string) (string, error) {
			return "```python\nstill broken\n```", nil
		},
	}

	result, _, err := RunWithRecovery(context.Background(), "broken", origin, run, logx.NewLogger("test"))
	require.NoError(t, err)
	assert.Equal(t, execpkg.StatusError, result.Status)
	assert.Equal(t, maxExecutionAttempts, executions, "the loop is capped at two executions")
	assert.Len(t, origin.tasks, 1, "the loop is capped at one repair")
}

func TestRunWithRecovery_RepairInferenceError(t *testing.T) {
	executions := 0
	run := func(context.Context, string) (execpkg.Result, error) {
		executions++
		return execpkg.Result{Status: execpkg.StatusError, ExitCode: 1}, nil
	}
	origin := &fakeTaskRunner{
		runFunc: func(context.Context, string) (string, error) {
			return "", fmt.Errorf("rate limited")
		},
	}

	result, _, err := RunWithRecovery(context.Background(), "broken", origin, run, logx.NewLogger("test"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, execpkg.StatusError, result.Status)
	assert.Equal(t, 1, executions, "no second execution after a failed repair request")
}

func TestRunWithRecovery_EmptyRepairReusesOriginal(t *testing.T) {
	var executed []string
	run := func(_ context.Context, code string) (execpkg.Result, error) {
		executed = append(executed, code)
		return execpkg.Result{Status: execpkg.StatusError, ExitCode: 1}, nil
	}
	origin := &fakeTaskRunner{
		runFunc: func(context.Context, string) (string, error) {
			return "", nil
		},
	}

	_, code, err := RunWithRecovery(context.Background(), "original", origin, run, logx.NewLogger("test"))
	require.NoError(t, err)
	assert.Equal(t, "original", code)
	assert.Equal(t, []string{"original", "original"}, executed)
}

func TestRunWithRecovery_StartFailureBecomesResult(t *testing.T) {
	calls := 0
	run := func(context.Context, string) (execpkg.Result, error) {
		calls++
		if calls == 1 {
			return execpkg.Result{}, fmt.Errorf("interpreter missing")
		}
		return execpkg.Result{Status: execpkg.StatusSuccess}, nil
	}
	origin := &fakeTaskRunner{
		runFunc: func(_ context.Context, task string) (string, error) {
			assert.Contains(t, task, "interpreter missing")
			return "```python\nretry\n```", nil
		},
	}

	result, _, err := RunWithRecovery(context.Background(), "code", origin, run, logx.NewLogger("test"))
	require.NoError(t, err)
	assert.Equal(t, execpkg.StatusSuccess, result.Status)
}

func TestRunWithRecovery_TimeoutIsFailure(t *testing.T) {
	run := func(context.Context, string) (execpkg.Result, error) {
		return execpkg.Result{Status: execpkg.StatusTimeout, ExitCode: -1}, nil
	}
	origin := &fakeTaskRunner{
		runFunc: func(context.Context, string) (string, error) {
			return "```python\nsame\n```", nil
		},
	}

	result, _, err := RunWithRecovery(context.Background(), "loops forever", origin, run, logx.NewLogger("test"))
	require.NoError(t, err)
	assert.Equal(t, execpkg.StatusTimeout, result.Status)
	assert.Equal(t, -1, result.ExitCode)
	assert.Len(t, origin.tasks, 1)
}
