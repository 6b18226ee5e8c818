package exec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalExec_Success(t *testing.T) {
	e := NewLocalExec()

	result, err := e.Run(context.Background(), []string{"echo", "hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hello\n", result.Stdout)
	assert.False(t, result.Failed())
}

func TestLocalExec_NonZeroExit(t *testing.T) {
	e := NewLocalExec()

	result, err := e.Run(context.Background(), []string{"sh", "-c", "exit 3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, 3, result.ExitCode)
	assert.True(t, result.Failed())
}

func TestLocalExec_Timeout(t *testing.T) {
	e := NewLocalExec()
	opts := &Opts{Timeout: 50 * time.Millisecond}

	result, err := e.Run(context.Background(), []string{"sleep", "5"}, opts)
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, result.Status)
	assert.Equal(t, -1, result.ExitCode)
}

func TestLocalExec_StartFailure(t *testing.T) {
	e := NewLocalExec()

	result, err := e.Run(context.Background(), []string{"definitely-not-a-command-xyz"}, nil)
	require.Error(t, err)
	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, -1, result.ExitCode)
}

func TestLocalExec_EmptyCommand(t *testing.T) {
	e := NewLocalExec()

	_, err := e.Run(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestLocalExec_MissingWorkDir(t *testing.T) {
	e := NewLocalExec()
	opts := &Opts{WorkDir: "/does/not/exist"}

	_, err := e.Run(context.Background(), []string{"echo", "hi"}, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "working directory does not exist")
}

func TestLocalExec_WorkDirAndEnv(t *testing.T) {
	e := NewLocalExec()
	dir := t.TempDir()
	opts := &Opts{WorkDir: dir, Env: []string{"DEVTEAM_TEST_VAR=wired"}}

	result, err := e.Run(context.Background(), []string{"sh", "-c", "pwd; echo $DEVTEAM_TEST_VAR"}, opts)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Contains(t, result.Stdout, dir)
	assert.Contains(t, result.Stdout, "wired")
}

func TestLocalExec_Available(t *testing.T) {
	assert.True(t, NewLocalExec().Available())
	assert.Equal(t, "local", NewLocalExec().Name())
}
