package logx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func resetDebug(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		SetDebug(false)
		SetDebugDomains(nil)
	})
}

func TestSetDebug(t *testing.T) {
	resetDebug(t)

	SetDebug(true)
	assert.True(t, IsDebugEnabled())

	SetDebug(false)
	assert.False(t, IsDebugEnabled())
}

func TestDebugDomains(t *testing.T) {
	resetDebug(t)

	SetDebug(true)
	SetDebugDomains([]string{"tools", " github "})

	assert.True(t, IsDebugEnabledForDomain("tools"))
	assert.True(t, IsDebugEnabledForDomain("github"), "domain names are trimmed")
	assert.False(t, IsDebugEnabledForDomain("orchestrator"))
}

func TestDebugDomains_NilMeansAll(t *testing.T) {
	resetDebug(t)

	SetDebug(true)
	SetDebugDomains(nil)
	assert.True(t, IsDebugEnabledForDomain("anything"))
}

func TestDebugDomains_DisabledSwitchWins(t *testing.T) {
	resetDebug(t)

	SetDebug(false)
	SetDebugDomains([]string{"tools"})
	assert.False(t, IsDebugEnabledForDomain("tools"))
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger("orchestrator")
	assert.NotNil(t, logger)

	// Logging must not panic regardless of debug state.
	logger.Info("project %s bound", "demo")
	logger.Warn("retrying")
	logger.Debug("hidden unless enabled")
	logger.DebugDomain("tools", "calling %s", "read_file")
}
