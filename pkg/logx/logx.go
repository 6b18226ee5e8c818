// Package logx provides structured logging with context-aware debug domains.
package logx

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger writes leveled, agent-scoped log lines to stderr.
type Logger struct {
	agentID string
	logger  *log.Logger
}

// Level identifies log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// DebugConfig controls debug logging behavior.
type DebugConfig struct {
	Enabled bool
	Domains map[string]bool // Which domains to enable debug for (nil = all)
}

//nolint:gochecknoglobals // Process-wide debug switches, set once from env
var (
	debugConfig = &DebugConfig{}
	debugMutex  sync.RWMutex
)

//nolint:gochecknoinits // Required for env var initialization
func init() {
	initDebugFromEnv()
}

// initDebugFromEnv initializes debug configuration from environment variables.
func initDebugFromEnv() {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debug := os.Getenv("DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		debugConfig.Enabled = true
	}

	// Parse domain filtering from DEBUG_DOMAINS=orchestrator,agent,github
	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugConfig.Domains = make(map[string]bool)
		for _, domain := range strings.Split(domains, ",") {
			debugConfig.Domains[strings.TrimSpace(domain)] = true
		}
	}
}

// NewLogger creates a logger scoped to the given agent or component ID.
func NewLogger(agentID string) *Logger {
	return &Logger{
		agentID: agentID,
		logger:  log.New(os.Stderr, "", 0), // stderr for CLI compatibility
	}
}

// SetDebug overrides the env-derived debug switch.
func SetDebug(enabled bool) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugConfig.Enabled = enabled
}

// SetDebugDomains configures which domains should have debug logging enabled.
func SetDebugDomains(domains []string) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if len(domains) == 0 {
		debugConfig.Domains = nil // all domains
		return
	}
	debugConfig.Domains = make(map[string]bool)
	for _, domain := range domains {
		debugConfig.Domains[strings.TrimSpace(domain)] = true
	}
}

// IsDebugEnabled returns whether debug logging is enabled.
func IsDebugEnabled() bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()
	return debugConfig.Enabled
}

// IsDebugEnabledForDomain returns whether debug logging is enabled for a domain.
func IsDebugEnabledForDomain(domain string) bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()

	if !debugConfig.Enabled {
		return false
	}
	if debugConfig.Domains == nil {
		return true
	}
	return debugConfig.Domains[domain]
}

func (l *Logger) log(level Level, format string, args ...any) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] [%s] %s: %s", timestamp, l.agentID, level, message)
}

// Debug logs at DEBUG level when debug logging is enabled.
func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabled() {
		return
	}
	l.log(LevelDebug, format, args...)
}

// DebugDomain logs at DEBUG level when the given domain is enabled.
func (l *Logger) DebugDomain(domain, format string, args ...any) {
	if !IsDebugEnabledForDomain(domain) {
		return
	}
	l.log(LevelDebug, "["+domain+"] "+format, args...)
}

// Info logs at INFO level.
func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

// Error logs at ERROR level.
func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}
