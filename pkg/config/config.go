// Package config provides configuration loading, validation, and secret
// management for the agent pipeline. Configuration is a JSON file with
// environment variable substitution.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Role name constants.
const (
	RoleArchitect = "architect"
	RoleDeveloper = "developer"
	RoleTester    = "tester"
	RoleReviewer  = "reviewer"
	RoleManager   = "manager"
)

// Provider name constants.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// Default agent execution parameters. The step budget bounds LLM round-trips
// per agent invocation; the manager gets a larger budget because delegated
// sub-tasks count against it.
const (
	DefaultStepBudget        = 20
	DefaultManagerStepBudget = 30
	DefaultTemperature       = 0.2
	DefaultMaxTokens         = 4096
)

// ConfigFilename is the default project configuration file name.
const ConfigFilename = "devteam.json"

// GitHubConfig holds version-control credentials and target repository.
// Token and Username must both be present for version control to be enabled.
type GitHubConfig struct {
	Token      string `json:"token"`
	Username   string `json:"username"`
	Repository string `json:"repository"`
}

// AgentModelConfig configures the LLM backing a single role.
type AgentModelConfig struct {
	ModelID     string  `json:"model_id"`
	Provider    string  `json:"provider"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	StepBudget  int     `json:"step_budget,omitempty"`
	// PermittedImports is the module allow-list for code the agent
	// generates. Empty means the role's default list applies.
	PermittedImports []string `json:"permitted_imports,omitempty"`
}

// Config is the top-level configuration consumed by the orchestrator.
type Config struct {
	GitHub      GitHubConfig                `json:"github"`
	Agents      map[string]AgentModelConfig `json:"agents"`
	ProjectsDir string                      `json:"projects_dir,omitempty"`
	Interpreter []string                    `json:"interpreter,omitempty"` // command prefix for executing generated artifacts
}

// MandatoryRoles lists the roles that must resolve to a non-empty model id
// before agents can be constructed. The manager reuses the architect's model
// when it has no configuration of its own.
func MandatoryRoles() []string {
	return []string{RoleArchitect, RoleDeveloper, RoleTester, RoleReviewer}
}

// DefaultPermittedImports returns the import allow-list seeded into a role's
// configuration when permitted_imports is not set. Generated artifacts are
// Python by default, so the lists name Python modules.
func DefaultPermittedImports(role string) []string {
	common := []string{"os", "pathlib", "json", "sys", "re"}
	switch role {
	case RoleDeveloper:
		return append(common, "datetime", "typing")
	case RoleTester:
		return append(common, "pytest", "unittest")
	default:
		return common
	}
}

// ConfigError reports one or more fatal configuration problems. All problems
// found during validation are aggregated so the user sees every missing model
// id in one report.
type ConfigError struct {
	Reasons []string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration invalid: %s", strings.Join(e.Reasons, "; "))
}

// Validate checks that every mandatory role resolves to a non-empty model id
// and a known provider. Failures are aggregated into a single ConfigError.
func (c *Config) Validate() error {
	var reasons []string

	for _, role := range MandatoryRoles() {
		ac, ok := c.Agents[role]
		if !ok || ac.ModelID == "" {
			reasons = append(reasons, fmt.Sprintf("agents.%s.model_id is not set", role))
			continue
		}
		if !knownProvider(ac.Provider) {
			reasons = append(reasons, fmt.Sprintf("agents.%s.provider %q is not one of anthropic, openai, google, ollama", role, ac.Provider))
		}
	}

	if len(reasons) > 0 {
		sort.Strings(reasons)
		return &ConfigError{Reasons: reasons}
	}
	return nil
}

func knownProvider(p string) bool {
	switch p {
	case ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderOllama:
		return true
	}
	return false
}

// AgentConfig returns the model configuration for a role. The manager falls
// back to the architect's configuration when it has none of its own.
func (c *Config) AgentConfig(role string) (AgentModelConfig, bool) {
	if ac, ok := c.Agents[role]; ok && ac.ModelID != "" {
		return ac, true
	}
	if role == RoleManager {
		if ac, ok := c.Agents[RoleArchitect]; ok && ac.ModelID != "" {
			return ac, true
		}
	}
	return AgentModelConfig{}, false
}

// VersionControlEnabled reports whether both a token and a username were
// supplied; the repository may still be created later.
func (c *Config) VersionControlEnabled() bool {
	return c.GitHub.Token != "" && c.GitHub.Username != ""
}

// GetAPIKey retrieves the API key for a provider from environment variables.
// Ollama runs locally and needs no key.
func GetAPIKey(provider string) (string, error) {
	var envVar string
	switch provider {
	case ProviderAnthropic:
		envVar = "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		envVar = "OPENAI_API_KEY"
	case ProviderGoogle:
		envVar = "GEMINI_API_KEY"
	case ProviderOllama:
		return "", nil
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}

	key := os.Getenv(envVar)
	if key == "" {
		return "", fmt.Errorf("%s not set for provider %s", envVar, provider)
	}
	return key, nil
}

// OllamaHost returns the Ollama server URL, defaulting to the local daemon.
func OllamaHost() string {
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		return host
	}
	return "http://localhost:11434"
}
