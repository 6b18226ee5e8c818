package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads and validates configuration from a JSON file with environment
// variable substitution. ${VAR} placeholders are replaced with the value of
// VAR when set; unset placeholders are left untouched so validation can
// report them.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse unmarshals configuration JSON, substitutes environment variables, and
// applies defaults. Validation is the caller's responsibility.
func Parse(data []byte) (*Config, error) {
	substituted := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
		envVar := match[2 : len(match)-1] // strip ${ and }
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})

	var cfg Config
	if err := json.Unmarshal([]byte(substituted), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Agents == nil {
		cfg.Agents = make(map[string]AgentModelConfig)
	}

	for role, ac := range cfg.Agents {
		if ac.Temperature == 0 {
			ac.Temperature = DefaultTemperature
		}
		if ac.MaxTokens == 0 {
			ac.MaxTokens = DefaultMaxTokens
		}
		if ac.StepBudget == 0 {
			if role == RoleManager {
				ac.StepBudget = DefaultManagerStepBudget
			} else {
				ac.StepBudget = DefaultStepBudget
			}
		}
		if len(ac.PermittedImports) == 0 {
			ac.PermittedImports = DefaultPermittedImports(role)
		}
		cfg.Agents[role] = ac
	}

	if cfg.ProjectsDir == "" {
		cfg.ProjectsDir = "projects"
	}
	if len(cfg.Interpreter) == 0 {
		cfg.Interpreter = []string{"python3"}
	}
}

// Save writes configuration as indented JSON to the given path, creating
// parent directories as needed.
func (c *Config) Save(configPath string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
