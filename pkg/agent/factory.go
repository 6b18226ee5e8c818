package agent

import (
	"errors"
	"fmt"

	"devteam/pkg/config"
	"devteam/pkg/llm"
	"devteam/pkg/llm/anthropic"
	"devteam/pkg/llm/google"
	"devteam/pkg/llm/ollama"
	"devteam/pkg/llm/openai"
)

// ErrMissingModelConfiguration indicates a role has no usable model id.
// Callers constructing multiple agents collect these into one report rather
// than failing on the first.
var ErrMissingModelConfiguration = errors.New("no model configured for role")

// ClientFactory creates an LLM client for a role's model configuration.
// Tests substitute this to inject mock clients.
type ClientFactory func(ac config.AgentModelConfig) (llm.Client, error)

// NewLLMClient creates a provider client for the given model configuration,
// resolving credentials from the environment.
func NewLLMClient(ac config.AgentModelConfig) (llm.Client, error) {
	switch ac.Provider {
	case config.ProviderAnthropic:
		apiKey, err := config.GetAPIKey(ac.Provider)
		if err != nil {
			return nil, err
		}
		return anthropic.NewClient(apiKey, ac.ModelID), nil
	case config.ProviderOpenAI:
		apiKey, err := config.GetAPIKey(ac.Provider)
		if err != nil {
			return nil, err
		}
		return openai.NewClient(apiKey, ac.ModelID), nil
	case config.ProviderGoogle:
		apiKey, err := config.GetAPIKey(ac.Provider)
		if err != nil {
			return nil, err
		}
		return google.NewClient(apiKey, ac.ModelID), nil
	case config.ProviderOllama:
		return ollama.NewClient(config.OllamaHost(), ac.ModelID), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ac.Provider)
	}
}
