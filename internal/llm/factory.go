package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/opspilot/opspilot/internal/config"
)

// apiKeyEnvVars maps provider names to their standard environment
// variables, checked when the config has no key.
var apiKeyEnvVars = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"groq":       "GROQ_API_KEY",
	"grok":       "XAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
}

// getAPIKeyFromEnv retrieves the API key from standard environment variables.
func getAPIKeyFromEnv(providerName string) string {
	if envVar, ok := apiKeyEnvVars[providerName]; ok {
		return os.Getenv(envVar)
	}
	return ""
}

// NewProviderByName creates a specific provider by name.
// All providers are wrapped with MetricsProvider for call counting and
// latency tracking.
func NewProviderByName(name string, cfg *ProviderConfig) (Provider, error) {
	var provider Provider

	switch name {
	case "ollama":
		provider = NewOllamaProvider(cfg)
	case "openai":
		provider = NewOpenAIProvider(cfg)
	case "anthropic":
		provider = NewAnthropicProvider(cfg)
	case "groq", "grok", "openrouter":
		provider = NewCompatibleProvider(name, cfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}

	metricsProvider := NewMetricsProvider(provider)
	RegisterMetricsProvider(metricsProvider)

	return metricsProvider, nil
}

// buildProviderConfig converts a config entry into a ProviderConfig,
// resolving the API key from the environment when the config has none.
func buildProviderConfig(name string, pc config.ProviderConfig) *ProviderConfig {
	apiKey := pc.APIKey
	if apiKey == "" {
		apiKey = getAPIKeyFromEnv(name)
	}

	return &ProviderConfig{
		Name:         name,
		Endpoint:     pc.Endpoint,
		APIKey:       apiKey,
		Model:        pc.Model,
		MaxTokens:    pc.MaxTokens,
		Temperature:  pc.Temperature,
		ExtraHeaders: pc.ExtraHeaders,
		Timeout:      2 * time.Minute,
	}
}

