// Package config provides configuration loading, validation, and secret
// management for the simulator.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Provider name constants.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Default model per provider.
const (
	DefaultOpenAIModel    = "gpt-4.1"
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultOllamaModel    = "llama3.1"
	DefaultOllamaHost     = "http://localhost:11434"
)

// Default runtime settings.
const (
	DefaultDatabasePath       = "reclassroom.db"
	DefaultMaxTokens          = 4096
	DefaultHistoryTokenBudget = 24000
)

// LLM holds completion-service settings.
type LLM struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	APIKeyName string `json:"api_key_name"` // Secret/env var holding the API key
	OllamaHost string `json:"ollama_host,omitempty"`
	MaxTokens  int    `json:"max_tokens"`
}

// Config represents the main configuration for the simulator.
type Config struct {
	LLM                LLM    `json:"llm"`
	DatabasePath       string `json:"database_path"`
	MetricsAddr        string `json:"metrics_addr,omitempty"` // Empty disables the /metrics listener
	HistoryTokenBudget int    `json:"history_token_budget"`   // Token cap for history sent to personas
}

// Default returns a configuration with sensible defaults (OpenAI, local sqlite file).
func Default() *Config {
	return &Config{
		LLM: LLM{
			Provider:   ProviderOpenAI,
			Model:      DefaultOpenAIModel,
			APIKeyName: "OPENAI_API_KEY",
			OllamaHost: DefaultOllamaHost,
			MaxTokens:  DefaultMaxTokens,
		},
		DatabasePath:       DefaultDatabasePath,
		HistoryTokenBudget: DefaultHistoryTokenBudget,
	}
}

// Load reads configuration from path (if it exists), then applies environment
// overrides, then validates. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults + env only.
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets RECLASSROOM_* variables override file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RECLASSROOM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("RECLASSROOM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("RECLASSROOM_OLLAMA_HOST"); v != "" {
		cfg.LLM.OllamaHost = v
	}
	if v := os.Getenv("RECLASSROOM_DB"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("RECLASSROOM_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("RECLASSROOM_HISTORY_BUDGET"); v != "" {
		if budget, err := strconv.Atoi(v); err == nil && budget > 0 {
			cfg.HistoryTokenBudget = budget
		}
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama:
	default:
		return fmt.Errorf("unknown LLM provider %q (expected %s, %s, or %s)",
			c.LLM.Provider, ProviderOpenAI, ProviderAnthropic, ProviderOllama)
	}

	if c.LLM.Model == "" {
		return fmt.Errorf("LLM model must not be empty")
	}
	if c.LLM.Provider == ProviderOllama && c.LLM.OllamaHost == "" {
		return fmt.Errorf("ollama_host must be set for the ollama provider")
	}
	if c.LLM.Provider != ProviderOllama && c.LLM.APIKeyName == "" {
		return fmt.Errorf("api_key_name must be set for provider %s", c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if c.HistoryTokenBudget <= 0 {
		return fmt.Errorf("history_token_budget must be positive, got %d", c.HistoryTokenBudget)
	}
	return nil
}

// APIKey resolves the configured provider's API key via the secrets file and
// environment. Ollama needs no key; an empty string is returned for it.
func (c *Config) APIKey() (string, error) {
	if c.LLM.Provider == ProviderOllama {
		return "", nil
	}
	key, err := GetSecret(c.LLM.APIKeyName)
	if err != nil {
		return "", fmt.Errorf("no API key for provider %s: %w", c.LLM.Provider, err)
	}
	return key, nil
}
