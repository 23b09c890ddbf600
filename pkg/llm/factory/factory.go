// Package factory constructs completion clients with their middleware chain
// from configuration.
package factory

import (
	"fmt"

	"reclassroom/pkg/config"
	"reclassroom/pkg/llm"
	"reclassroom/pkg/llm/anthropic"
	"reclassroom/pkg/llm/ollama"
	"reclassroom/pkg/llm/openai"
	"reclassroom/pkg/logx"
)

// NewClient creates a completion client for the configured provider with the
// standard middleware chain: Logging -> Retry -> RawClient.
func NewClient(cfg *config.Config, logger *logx.Logger) (llm.Client, error) {
	apiKey, err := cfg.APIKey()
	if err != nil {
		return nil, err
	}

	var raw llm.Client
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		raw = openai.NewClient(apiKey, cfg.LLM.Model)
	case config.ProviderAnthropic:
		raw = anthropic.NewClient(apiKey, cfg.LLM.Model)
	case config.ProviderOllama:
		raw = ollama.NewClient(cfg.LLM.OllamaHost, cfg.LLM.Model)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.LLM.Provider)
	}

	return llm.Chain(raw,
		llm.WithLogging(logger),
		llm.WithRetry(llm.DefaultRetryPolicy(), logger),
	), nil
}
