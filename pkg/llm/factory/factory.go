package factory

import (
	"fmt"
	"time"

	"bonfire-agent/pkg/llm"
	"bonfire-agent/pkg/llm/asione"
	"bonfire-agent/pkg/llm/ollama"
)

const (
	ProviderASIOne = "asione"
	ProviderOllama = "ollama"
)

type ProviderConfig struct {
	Type      string
	Model     string
	BaseURL   string
	APIKey    string
	MaxTokens int
	Timeout   time.Duration
}

func NewLLMProvider(cfg ProviderConfig) (llm.LLMProvider, error) {
	switch cfg.Type {
	case ProviderASIOne, "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("LLM provider %s requires an API key", cfg.Type)
		}
		return asione.NewProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.MaxTokens, cfg.Timeout), nil
	case ProviderOllama:
		return ollama.NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.MaxTokens, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Type)
	}
}
