package ai

import (
	"context"
	"fmt"

	"email-agent-backend/pkg/gemini"
)

// DynamicConfig selects the provider. Ollama settings are read on every call.
type DynamicConfig struct {
	Provider     ProviderType
	GeminiAPIKey string
	GeminiModel  string

	GetOllamaBaseURL func() string
	GetOllamaModel   func() string
}

// NewTextGeneratorWithDynamicConfig builds the generator chain. The result is
// always wrapped in a circuit breaker.
func NewTextGeneratorWithDynamicConfig(ctx context.Context, cfg DynamicConfig) (TextGenerator, error) {
	var gen TextGenerator

	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		g, err := gemini.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		gen = g

	case ProviderOllama:
		gen = NewOllamaServiceWithGetters(cfg.GetOllamaBaseURL, cfg.GetOllamaModel)

	default:
		// Gemini with Ollama behind it if an API key is available, otherwise Ollama alone
		ollama := NewOllamaServiceWithGetters(cfg.GetOllamaBaseURL, cfg.GetOllamaModel)
		if cfg.GeminiAPIKey == "" {
			gen = ollama
			break
		}
		g, err := gemini.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		gen = NewFallbackService(g, ollama)
	}

	return NewBreakerService(gen, BreakerSettings{Name: string(cfg.Provider)}), nil
}
