// Package generation wraps the chat models that turn retrieved excerpts into answers.
package generation

import (
	"context"
	"time"

	"github.com/hyperjump/legaleagle/internal/config"
	"github.com/hyperjump/legaleagle/internal/models"
)

// Generator produces a completion for a system directive and a user turn.
type Generator interface {
	Generate(ctx context.Context, system, user string, temperature float64) (string, error)
}

// New builds the configured generator. A missing API key is a *models.ConfigurationError.
func New(ctx context.Context, cfg config.GenerationConfig) (Generator, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Provider {
	case "groq", "openai":
		if cfg.APIKey == "" {
			return nil, models.NewConfigurationError("generation.api_key", "%s generation needs an API key (set GROQ_API_KEY or OPENAI_API_KEY)", cfg.Provider)
		}
		return NewOpenAIGenerator(cfg.APIKey, cfg.BaseURL, cfg.Model, timeout), nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, models.NewConfigurationError("generation.api_key", "gemini generation needs an API key (set GEMINI_API_KEY)")
		}
		return NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, models.NewConfigurationError("generation.provider", "unknown provider %q", cfg.Provider)
	}
}
