// Package embedding provides text embedding providers and an LRU cache in front of them.
package embedding

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hyperjump/legaleagle/internal/config"
	"github.com/hyperjump/legaleagle/internal/models"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// New builds the configured provider and wraps it in a cache when cache_size > 0.
func New(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)
	switch cfg.Provider {
	case "onnx":
		inner, err = newONNX(cfg)
	case "openai":
		inner, err = NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case "gemini":
		inner, err = NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Model, cfg.Dimensions)
	case "mock":
		inner = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, models.NewConfigurationError("embedding.provider", "unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s embedder: %w", cfg.Provider, err)
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(inner, cfg.CacheSize), nil
	}
	return inner, nil
}

// Identity names the embedder cfg selects, as "provider/model". Indexes record it,
// because vectors from different embedders are not comparable.
func Identity(cfg config.EmbeddingConfig) string {
	model := cfg.Model
	switch cfg.Provider {
	case "mock":
		return "mock"
	case "onnx":
		if model == "" {
			model = filepath.Base(cfg.ModelPath)
		}
	case "openai":
		if model == "" || model == "all-MiniLM-L6-v2" {
			model = DefaultOpenAIEmbeddingModel
		}
	case "gemini":
		if model == "" || model == "all-MiniLM-L6-v2" {
			model = DefaultGeminiEmbeddingModel
		}
	}
	return cfg.Provider + "/" + model
}

func newONNX(cfg config.EmbeddingConfig) (Embedder, error) {
	e, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// embedEach calls embed for every text in order.
func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
