package config

import (
	"github.com/hyperjump/legaleagle/internal/models"
)

// Validate checks option ranges and backend selection. It does not check generation
// credentials; those are required only when a generator is built.
func (c *Config) Validate() error {
	if err := ValidateChunking(c.Chunking.ChunkSize, c.Chunking.Overlap()); err != nil {
		return err
	}
	if c.Retrieval.TopK <= 0 {
		return models.NewConfigurationError("retrieval.top_k", "must be positive, got %d", c.Retrieval.TopK)
	}
	switch c.Index.Backend {
	case BackendLocal:
		if c.Index.Path == "" {
			return models.NewConfigurationError("index.path", "required for the local backend")
		}
		if c.Index.Engine != "memory" && c.Index.Engine != "faiss" {
			return models.NewConfigurationError("index.engine", "unknown engine %q (supported: memory, faiss)", c.Index.Engine)
		}
	case BackendRemote:
		if c.Index.Remote.URL == "" {
			return models.NewConfigurationError("index.remote.url", "required for the remote backend")
		}
		if c.Index.Remote.Name == "" {
			return models.NewConfigurationError("index.remote.name", "required for the remote backend")
		}
	default:
		return models.NewConfigurationError("index.backend", "unknown backend %q (supported: local, remote)", c.Index.Backend)
	}
	switch c.Embedding.Provider {
	case "onnx", "mock":
	case "openai", "gemini":
		if c.Embedding.APIKey == "" {
			return models.NewConfigurationError("embedding.provider", "%s embeddings need an API key", c.Embedding.Provider)
		}
	default:
		return models.NewConfigurationError("embedding.provider", "unknown provider %q (supported: onnx, openai, gemini, mock)", c.Embedding.Provider)
	}
	switch c.Generation.Provider {
	case "groq", "openai", "gemini":
	default:
		return models.NewConfigurationError("generation.provider", "unknown provider %q (supported: groq, openai, gemini)", c.Generation.Provider)
	}
	return nil
}

// ValidateChunking rejects chunk parameters the splitter cannot honor.
func ValidateChunking(size, overlap int) error {
	if size <= 0 {
		return models.NewConfigurationError("chunking.chunk_size", "must be positive, got %d", size)
	}
	if overlap < 0 {
		return models.NewConfigurationError("chunking.chunk_overlap", "must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return models.NewConfigurationError("chunking.chunk_overlap", "must be less than chunk_size (%d >= %d)", overlap, size)
	}
	return nil
}
