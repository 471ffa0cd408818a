package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from envFile into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(envFile string) error {
	if envFile == "" {
		return nil
	}
	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat env file: %w", err)
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment variables on cfg. lookup is usually os.Getenv.
// API keys only ever come from the environment.
func ApplyEnv(cfg *Config, lookup func(string) string) {
	if v := strings.ToLower(lookup("VECTOR_STORE_TYPE")); v != "" {
		switch v {
		case "local", "faiss", "memory":
			cfg.Index.Backend = BackendLocal
			if v == "faiss" || v == "memory" {
				cfg.Index.Engine = v
			}
		case "remote", "chroma":
			cfg.Index.Backend = BackendRemote
		default:
			cfg.Index.Backend = v
		}
	}
	if v := lookup("INDEX_PATH"); v != "" {
		if abs, err := filepath.Abs(v); err == nil {
			v = abs
		}
		cfg.Index.Path = v
	}
	if v := firstNonEmpty(lookup("REMOTE_INDEX_NAME"), lookup("CHROMA_COLLECTION")); v != "" {
		cfg.Index.Remote.Name = v
	}
	if v := lookup("CHROMA_URL"); v != "" {
		cfg.Index.Remote.URL = v
	}
	if v := lookup("LLM_MODEL"); v != "" {
		cfg.Generation.Model = v
	}
	if v := lookup("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}

	if cfg.Generation.APIKey == "" {
		switch cfg.Generation.Provider {
		case "groq":
			cfg.Generation.APIKey = firstNonEmpty(lookup("GROQ_API_KEY"), lookup("OPENAI_API_KEY"))
		case "openai":
			cfg.Generation.APIKey = lookup("OPENAI_API_KEY")
		case "gemini":
			cfg.Generation.APIKey = firstNonEmpty(lookup("GEMINI_API_KEY"), lookup("GOOGLE_API_KEY"))
		}
	}
	if cfg.Embedding.APIKey == "" {
		switch cfg.Embedding.Provider {
		case "openai":
			cfg.Embedding.APIKey = lookup("OPENAI_API_KEY")
		case "gemini":
			cfg.Embedding.APIKey = firstNonEmpty(lookup("GEMINI_API_KEY"), lookup("GOOGLE_API_KEY"))
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
