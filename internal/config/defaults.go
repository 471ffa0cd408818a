package config

// Defaults for options that the index and pipeline depend on.
const (
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 200
	DefaultTopK           = 3
	DefaultRemoteName     = "legal-eagle-index"
	DefaultGroqBaseURL    = "https://api.groq.com/openai/v1"
	DefaultGroqModel      = "llama-3.3-70b-versatile"
	DefaultEmbeddingModel = "all-MiniLM-L6-v2"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = "/usr/local/var/legaleagle/data/uploads"
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = DefaultChunkSize
	}
	// Overlap defaults to 200 when unset (nil); an explicit 0 is kept.
	if cfg.Chunking.ChunkOverlap == nil {
		o := DefaultChunkOverlap
		cfg.Chunking.ChunkOverlap = &o
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = BackendLocal
	}
	if cfg.Index.Engine == "" {
		cfg.Index.Engine = "memory"
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "/usr/local/var/legaleagle/data/indices/contracts"
	}
	if cfg.Index.Remote.URL == "" {
		cfg.Index.Remote.URL = "http://localhost:8000"
	}
	if cfg.Index.Remote.Name == "" {
		cfg.Index.Remote.Name = DefaultRemoteName
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/legaleagle/data/db/contracts.db"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = DefaultEmbeddingModel
	}
	if cfg.Embedding.ModelPath == "" && cfg.Embedding.Provider == "onnx" {
		cfg.Embedding.ModelPath = "/usr/local/var/legaleagle/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "groq"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = DefaultGroqModel
	}
	if cfg.Generation.BaseURL == "" && cfg.Generation.Provider == "groq" {
		cfg.Generation.BaseURL = DefaultGroqBaseURL
	}
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = 60
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".docx", ".txt", ".md", ".rtf", ".odt", ".xlsx", ".pptx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
