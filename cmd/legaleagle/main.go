// Package main is the LegalEagle CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/legaleagle/internal/cli"
	"github.com/hyperjump/legaleagle/internal/config"
	"github.com/hyperjump/legaleagle/internal/embedding"
	"github.com/hyperjump/legaleagle/internal/extract"
	"github.com/hyperjump/legaleagle/internal/generation"
	"github.com/hyperjump/legaleagle/internal/indexer"
	"github.com/hyperjump/legaleagle/internal/models"
	"github.com/hyperjump/legaleagle/internal/pipeline"
	"github.com/hyperjump/legaleagle/internal/server"
	"github.com/hyperjump/legaleagle/internal/storage"
	"github.com/hyperjump/legaleagle/internal/vectorstore"
	"github.com/hyperjump/legaleagle/internal/watcher"
	"github.com/hyperjump/legaleagle/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/legaleagle/config.yaml"

// loadConfig loads config from path. When path is the default, ./config.yaml wins if it
// exists, and when neither exists the built-in defaults are used relative to the working
// directory. A .env file next to the config is loaded before environment overrides apply.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	resolved := path
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				resolved = fallback
			} else if _, statErr := os.Stat(path); statErr != nil {
				resolved = ""
			}
		}
	}

	var (
		cfg *config.Config
		dir string
		err error
	)
	if resolved == "" {
		dir, err = os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get working directory: %w", err)
		}
		cfg = config.Default(dir)
	} else {
		cfg, err = config.Load(resolved)
		if err != nil {
			return nil, "", err
		}
		dir = filepath.Dir(resolved)
	}

	if err := config.LoadDotEnv(filepath.Join(dir, ".env")); err != nil {
		return nil, "", err
	}
	config.ApplyEnv(cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, resolved, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "query":
		runQuery()
	case "status":
		runStatus()
	case "contracts":
		runContracts()
	case "version", "--version", "-v":
		fmt.Printf("legaleagle version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, builds the logger, and initializes components. It exits on failure.
func setup(configPath string, debugFlag, withGenerator bool) (*config.Config, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	if resolved == "" {
		resolved = "(built-in defaults)"
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	components, err := initializeComponents(context.Background(), cfg, logger, withGenerator)
	if err != nil {
		_ = logger.Sync()
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (watch events, ingestion, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug, true)
	defer logger.Sync()
	defer components.Close()

	watchSvc := watcher.NewWatcher(cfg.Watch, components.Indexer, watcher.WithLogger(logger))
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Watch.Directories) > 0 {
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
		go func() {
			res := watchSvc.SyncExistingFiles()
			if res != nil {
				logger.Info("initial sync finished",
					zap.Int("files", len(res.Files)),
					zap.Int("chunks", res.ChunkCount),
					zap.Int("failed", res.Failed()))
			}
		}()
	}

	srv := server.NewServer(components.Pipeline, components.Indexer, components.Registry, components.Store, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops at
// the first non-flag argument, so "legaleagle query \"...\" --top-k 5" would otherwise
// leave --top-k unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuestion joins all positional args with spaces so questions work the same
// with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	force := fs.Bool("force", false, "re-ingest files even when their content is unchanged")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: legaleagle ingest [--force] <file-or-directory>...")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	_, logger, components := setup(*configPath, false, false)
	defer logger.Sync()
	defer components.Close()

	res, ingestErr := components.Indexer.Ingest(context.Background(), fs.Args(), *force)
	if res != nil {
		if err := cli.WriteIngestResult(os.Stdout, res, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	}
	if ingestErr != nil {
		logger.Debug("ingest errors", zap.Error(ingestErr))
		if res == nil {
			fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", ingestErr)
		}
		components.Close()
		_ = logger.Sync()
		os.Exit(1)
	}
}

func printQueryUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: legaleagle query [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "The question is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  legaleagle query what is the termination notice period
  legaleagle query --top-k 5 "who pays for insurance?"
  legaleagle query --server http://localhost:8080 --output json "governing law"
`)
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL; when empty the index is queried directly")
	topK := fs.Int("top-k", 0, "number of excerpts to retrieve (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printQueryUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	question := buildQuestion(fs.Args())
	if question == "" {
		printQueryUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var res *models.QueryResult
	if *serverURL != "" {
		res, err = queryViaHTTP(*serverURL, question, *topK)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, logger, components := setup(*configPath, false, true)
		defer logger.Sync()
		defer components.Close()
		res, err = components.Pipeline.Query(context.Background(), question, *topK)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			components.Close()
			os.Exit(1)
		}
	}
	if err := cli.WriteQueryResult(os.Stdout, res, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func queryViaHTTP(serverURL, question string, topK int) (*models.QueryResult, error) {
	body, err := json.Marshal(server.QueryRequest{Question: question, TopK: topK})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}
	var res models.QueryResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &res, nil
}

func statusViaHTTP(serverURL string) (*server.StatusResponse, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}
	var s server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// serverError turns a non-200 response into an error, preferring the JSON "error" field.
func serverError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL; when empty the registry and index are read directly")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status *server.StatusResponse
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, logger, components := setup(*configPath, false, false)
		defer logger.Sync()
		defer components.Close()
		status, err = localStatus(context.Background(), cfg, components)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			components.Close()
			os.Exit(1)
		}
	}

	if format == cli.OutputJSON {
		if err := cli.WriteJSON(os.Stdout, status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	writeStatusText(os.Stdout, status)
}

func localStatus(ctx context.Context, cfg *config.Config, c *Components) (*server.StatusResponse, error) {
	contracts, err := c.Registry.CountContracts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count contracts: %w", err)
	}
	chunks, err := c.Registry.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	size, err := c.Store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count index: %w", err)
	}
	status := &server.StatusResponse{
		Contracts: contracts,
		Chunks:    chunks,
		IndexSize: size,
		Backend:   c.Store.Backend(),
		Config: map[string]interface{}{
			"chunk_size":    cfg.Chunking.ChunkSize,
			"chunk_overlap": cfg.Chunking.Overlap(),
			"top_k":         cfg.Retrieval.TopK,
			"database_path": cfg.Storage.DatabasePath,
		},
	}
	paths := []string{cfg.Storage.DatabasePath}
	if status.Backend == config.BackendLocal {
		status.Config["index_path"] = cfg.Index.Path
		paths = append(paths, cfg.Index.Path)
	} else {
		status.Config["remote_url"] = cfg.Index.Remote.URL
		status.Config["remote_name"] = cfg.Index.Remote.Name
	}
	if n, err := storage.DiskUsageBytes(paths...); err == nil {
		status.DiskUsageBytes = n
	}
	return status, nil
}

func writeStatusText(w io.Writer, s *server.StatusResponse) {
	fmt.Fprintf(w, "contracts:   %d\n", s.Contracts)
	fmt.Fprintf(w, "chunks:      %d\n", s.Chunks)
	fmt.Fprintf(w, "index_size:  %d\n", s.IndexSize)
	fmt.Fprintf(w, "backend:     %s\n", s.Backend)
	if s.DiskUsageBytes > 0 {
		fmt.Fprintf(w, "disk_usage:  %s\n", cli.FormatBytes(s.DiskUsageBytes))
	}
}

func runContracts() {
	fs := flag.NewFlagSet("contracts", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 100, "maximum number of contracts to list")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	_, logger, components := setup(*configPath, false, false)
	defer logger.Sync()
	defer components.Close()

	contracts, err := components.Registry.ListContracts(context.Background(), 0, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List contracts failed: %v\n", err)
		components.Close()
		os.Exit(1)
	}
	if err := cli.WriteContracts(os.Stdout, contracts, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// Components holds initialized services. Pipeline is nil unless a generator was requested.
type Components struct {
	Registry storage.Registry
	Embedder embedding.Embedder
	Store    vectorstore.Store
	Indexer  *indexer.Indexer
	Pipeline *pipeline.Pipeline
	closed   bool
}

// Close releases everything in reverse order of creation. It is safe to call twice.
func (c *Components) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, withGenerator bool) (*Components, error) {
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	registry, err := storage.NewSQLiteRegistry(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}
	c.Registry = registry

	embedderID := embedding.Identity(cfg.Embedding)
	embedder, err := embedding.New(ctx, cfg.Embedding)
	if err != nil {
		if cfg.Embedding.Provider != "onnx" {
			return nil, err
		}
		logger.Warn("ONNX embedder unavailable, falling back to mock embeddings",
			zap.String("model_path", cfg.Embedding.ModelPath),
			zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
		embedderID = embedding.Identity(config.EmbeddingConfig{Provider: "mock"})
	}
	c.Embedder = embedder

	// An index built by another embedder is refused here, so the mock fallback never mixes into it.
	store, err := vectorstore.New(ctx, cfg.Index, embedder,
		vectorstore.WithLogger(logger),
		vectorstore.WithEmbedderID(embedderID))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	c.Store = store
	logger.Debug("vector store initialized",
		zap.String("backend", store.Backend()),
		zap.String("engine", cfg.Index.Engine))

	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap())
	if err != nil {
		return nil, err
	}
	c.Indexer = indexer.NewIndexer(registry, store, chunker, extract.NewExtractor(),
		indexer.WithLogger(logger),
		indexer.WithExtensions(cfg.Watch.Extensions))

	if withGenerator {
		gen, err := generation.New(ctx, cfg.Generation)
		if err != nil {
			return nil, err
		}
		c.Pipeline = pipeline.New(store, gen, cfg.Retrieval.TopK, pipeline.WithLogger(logger))
	}

	ok = true
	return c, nil
}

func printUsage() {
	fmt.Println(`legaleagle - Ask questions about your contracts, with page citations

Usage:
  legaleagle server [flags]                  Start the HTTP server and inbox watcher
  legaleagle ingest [flags] <path>...        Ingest contract files or directories
  legaleagle query [flags] <question>        Ask a question about the ingested contracts
  legaleagle status [flags]                  Show registry and index status
  legaleagle contracts [flags]               List ingested contracts
  legaleagle version                         Show version
  legaleagle help                            Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/legaleagle/config.yaml,
                     or ./config.yaml when present)

Server Flags:
  --debug            Enable debug logging

Ingest Flags:
  --force            Re-ingest files whose content is unchanged
  --output string    Output format: text or json (default: text)

Query Flags:
  --top-k int        Number of excerpts to retrieve (default from config)
  --server string    Query a running server instead of the local index
  --output string    Output format: text or json (default: text)

Status Flags:
  --server string    Read status from a running server
  --output string    Output format: text or json (default: text)

Contracts Flags:
  --limit int        Maximum number of contracts (default: 100)
  --output string    Output format: text or json (default: text)

Environment:
  GROQ_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY   Generation and embedding credentials
  VECTOR_STORE_TYPE                              local, faiss, memory, remote or chroma
  INDEX_PATH, CHROMA_URL, CHROMA_COLLECTION      Index location
  LLM_MODEL, EMBEDDING_MODEL                     Model overrides

Examples:
  legaleagle ingest ./contracts
  legaleagle query what is the notice period for termination
  legaleagle query --output json "who owns the deliverables?"
  legaleagle status --output json`)
}
