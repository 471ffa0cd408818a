// Package server provides the HTTP API for LegalEagle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/legaleagle/internal/config"
	"github.com/hyperjump/legaleagle/internal/models"
	"github.com/hyperjump/legaleagle/internal/storage"
	"go.uber.org/zap"
)

const (
	requestTimeout = 120 * time.Second
	maxJSONBody    = 1 << 20
	maxUploadBody  = 64 << 20
)

// Querier answers questions; implemented by *pipeline.Pipeline.
type Querier interface {
	Query(ctx context.Context, question string, topK int) (*models.QueryResult, error)
}

// Ingester ingests files; implemented by *indexer.Indexer.
type Ingester interface {
	Ingest(ctx context.Context, paths []string, force bool) (*models.IngestResult, error)
}

// IndexInfo reports on the vector store; implemented by every vectorstore.Store.
type IndexInfo interface {
	Count(ctx context.Context) (int, error)
	Backend() string
}

// Server is the HTTP server for the LegalEagle API.
type Server struct {
	querier  Querier
	ingester Ingester
	registry storage.Registry
	index    IndexInfo
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	querier Querier,
	ingester Ingester,
	registry storage.Registry,
	index IndexInfo,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		querier:  querier,
		ingester: ingester,
		registry: registry,
		index:    index,
		config:   cfg,
		logger:   logger,
	}
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/contracts", s.handleListContracts)
		r.Get("/contracts/{id}", s.handleGetContract)
		r.With(middleware.RequestSize(maxUploadBody)).Post("/contracts", s.handleUpload)
		r.With(middleware.RequestSize(maxJSONBody)).Post("/ingest", s.handleIngest)
		r.With(middleware.RequestSize(maxJSONBody)).Post("/query", s.handleQuery)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.String("backend", s.index.Backend()))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
