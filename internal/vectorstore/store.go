// Package vectorstore is the contract index: chunks go in, ranked excerpts come out.
// A Store owns embedding of both chunks and queries, so callers only deal in text.
package vectorstore

import (
	"context"

	"github.com/hyperjump/legaleagle/internal/config"
	"github.com/hyperjump/legaleagle/internal/embedding"
	"github.com/hyperjump/legaleagle/internal/models"
	"go.uber.org/zap"
)

// Store is implemented by the local and remote backends.
//
// Search results are ordered by decreasing Score, where Score is cosine similarity
// clamped to [0, 1] on both backends. Search returns models.ErrIndexNotReady until
// something has been added.
type Store interface {
	Add(ctx context.Context, chunks []models.Chunk) error
	Delete(ctx context.Context, ids []string) error
	Search(ctx context.Context, query string, k int) ([]models.SearchResult, error)
	Count(ctx context.Context) (int, error)
	Backend() string
	Close() error
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	logger     *zap.Logger
	embedderID string
}

// WithLogger sets a logger for debug output (batches added, index persisted, etc.).
func WithLogger(l *zap.Logger) StoreOption {
	return func(o *storeOptions) { o.logger = l }
}

// WithEmbedderID records which embedder produced the vectors. An index built by a
// different embedder is refused, since its vectors are not comparable with new queries.
func WithEmbedderID(id string) StoreOption {
	return func(o *storeOptions) { o.embedderID = id }
}

// embedderMismatch is returned when an existing index was built by another embedder.
func embedderMismatch(where, built, configured string) error {
	return models.NewConfigurationError("embedding",
		"%s was built with embedder %q but %q is configured; restore that embedder or rebuild the index", where, built, configured)
}

// New opens the backend selected by cfg.Backend. The choice is fixed for the life of the Store.
func New(ctx context.Context, cfg config.IndexConfig, embedder embedding.Embedder, opts ...StoreOption) (Store, error) {
	switch cfg.Backend {
	case config.BackendLocal, "":
		s, err := NewLocalStore(cfg.Path, cfg.Engine, embedder, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendRemote:
		s, err := NewRemoteStore(ctx, cfg.Remote.URL, cfg.Remote.Name, embedder, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, models.NewConfigurationError("index.backend", "unknown backend %q (supported: local, remote)", cfg.Backend)
	}
}

func applyOptions(opts []StoreOption) storeOptions {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// clampScore maps a similarity into [0, 1].
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
