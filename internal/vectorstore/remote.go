package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	chhttp "github.com/amikos-tech/chroma-go/pkg/commons/http"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/google/uuid"
	"github.com/hyperjump/legaleagle/internal/embedding"
	"github.com/hyperjump/legaleagle/internal/models"
	"github.com/hyperjump/legaleagle/pkg/utils"
	"go.uber.org/zap"
)

const (
	// BackendRemote is reported by RemoteStore.Backend.
	BackendRemote = "remote"

	upsertBatchSize = 100
)

// RemoteStore keeps chunks in a Chroma collection. The collection is created on the
// first Add with cosine distance, so Score is 1 - distance.
type RemoteStore struct {
	client     chromago.Client
	name       string
	embedder   embedding.Embedder
	embedderID string
	ef         embeddings.EmbeddingFunction
	logger     *zap.Logger

	mu         sync.RWMutex
	collection chromago.Collection // nil until it exists on the server
}

// NewRemoteStore connects to the Chroma server at url and attaches to collection name if it exists.
// A missing collection is not an error; an unreachable or failing server is.
func NewRemoteStore(ctx context.Context, url, name string, embedder embedding.Embedder, opts ...StoreOption) (*RemoteStore, error) {
	if url == "" {
		return nil, models.NewConfigurationError("index.remote.url", "required for the remote backend")
	}
	if name == "" {
		return nil, models.NewConfigurationError("index.remote.name", "required for the remote backend")
	}
	o := applyOptions(opts)
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(url))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}
	s := &RemoteStore{
		client:     client,
		name:       name,
		embedder:   embedder,
		embedderID: o.embedderID,
		ef:         chromaEmbedding{embedder: embedder},
		logger:     o.logger,
	}
	if _, err := s.lookup(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

// lookup returns the attached collection, fetching it from the server when not yet attached.
// It returns nil, nil when the server confirms the collection does not exist.
func (s *RemoteStore) lookup(ctx context.Context) (chromago.Collection, error) {
	if col := s.current(); col != nil {
		return col, nil
	}
	col, err := s.client.GetCollection(ctx, s.name, chromago.WithEmbeddingFunctionGet(s.ef))
	if err != nil {
		if isNotFound(err) {
			if s.logger != nil {
				s.logger.Debug("remote collection not found", zap.String("collection", s.name))
			}
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up collection %s: %w", s.name, err)
	}
	if err := s.checkEmbedder(col); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection == nil {
		s.collection = col
		if s.logger != nil {
			s.logger.Info("attached to remote collection", zap.String("collection", s.name), zap.Int("dimensions", col.Dimension()))
		}
	}
	return s.collection, nil
}

func (s *RemoteStore) checkEmbedder(col chromago.Collection) error {
	meta := col.Metadata()
	if meta == nil || s.embedderID == "" {
		return nil
	}
	built, ok := meta.GetString("embedder")
	if !ok || built == "" || built == s.embedderID {
		return nil
	}
	return embedderMismatch("collection "+s.name, built, s.embedderID)
}

// isNotFound reports whether err is Chroma saying the collection does not exist.
// Older servers answer 400 with an InvalidCollection error instead of 404.
func isNotFound(err error) bool {
	var chErr *chhttp.ChromaError
	if !errors.As(err, &chErr) || chErr.ErrorCode == 0 {
		return false
	}
	if chErr.ErrorCode == http.StatusNotFound || strings.Contains(chErr.ErrorID, "NotFound") {
		return true
	}
	return chErr.ErrorCode == http.StatusBadRequest && strings.Contains(chErr.Message, "does not exist")
}

// ensureCollection creates the collection with the dimensionality of the first embedded batch.
func (s *RemoteStore) ensureCollection(ctx context.Context, dims int) (chromago.Collection, error) {
	col, err := s.lookup(ctx)
	if err != nil || col != nil {
		return col, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection != nil {
		return s.collection, nil
	}
	attrs := []*chromago.MetaAttribute{
		chromago.NewStringAttribute("hnsw:space", "cosine"),
		chromago.NewIntAttribute("dimension", int64(dims)),
		chromago.NewStringAttribute("created_by", "legaleagle"),
	}
	if s.embedderID != "" {
		attrs = append(attrs, chromago.NewStringAttribute("embedder", s.embedderID))
	}
	col, err = s.client.GetOrCreateCollection(ctx, s.name,
		chromago.WithCollectionMetadataCreate(chromago.NewMetadata(attrs...)),
		chromago.WithEmbeddingFunctionCreate(s.ef),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", s.name, err)
	}
	if s.logger != nil {
		s.logger.Info("created remote collection", zap.String("collection", s.name), zap.Int("dimensions", dims))
	}
	s.collection = col
	return col, nil
}

func (s *RemoteStore) current() chromago.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection
}

// Add embeds chunks and upserts them in batches. Each batch is durable once Chroma acknowledges it.
func (s *RemoteStore) Add(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	embs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embs) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(embs), len(chunks))
	}

	col, err := s.ensureCollection(ctx, len(embs[0]))
	if err != nil {
		return err
	}

	for _, b := range batches(len(chunks), upsertBatchSize) {
		ids := make([]chromago.DocumentID, 0, b[1]-b[0])
		docs := make([]string, 0, b[1]-b[0])
		vecs := make([]embeddings.Embedding, 0, b[1]-b[0])
		metas := make([]chromago.DocumentMetadata, 0, b[1]-b[0])
		for i := b[0]; i < b[1]; i++ {
			ch := chunks[i]
			id := ch.ID
			if id == "" {
				id = uuid.New().String()
			}
			ids = append(ids, chromago.DocumentID(id))
			docs = append(docs, ch.Text)
			vecs = append(vecs, embeddings.NewEmbeddingFromFloat32(utils.Normalized(embs[i])))
			metas = append(metas, chromago.NewDocumentMetadata(
				chromago.NewStringAttribute("source", ch.Metadata.Source),
				chromago.NewIntAttribute("page", int64(ch.Page)),
				chromago.NewIntAttribute("chunk_length", int64(ch.Metadata.ChunkLength)),
			))
		}
		err := col.Upsert(ctx,
			chromago.WithIDs(ids...),
			chromago.WithTexts(docs...),
			chromago.WithEmbeddings(vecs...),
			chromago.WithMetadatas(metas...),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert chunks %d-%d to chroma: %w", b[0], b[1], err)
		}
	}
	if s.logger != nil {
		s.logger.Debug("added chunks to remote collection", zap.Int("chunks", len(chunks)), zap.String("collection", s.name))
	}
	return nil
}

// Delete removes records by ID in batches. Deleting from a collection that does not exist is a no-op.
func (s *RemoteStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	col, err := s.lookup(ctx)
	if err != nil {
		return err
	}
	if col == nil {
		return nil
	}
	for _, b := range batches(len(ids), upsertBatchSize) {
		docIDs := make([]chromago.DocumentID, 0, b[1]-b[0])
		for _, id := range ids[b[0]:b[1]] {
			docIDs = append(docIDs, chromago.DocumentID(id))
		}
		if err := col.Delete(ctx, chromago.WithIDsDelete(docIDs...)); err != nil {
			return fmt.Errorf("failed to delete chunks %d-%d from chroma: %w", b[0], b[1], err)
		}
	}
	if s.logger != nil {
		s.logger.Debug("removed chunks from remote collection", zap.Int("chunks", len(ids)), zap.String("collection", s.name))
	}
	return nil
}

// Search embeds query and asks Chroma for the k nearest chunks.
func (s *RemoteStore) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	col, err := s.lookup(ctx)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, models.ErrIndexNotReady
	}
	if k <= 0 {
		return []models.SearchResult{}, nil
	}
	q, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	res, err := col.Query(ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(utils.Normalized(q))),
		chromago.WithNResults(k),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chroma: %w", err)
	}

	docGroups := res.GetDocumentsGroups()
	if len(docGroups) == 0 {
		return []models.SearchResult{}, nil
	}
	idGroups := res.GetIDGroups()
	metaGroups := res.GetMetadatasGroups()
	distGroups := res.GetDistancesGroups()

	results := make([]models.SearchResult, 0, len(docGroups[0]))
	for i, doc := range docGroups[0] {
		var (
			id   string
			meta chromago.DocumentMetadata
			dist float64
		)
		if len(idGroups) > 0 && i < len(idGroups[0]) {
			id = string(idGroups[0][i])
		}
		if len(metaGroups) > 0 && i < len(metaGroups[0]) {
			meta = metaGroups[0][i]
		}
		if len(distGroups) > 0 && i < len(distGroups[0]) {
			dist = float64(distGroups[0][i])
		}
		results = append(results, toSearchResult(id, doc.ContentString(), meta, dist))
	}
	return results, nil
}

// Count returns the number of records in the collection, or 0 before it exists.
func (s *RemoteStore) Count(ctx context.Context) (int, error) {
	col, err := s.lookup(ctx)
	if err != nil {
		return 0, err
	}
	if col == nil {
		return 0, nil
	}
	n, err := col.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count chroma records: %w", err)
	}
	return n, nil
}

// Backend returns "remote".
func (s *RemoteStore) Backend() string { return BackendRemote }

// Close releases the HTTP client.
func (s *RemoteStore) Close() error {
	return s.client.Close()
}

// toSearchResult builds a result from one Chroma row. meta may be nil.
func toSearchResult(id, text string, meta chromago.DocumentMetadata, distance float64) models.SearchResult {
	r := models.SearchResult{
		ID:    id,
		Text:  text,
		Score: clampScore(1 - distance),
	}
	if meta == nil {
		return r
	}
	if v, ok := meta.GetString("source"); ok {
		r.Metadata.Source = v
	}
	r.Metadata.Page = metaInt(meta, "page")
	r.Metadata.ChunkLength = metaInt(meta, "chunk_length")
	return r
}

// metaInt reads an integer attribute. Query results are decoded through a generic map,
// so whole numbers can come back as floats.
func metaInt(meta chromago.DocumentMetadata, key string) int {
	if v, ok := meta.GetInt(key); ok {
		return int(v)
	}
	if v, ok := meta.GetFloat(key); ok {
		return int(v)
	}
	return 0
}

// chromaEmbedding exposes an Embedder as a chroma-go embedding function. Vectors are
// always sent precomputed, so chroma-go only needs it to satisfy collection validation.
type chromaEmbedding struct {
	embedder embedding.Embedder
}

func (e chromaEmbedding) EmbedDocuments(ctx context.Context, texts []string) ([]embeddings.Embedding, error) {
	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([]embeddings.Embedding, len(vecs))
	for i, v := range vecs {
		out[i] = embeddings.NewEmbeddingFromFloat32(utils.Normalized(v))
	}
	return out, nil
}

func (e chromaEmbedding) EmbedQuery(ctx context.Context, text string) (embeddings.Embedding, error) {
	v, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbeddingFromFloat32(utils.Normalized(v)), nil
}

// batches splits [0, n) into half-open ranges of at most size.
func batches(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
