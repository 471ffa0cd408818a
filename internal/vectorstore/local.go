package vectorstore

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/hyperjump/legaleagle/internal/embedding"
	"github.com/hyperjump/legaleagle/internal/models"
	"github.com/hyperjump/legaleagle/internal/vector"
	"github.com/hyperjump/legaleagle/pkg/utils"
	"go.uber.org/zap"
)

const (
	// BackendLocal is reported by LocalStore.Backend.
	BackendLocal = "local"

	vectorsFile     = "vectors.idx"
	manifestFile    = "chunks.gob"
	manifestVersion = 1
)

// manifest is the gob-encoded companion of the vector file. Records are in insertion
// order and their IDs match the IDs stored in the vector index.
type manifest struct {
	Version    int
	Engine     string
	Embedder   string // provider/model that produced the vectors; empty in indexes from older builds
	Dimensions int
	Records    []record
}

type record struct {
	ID          string
	Text        string
	Page        int
	ChunkLength int
	Source      string
}

// LocalStore keeps vectors in a vector.VectorIndex and persists the whole index under
// a directory after every add. The directory is replaced by rename, so a reader never
// sees a half-written index.
type LocalStore struct {
	path       string
	engine     string
	embedder   embedding.Embedder
	embedderID string
	logger     *zap.Logger

	writeMu sync.Mutex // serializes Add and Delete
	mu      sync.RWMutex
	index   vector.VectorIndex // nil until the first add or a successful load
	records []record
	byID    map[string]int
}

// NewLocalStore opens the index stored at path, or prepares an empty one when nothing is there.
// engine selects the vector engine for a new index; an existing index keeps the engine it was built with.
func NewLocalStore(path, engine string, embedder embedding.Embedder, opts ...StoreOption) (*LocalStore, error) {
	if path == "" {
		return nil, models.NewConfigurationError("index.path", "required for the local backend")
	}
	o := applyOptions(opts)
	s := &LocalStore{
		path:       filepath.Clean(path),
		engine:     engine,
		embedder:   embedder,
		embedderID: o.embedderID,
		logger:     o.logger,
		byID:       make(map[string]int),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LocalStore) previousPath() string { return s.path + ".previous" }

// load restores the index from disk. A leftover <path>.previous is used when an
// interrupted swap removed <path> before the staging directory was renamed in.
func (s *LocalStore) load() error {
	dir := s.path
	if _, err := os.Stat(filepath.Join(dir, manifestFile)); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat index: %w", err)
		}
		prev := s.previousPath()
		if _, perr := os.Stat(filepath.Join(prev, manifestFile)); perr != nil {
			return nil
		}
		if s.logger != nil {
			s.logger.Warn("index missing, recovering from previous copy", zap.String("path", prev))
		}
		dir = prev
	}

	m, err := readManifest(filepath.Join(dir, manifestFile))
	if err != nil {
		return err
	}
	if m.Version != manifestVersion {
		return fmt.Errorf("unsupported index format version %d", m.Version)
	}
	if m.Embedder != "" && s.embedderID != "" && m.Embedder != s.embedderID {
		return embedderMismatch("index at "+s.path, m.Embedder, s.embedderID)
	}
	idx, err := vector.NewVectorIndex(m.Engine, m.Dimensions)
	if err != nil {
		return fmt.Errorf("failed to open index built with engine %q: %w", m.Engine, err)
	}
	if err := idx.Load(filepath.Join(dir, vectorsFile)); err != nil {
		idx.Close()
		return fmt.Errorf("failed to load vectors: %w", err)
	}
	if idx.Size() != len(m.Records) {
		idx.Close()
		return fmt.Errorf("index is inconsistent: %d vectors but %d chunk records", idx.Size(), len(m.Records))
	}

	s.index = idx
	s.engine = m.Engine
	if s.embedderID == "" {
		s.embedderID = m.Embedder
	}
	s.records = m.Records
	for i, r := range m.Records {
		s.byID[r.ID] = i
	}
	if s.logger != nil {
		s.logger.Debug("loaded local index",
			zap.String("path", dir),
			zap.String("engine", m.Engine),
			zap.String("embedder", m.Embedder),
			zap.Int("chunks", len(m.Records)))
	}
	return nil
}

// Add embeds chunks, appends them to the index, and persists the full index.
// If persisting fails the chunks stay searchable in memory and the next
// successful Add writes them out.
func (s *LocalStore) Add(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

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
	vectors := make([][]float32, len(embs))
	for i, e := range embs {
		vectors[i] = utils.Normalized(e)
	}

	ids := make([]string, len(chunks))
	recs := make([]record, len(chunks))
	for i, ch := range chunks {
		id := ch.ID
		if id == "" {
			id = uuid.New().String()
		}
		ids[i] = id
		recs[i] = record{
			ID:          id,
			Text:        ch.Text,
			Page:        ch.Page,
			ChunkLength: ch.Metadata.ChunkLength,
			Source:      ch.Metadata.Source,
		}
	}

	if err := s.append(ctx, ids, vectors, recs); err != nil {
		return err
	}
	if err := s.persist(); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}
	if s.logger != nil {
		s.logger.Debug("added chunks to local index", zap.Int("chunks", len(chunks)), zap.String("path", s.path))
	}
	return nil
}

func (s *LocalStore) append(ctx context.Context, ids []string, vectors [][]float32, recs []record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		idx, err := vector.NewVectorIndex(s.engine, len(vectors[0]))
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		s.index = idx
	}
	if err := s.index.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("failed to add vectors: %w", err)
	}
	for i, r := range recs {
		s.byID[r.ID] = len(s.records) + i
	}
	s.records = append(s.records, recs...)
	return nil
}

// Delete removes the chunks with the given IDs and persists the index. Unknown IDs are ignored.
func (s *LocalStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	removed, err := s.remove(ctx, ids)
	if err != nil {
		return err
	}
	if removed == 0 {
		return nil
	}
	if err := s.persist(); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}
	if s.logger != nil {
		s.logger.Debug("removed chunks from local index", zap.Int("chunks", removed), zap.String("path", s.path))
	}
	return nil
}

func (s *LocalStore) remove(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return 0, nil
	}
	drop := make(map[string]bool, len(ids))
	targets := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.byID[id]; ok && !drop[id] {
			drop[id] = true
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return 0, nil
	}
	if err := s.index.Remove(ctx, targets); err != nil {
		return 0, fmt.Errorf("failed to remove vectors: %w", err)
	}
	kept := make([]record, 0, len(s.records)-len(targets))
	byID := make(map[string]int, len(s.records)-len(targets))
	for _, r := range s.records {
		if drop[r.ID] {
			continue
		}
		byID[r.ID] = len(kept)
		kept = append(kept, r)
	}
	s.records = kept
	s.byID = byID
	return len(targets), nil
}

// persist writes the index to a staging directory and swaps it into place.
// Callers hold writeMu, so only readers can be running.
func (s *LocalStore) persist() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parent := filepath.Dir(s.path)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("create index parent dir: %w", err)
	}
	staging := s.path + ".staging-" + uuid.New().String()
	if err := os.MkdirAll(staging, 0755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	if err := s.writeTo(staging); err != nil {
		os.RemoveAll(staging)
		return err
	}

	prev := s.previousPath()
	if err := os.RemoveAll(prev); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("remove stale previous index: %w", err)
	}
	hadCurrent := false
	if _, err := os.Stat(s.path); err == nil {
		if err := os.Rename(s.path, prev); err != nil {
			os.RemoveAll(staging)
			return fmt.Errorf("move current index aside: %w", err)
		}
		hadCurrent = true
	}
	if err := os.Rename(staging, s.path); err != nil {
		if hadCurrent {
			_ = os.Rename(prev, s.path)
		}
		os.RemoveAll(staging)
		return fmt.Errorf("swap in new index: %w", err)
	}
	if hadCurrent {
		if err := os.RemoveAll(prev); err != nil && s.logger != nil {
			s.logger.Warn("failed to remove previous index", zap.String("path", prev), zap.Error(err))
		}
	}
	return nil
}

func (s *LocalStore) writeTo(dir string) error {
	if err := s.index.Save(filepath.Join(dir, vectorsFile)); err != nil {
		return fmt.Errorf("save vectors: %w", err)
	}
	m := manifest{
		Version:    manifestVersion,
		Engine:     s.engine,
		Embedder:   s.embedderID,
		Dimensions: s.index.Dimensions(),
		Records:    s.records,
	}
	f, err := os.Create(filepath.Join(dir, manifestFile))
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(&m); err != nil {
		f.Close()
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close manifest: %w", err)
	}
	return nil
}

func readManifest(path string) (*manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()
	var m manifest
	if err := gob.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

// Search embeds query and returns up to k chunks by decreasing cosine similarity.
func (s *LocalStore) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	s.mu.RLock()
	ready := s.index != nil
	s.mu.RUnlock()
	if !ready {
		return nil, models.ErrIndexNotReady
	}
	if k <= 0 {
		return []models.SearchResult{}, nil
	}

	q, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	q = utils.Normalized(q)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return nil, models.ErrIndexNotReady
	}
	hits, err := s.index.Search(ctx, q, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	results := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		i, ok := s.byID[h.ID]
		if !ok {
			return nil, errors.New("index is inconsistent: vector without chunk record " + h.ID)
		}
		r := s.records[i]
		results = append(results, models.SearchResult{
			ID:   r.ID,
			Text: r.Text,
			Metadata: models.ChunkMetadata{
				Source:      r.Source,
				Page:        r.Page,
				ChunkLength: r.ChunkLength,
			},
			Score: clampScore(h.Score),
		})
	}
	return results, nil
}

// Count returns the number of indexed chunks.
func (s *LocalStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Backend returns "local".
func (s *LocalStore) Backend() string { return BackendLocal }

// Path returns the index directory.
func (s *LocalStore) Path() string { return s.path }

// Close releases the vector engine.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		err := s.index.Close()
		s.index = nil
		return err
	}
	return nil
}
