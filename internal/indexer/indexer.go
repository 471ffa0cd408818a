package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hyperjump/legaleagle/internal/extract"
	"github.com/hyperjump/legaleagle/internal/fileid"
	"github.com/hyperjump/legaleagle/internal/models"
	"github.com/hyperjump/legaleagle/internal/storage"
	"github.com/hyperjump/legaleagle/internal/vectorstore"
	"go.uber.org/zap"
)

// Ingestion stages reported in models.IngestionError.
const (
	StageStat     = "stat"
	StageRead     = "read"
	StageExtract  = "extract"
	StageChunk    = "chunk"
	StageIndex    = "index"
	StageRegistry = "registry"
)

// Indexer ingests contract files: extract, chunk, add to the vector store, record in the registry.
// Ingest calls are serialized, so the vector store only ever has one writer.
type Indexer struct {
	registry   storage.Registry
	store      vectorstore.Store
	chunker    *Chunker
	extractor  *extract.Extractor
	extensions []string
	mu         sync.Mutex
	logger     *zap.Logger // optional; when set, logs debug events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (file ingested, file skipped, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithExtensions limits ingestion to files with these extensions. Extensions the
// extractor cannot read are always rejected.
func WithExtensions(exts []string) IndexerOption {
	return func(idx *Indexer) { idx.extensions = exts }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	registry storage.Registry,
	store vectorstore.Store,
	chunker *Chunker,
	extractor *extract.Extractor,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		registry:  registry,
		store:     store,
		chunker:   chunker,
		extractor: extractor,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Ingest ingests each path. Directories are walked for files with an allowed extension.
// A failing file does not stop the others: the result lists every file, and the returned
// error joins one *models.IngestionError per failed file.
// Files whose content hash matches the registry are skipped unless force is set.
func (idx *Indexer) Ingest(ctx context.Context, paths []string, force bool) (*models.IngestResult, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	result := &models.IngestResult{Files: []models.FileResult{}}
	var errs []error
	for _, p := range idx.expand(paths, &errs, result) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		fr, err := idx.ingestFile(ctx, p, force)
		if err != nil {
			fr.Error = err.Error()
			errs = append(errs, err)
			if idx.logger != nil {
				idx.logger.Warn("ingest failed", zap.String("path", p), zap.Error(err))
			}
		}
		result.ChunkCount += fr.Chunks
		result.Files = append(result.Files, fr)
	}
	return result, errors.Join(errs...)
}

// IngestDirectory ingests every allowed file under dir.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string, force bool) (*models.IngestResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &models.IngestionError{File: dir, Stage: StageStat, Err: err}
	}
	if !info.IsDir() {
		return nil, &models.IngestionError{File: dir, Stage: StageStat, Err: errors.New("not a directory")}
	}
	return idx.Ingest(ctx, []string{dir}, force)
}

// expand replaces directories with the allowed files under them, in lexical order.
// Walk failures are recorded against the directory.
func (idx *Indexer) expand(paths []string, errs *[]error, result *models.IngestResult) []string {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			files = append(files, p)
			continue
		}
		var found []string
		walkErr := filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !idx.allowed(filepath.Ext(path)) {
				return nil
			}
			// Resolve symlinks so only regular files are ingested.
			if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
				found = append(found, path)
			}
			return nil
		})
		if walkErr != nil {
			ierr := &models.IngestionError{File: p, Stage: StageStat, Err: walkErr}
			*errs = append(*errs, ierr)
			result.Files = append(result.Files, models.FileResult{Path: p, Error: ierr.Error()})
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files
}

func (idx *Indexer) ingestFile(ctx context.Context, path string, force bool) (models.FileResult, error) {
	fr := models.FileResult{Path: path}
	fail := func(stage string, err error) (models.FileResult, error) {
		return fr, &models.IngestionError{File: fr.Path, Stage: stage, Err: err}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fail(StageStat, err)
	}
	fr.Path = absPath
	info, err := os.Stat(absPath)
	if err != nil {
		return fail(StageStat, err)
	}
	if !info.Mode().IsRegular() {
		return fail(StageStat, errors.New("not a regular file"))
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if !idx.allowed(ext) {
		return fail(StageStat, fmt.Errorf("extension %q not allowed", ext))
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return fail(StageRead, err)
	}
	contractID := fileid.ContractID(absPath)
	hash := fileid.ContentHash(content)
	fr.ContractID = contractID

	existing, err := idx.registry.GetContract(ctx, contractID)
	reingest := false
	switch {
	case err == nil && existing.SHA256 == hash && !force:
		fr.Skipped = true
		fr.Pages = existing.Pages
		if idx.logger != nil {
			idx.logger.Debug("indexer skipping unchanged file", zap.String("path", absPath))
		}
		return fr, nil
	case err == nil:
		reingest = true
	case !errors.Is(err, models.ErrNotFound):
		return fail(StageRegistry, err)
	}

	pages, err := idx.extractor.ExtractPagesBytes(content, ext)
	if err != nil {
		return fail(StageExtract, err)
	}
	pages = normalizePages(pages)
	if len(pages) == 0 {
		return fail(StageExtract, errors.New("no text found"))
	}
	fr.Pages = len(pages)

	chunks, err := idx.chunker.Chunk(pages)
	if err != nil {
		return fail(StageChunk, err)
	}
	if len(chunks) == 0 {
		return fail(StageChunk, errors.New("no chunks produced"))
	}
	for i := range chunks {
		chunks[i].ID = uuid.New().String()
	}

	if reingest {
		if err := idx.dropChunks(ctx, contractID); err != nil {
			return fail(StageIndex, err)
		}
		if idx.logger != nil {
			idx.logger.Info("re-ingesting contract", zap.String("path", absPath), zap.Bool("force", force))
		}
	}
	if err := idx.store.Add(ctx, chunks); err != nil {
		return fail(StageIndex, err)
	}
	fr.Chunks = len(chunks)

	if err := idx.record(ctx, absPath, contractID, hash, info.Size(), len(pages), chunks); err != nil {
		return fr, &models.IngestionError{File: absPath, Stage: StageRegistry, Err: err}
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer file ingested",
			zap.String("path", absPath),
			zap.String("contract_id", contractID),
			zap.Int("pages", len(pages)),
			zap.Int("chunks", len(chunks)))
	}
	return fr, nil
}

// dropChunks removes the chunks of the previously ingested version of a contract from the store.
// The registry rows are replaced by record once the new chunks are in.
func (idx *Indexer) dropChunks(ctx context.Context, contractID string) error {
	prior, err := idx.registry.GetChunksByContractID(ctx, contractID)
	if err != nil {
		return fmt.Errorf("failed to list previous chunks: %w", err)
	}
	if len(prior) == 0 {
		return nil
	}
	ids := make([]string, len(prior))
	for i, ch := range prior {
		ids[i] = ch.ID
	}
	if err := idx.store.Delete(ctx, ids); err != nil {
		return fmt.Errorf("failed to remove previous chunks: %w", err)
	}
	return nil
}

func (idx *Indexer) record(ctx context.Context, absPath, contractID, hash string, size int64, pages int, chunks []models.Chunk) error {
	c := &models.Contract{
		ID:        contractID,
		Path:      absPath,
		Title:     filepath.Base(absPath),
		SHA256:    hash,
		Pages:     pages,
		Chunks:    len(chunks),
		SizeBytes: size,
		Backend:   idx.store.Backend(),
	}
	if err := idx.registry.SaveContract(ctx, c); err != nil {
		return err
	}
	if err := idx.registry.DeleteChunksByContractID(ctx, contractID); err != nil {
		return fmt.Errorf("failed to clear chunk records: %w", err)
	}
	records := make([]*models.ContractChunk, len(chunks))
	for i, ch := range chunks {
		records[i] = &models.ContractChunk{
			ID:          ch.ID,
			ContractID:  contractID,
			Page:        ch.Page,
			Position:    i,
			ChunkLength: ch.Metadata.ChunkLength,
		}
	}
	return idx.registry.BatchCreateChunks(ctx, records)
}

// normalizePages runs Preprocess on every page and drops pages left blank.
func normalizePages(pages []models.PageText) []models.PageText {
	out := make([]models.PageText, 0, len(pages))
	for _, p := range pages {
		text := Preprocess(p.Text)
		if text == "" {
			continue
		}
		out = append(out, models.PageText{Text: text, PageNumber: p.PageNumber})
	}
	return out
}

func (idx *Indexer) allowed(ext string) bool {
	if !extract.Supported(ext) {
		return false
	}
	return len(idx.extensions) == 0 || extensionAllowed(ext, idx.extensions)
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
