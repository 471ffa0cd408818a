package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hyperjump/legaleagle/internal/embedding"
	"github.com/hyperjump/legaleagle/internal/extract"
	"github.com/hyperjump/legaleagle/internal/fileid"
	"github.com/hyperjump/legaleagle/internal/models"
	"github.com/hyperjump/legaleagle/internal/storage"
	"github.com/hyperjump/legaleagle/internal/vectorstore"
	"github.com/xuri/excelize/v2"
)

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{".md", []string{".txt", ".md"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
		{".pdf", []string{"pdf"}, true},
	}
	for _, tt := range tests {
		got := extensionAllowed(tt.ext, tt.allowed)
		if got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

type testEnv struct {
	idx      *Indexer
	registry *storage.SQLiteRegistry
	store    *vectorstore.LocalStore
	docs     string
}

func newTestEnv(t *testing.T, opts ...IndexerOption) *testEnv {
	t.Helper()
	state := t.TempDir()
	registry, err := storage.NewSQLiteRegistry(filepath.Join(state, "legaleagle.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = registry.Close() })
	store, err := vectorstore.NewLocalStore(filepath.Join(state, "index"), "memory", embedding.NewMockEmbedder(32))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	chunker, err := NewChunker(40, 10)
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{
		idx:      NewIndexer(registry, store, chunker, extract.NewExtractor(), opts...),
		registry: registry,
		store:    store,
		docs:     t.TempDir(),
	}
}

func (e *testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(e.docs, name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return p
}

func (e *testEnv) count(t *testing.T) int {
	t.Helper()
	n, err := e.store.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func mustAbs(path string) string {
	a, err := filepath.Abs(path)
	if err != nil {
		panic(err)
	}
	return a
}

func TestIngest_recordsAndSkipsUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.write(t, "msa.txt", "Either party may terminate on thirty days notice.\fPayment is due within sixty days of invoice.")

	res, err := env.idx.Ingest(ctx, []string{p}, false)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.ChunkCount == 0 || res.ChunkCount != env.count(t) {
		t.Fatalf("ChunkCount = %d, store has %d", res.ChunkCount, env.count(t))
	}
	if len(res.Files) != 1 || res.Files[0].Pages != 2 || res.Files[0].Skipped {
		t.Errorf("file result = %+v", res.Files)
	}

	id := fileid.ContractID(mustAbs(p))
	c, err := env.registry.GetContract(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if c.Title != "msa.txt" || c.Pages != 2 || c.Chunks != res.ChunkCount || c.Backend != "local" {
		t.Errorf("contract record = %+v", c)
	}
	recs, _ := env.registry.GetChunksByContractID(ctx, id)
	if len(recs) != res.ChunkCount || recs[0].Page != 1 || recs[len(recs)-1].Page != 2 {
		t.Errorf("chunk records = %d, first page %d", len(recs), recs[0].Page)
	}

	// Unchanged content is skipped.
	before := env.count(t)
	res, err = env.idx.Ingest(ctx, []string{p}, false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Files[0].Skipped || res.ChunkCount != 0 || env.count(t) != before {
		t.Errorf("expected skip, got %+v (store %d -> %d)", res, before, env.count(t))
	}

	// force re-ingests and replaces the earlier chunks.
	res, err = env.idx.Ingest(ctx, []string{p}, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Files[0].Skipped || env.count(t) != before {
		t.Errorf("force: skipped=%v store=%d want %d", res.Files[0].Skipped, env.count(t), before)
	}
	recs, _ = env.registry.GetChunksByContractID(ctx, id)
	if len(recs) != before {
		t.Errorf("registry should hold only the latest chunk records, got %d", len(recs))
	}

	env.assertOnlyCurrentChunks(t, id, "Either party may terminate on thirty days notice.")
}

// assertOnlyCurrentChunks checks that every search hit is a chunk the registry lists for contractID.
func (e *testEnv) assertOnlyCurrentChunks(t *testing.T, contractID, query string) {
	t.Helper()
	ctx := context.Background()
	recs, err := e.registry.GetChunksByContractID(ctx, contractID)
	if err != nil {
		t.Fatal(err)
	}
	current := make(map[string]bool, len(recs))
	for _, r := range recs {
		current[r.ID] = true
	}
	results, err := e.store.Search(ctx, query, e.count(t)+5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(recs) {
		t.Errorf("search returned %d chunks, registry lists %d", len(results), len(recs))
	}
	for _, r := range results {
		if !current[r.ID] {
			t.Errorf("chunk %s from an earlier version is still searchable: %q", r.ID, r.Text)
		}
	}
}

func TestIngest_changedContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.write(t, "nda.md", "Confidential information stays confidential.")
	if _, err := env.idx.Ingest(ctx, []string{p}, false); err != nil {
		t.Fatal(err)
	}
	env.write(t, "nda.md", "Confidential information stays confidential for five years.")
	res, err := env.idx.Ingest(ctx, []string{p}, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Files[0].Skipped {
		t.Error("changed file should not be skipped")
	}
	c, _ := env.registry.GetContract(ctx, fileid.ContractID(mustAbs(p)))
	if c.SHA256 != fileid.ContentHash([]byte("Confidential information stays confidential for five years.")) {
		t.Error("registry hash not updated")
	}
	if env.count(t) != res.ChunkCount {
		t.Errorf("store has %d chunks, want only the %d of the new version", env.count(t), res.ChunkCount)
	}
	env.assertOnlyCurrentChunks(t, c.ID, "Confidential information stays confidential.")
}

type failingDeleteStore struct {
	vectorstore.Store
}

func (failingDeleteStore) Delete(ctx context.Context, ids []string) error {
	return errors.New("delete refused")
}

func TestIngest_reingestDeleteFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.write(t, "sow.txt", "Deliverables are due on the first of each month.")
	if _, err := env.idx.Ingest(ctx, []string{p}, false); err != nil {
		t.Fatal(err)
	}
	env.idx.store = failingDeleteStore{Store: env.store}

	_, err := env.idx.Ingest(ctx, []string{p}, true)
	var ingErr *models.IngestionError
	if !errors.As(err, &ingErr) || ingErr.Stage != StageIndex {
		t.Fatalf("got %v, want an index-stage ingestion error", err)
	}
}

func TestIngest_failuresDoNotStopOthers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	good := env.write(t, "good.txt", "Governing law is the State of New York.")
	blank := env.write(t, "blank.txt", "  \n\f \t ")
	code := env.write(t, "main.go", "package main")
	missing := filepath.Join(env.docs, "missing.pdf")

	res, err := env.idx.Ingest(ctx, []string{blank, good, missing, code}, false)
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(res.Files) != 4 || res.Failed() != 3 {
		t.Fatalf("files = %+v", res.Files)
	}
	if res.ChunkCount == 0 || res.Files[1].Error != "" {
		t.Errorf("good file should be ingested: %+v", res.Files[1])
	}

	stages := map[string]string{}
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var ie *models.IngestionError
		if !errors.As(e, &ie) {
			t.Fatalf("not an IngestionError: %v", e)
		}
		stages[filepath.Base(ie.File)] = ie.Stage
	}
	want := map[string]string{"blank.txt": StageExtract, "missing.pdf": StageStat, "main.go": StageStat}
	for file, stage := range want {
		if stages[file] != stage {
			t.Errorf("%s: stage %q, want %q", file, stages[file], stage)
		}
	}
}

func TestIngest_excel(t *testing.T) {
	env := newTestEnv(t)
	fPath := filepath.Join(env.docs, "schedule.xlsx")
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Service fee")
	f.SetCellValue("Sheet1", "B1", "1000 USD")
	if _, err := f.NewSheet("Rates"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Rates", "A1", "Hourly rate 150 USD")
	if err := f.SaveAs(fPath); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	res, err := env.idx.Ingest(context.Background(), []string{fPath}, false)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Files[0].Pages != 2 {
		t.Errorf("Pages = %d, want one per sheet", res.Files[0].Pages)
	}
	results, err := env.store.Search(context.Background(), "hourly rate", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Metadata.Page != 2 {
		t.Errorf("search = %+v, want the Rates sheet as page 2", results)
	}
}

func TestIngestDirectory(t *testing.T) {
	env := newTestEnv(t, WithExtensions([]string{".txt", ".md"}))
	ctx := context.Background()
	env.write(t, "a.txt", "file a")
	env.write(t, "b.md", "file b")
	env.write(t, "sub/c.txt", "file c")
	env.write(t, "skip.xyz", "skip")
	env.write(t, "skip.pdf", "not allowed by the configured extensions")

	res, err := env.idx.IngestDirectory(ctx, env.docs, false)
	if err != nil {
		t.Fatalf("IngestDirectory: %v", err)
	}
	if len(res.Files) != 3 {
		t.Errorf("ingested %d files, want 3: %+v", len(res.Files), res.Files)
	}
	n, _ := env.registry.CountContracts(ctx)
	if n != 3 {
		t.Errorf("CountContracts = %d", n)
	}

	_, err = env.idx.IngestDirectory(ctx, filepath.Join(env.docs, "a.txt"), false)
	var ie *models.IngestionError
	if !errors.As(err, &ie) || ie.Stage != StageStat {
		t.Errorf("file passed as directory: got %v", err)
	}
}

func TestIngest_concurrentCallsAreSerialized(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	total := make(chan int, 8)
	for i := 0; i < 8; i++ {
		p := env.write(t, fmt.Sprintf("c%d.txt", i), fmt.Sprintf("Clause %d: the vendor shall deliver goods.", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.idx.Ingest(ctx, []string{p}, false)
			if err != nil {
				t.Error(err)
				return
			}
			total <- res.ChunkCount
		}()
	}
	wg.Wait()
	close(total)
	sum := 0
	for n := range total {
		sum += n
	}
	if sum != env.count(t) {
		t.Errorf("sum of ChunkCount = %d, store has %d", sum, env.count(t))
	}
	n, _ := env.registry.CountContracts(context.Background())
	if n != 8 {
		t.Errorf("CountContracts = %d, want 8", n)
	}
}

func TestNormalizePages(t *testing.T) {
	pages := []models.PageText{
		{Text: "Section  1.\r\nTerm", PageNumber: 1},
		{Text: " \t ", PageNumber: 2},
		{Text: "Section 2", PageNumber: 3},
	}
	got := normalizePages(pages)
	if len(got) != 2 || got[0].Text != "Section 1.\nTerm" || got[1].PageNumber != 3 {
		t.Errorf("normalizePages = %+v", got)
	}
}
