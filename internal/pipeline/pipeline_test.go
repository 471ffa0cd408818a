package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/legaleagle/internal/embedding"
	"github.com/hyperjump/legaleagle/internal/indexer"
	"github.com/hyperjump/legaleagle/internal/models"
	"github.com/hyperjump/legaleagle/internal/vectorstore"
)

type fakeSearcher struct {
	results []models.SearchResult
	err     error
	gotK    int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.results) {
		return f.results[:k], nil
	}
	return f.results, nil
}

type recordingGenerator struct {
	answer      string
	err         error
	calls       int
	system      string
	user        string
	temperature float64
}

func (g *recordingGenerator) Generate(ctx context.Context, system, user string, temperature float64) (string, error) {
	g.calls++
	g.system, g.user, g.temperature = system, user, temperature
	return g.answer, g.err
}

func result(text string, page int, score float64) models.SearchResult {
	return models.SearchResult{
		Text:     text,
		Metadata: models.ChunkMetadata{Source: models.SourceContract, Page: page, ChunkLength: len(text)},
		Score:    score,
	}
}

func TestQuery_noResults(t *testing.T) {
	tests := []struct {
		name     string
		searcher *fakeSearcher
	}{
		{"empty result set", &fakeSearcher{}},
		{"nothing indexed yet", &fakeSearcher{err: models.ErrIndexNotReady}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &recordingGenerator{answer: "should not be used"}
			p := New(tt.searcher, gen, 0)
			res, err := p.Query(context.Background(), "What is the governing law?", 0)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if res.Answer != NoMatchAnswer {
				t.Errorf("Answer = %q", res.Answer)
			}
			if res.Citations == nil || len(res.Citations) != 0 || res.Sources == nil || len(res.Sources) != 0 {
				t.Errorf("want empty non-nil citations and sources, got %v %v", res.Citations, res.Sources)
			}
			if gen.calls != 0 {
				t.Errorf("generator called %d times", gen.calls)
			}
		})
	}
}

func TestQuery_buildsGroundedPrompt(t *testing.T) {
	s := &fakeSearcher{results: []models.SearchResult{
		result("Payment is due within 30 days.", 3, 0.9),
		result("Late payments accrue interest.", 1, 0.8),
		result("Invoices are sent monthly.", 3, 0.7),
		result("Fees are in USD.", 2, 0.6),
	}}
	gen := &recordingGenerator{answer: "Payment is due in 30 days [Page 3]."}
	p := New(s, gen, 4)

	res, err := p.Query(context.Background(), "  When is payment due?  ", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if s.gotK != 4 {
		t.Errorf("search k = %d, want the pipeline default 4", s.gotK)
	}
	if gen.temperature != 0 {
		t.Errorf("temperature = %f, want 0", gen.temperature)
	}
	if gen.system != SystemPrompt {
		t.Error("system prompt not sent")
	}
	for _, want := range []string{"[Page X]", "cannot find this information", "ONLY"} {
		if !strings.Contains(gen.system, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	if !strings.Contains(gen.user, "Question: When is payment due?") {
		t.Errorf("user prompt missing trimmed question:\n%s", gen.user)
	}
	if !strings.Contains(gen.user, "[Excerpt 1 - Page 3]\nPayment is due within 30 days.") {
		t.Errorf("user prompt missing first excerpt:\n%s", gen.user)
	}
	if res.Answer != gen.answer {
		t.Errorf("Answer = %q", res.Answer)
	}
	if !reflect.DeepEqual(res.Citations, []int{1, 2, 3}) {
		t.Errorf("Citations = %v, want [1 2 3]", res.Citations)
	}
	if len(res.Sources) != 4 || res.Sources[0].Page != 3 || res.Sources[3].Page != 2 {
		t.Errorf("Sources not in ranked order: %+v", res.Sources)
	}
	if res.Sources[1].SimilarityScore != 0.8 {
		t.Errorf("score = %f", res.Sources[1].SimilarityScore)
	}
}

func TestQuery_topKOverride(t *testing.T) {
	s := &fakeSearcher{}
	p := New(s, &recordingGenerator{}, 0)
	if p.TopK() != DefaultTopK {
		t.Errorf("TopK() = %d, want %d", p.TopK(), DefaultTopK)
	}
	if _, err := p.Query(context.Background(), "q", 7); err != nil {
		t.Fatal(err)
	}
	if s.gotK != 7 {
		t.Errorf("search k = %d, want 7", s.gotK)
	}
}

func TestQuery_errors(t *testing.T) {
	boom := errors.New("connection refused")
	tests := []struct {
		name      string
		searcher  *fakeSearcher
		gen       *recordingGenerator
		wantStage string
	}{
		{"search fails", &fakeSearcher{err: boom}, &recordingGenerator{}, "search"},
		{"generation fails", &fakeSearcher{results: []models.SearchResult{result("x", 1, 0.5)}}, &recordingGenerator{err: boom}, "generate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.searcher, tt.gen, 3).Query(context.Background(), "question", 0)
			var re *models.RetrievalError
			if !errors.As(err, &re) {
				t.Fatalf("want RetrievalError, got %v", err)
			}
			if re.Stage != tt.wantStage || !errors.Is(err, boom) {
				t.Errorf("got stage %q err %v", re.Stage, err)
			}
			if !strings.HasPrefix(err.Error(), "query failed") {
				t.Errorf("message = %q", err.Error())
			}
			if tt.gen.calls > 1 {
				t.Errorf("generator retried: %d calls", tt.gen.calls)
			}
		})
	}

	_, err := New(&fakeSearcher{}, &recordingGenerator{}, 3).Query(context.Background(), "   ", 0)
	var cfgErr *models.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("empty question: got %v", err)
	}
}

func TestQuery_idempotent(t *testing.T) {
	s := &fakeSearcher{results: []models.SearchResult{result("a", 2, 0.9), result("b", 1, 0.5)}}
	gen := &recordingGenerator{answer: "fixed"}
	p := New(s, gen, 3)
	first, err := p.Query(context.Background(), "q", 0)
	if err != nil {
		t.Fatal(err)
	}
	firstPrompt := gen.user
	second, err := p.Query(context.Background(), "q", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) || gen.user != firstPrompt {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
}

func TestQuery_endToEnd(t *testing.T) {
	ctx := context.Background()
	pages := []models.PageText{
		{Text: "Termination: either party may terminate with 30 days notice.", PageNumber: 1},
		{Text: "Invoices: supplier invoices monthly in arrears; payment due on receipt.", PageNumber: 2},
	}
	chunker, err := indexer.NewChunker(1000, 200)
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := chunker.Chunk(pages)
	if err != nil {
		t.Fatal(err)
	}
	store, err := vectorstore.NewLocalStore(filepath.Join(t.TempDir(), "index"), "memory", embedding.NewMockEmbedder(128))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.Add(ctx, chunks); err != nil {
		t.Fatal(err)
	}

	gen := &recordingGenerator{answer: "The notice period is 30 days [Page 1]."}
	res, err := New(store, gen, 3).Query(ctx, "What is the termination notice period?", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !containsInt(res.Citations, 1) {
		t.Errorf("citations %v should include page 1", res.Citations)
	}
	found := false
	for _, s := range res.Sources {
		if strings.Contains(s.TextPreview, "30 days") {
			found = true
		}
	}
	if !found {
		t.Errorf("no source mentions 30 days: %+v", res.Sources)
	}
	if res.Sources[0].Page != 1 {
		t.Errorf("top source page = %d, want 1", res.Sources[0].Page)
	}
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
