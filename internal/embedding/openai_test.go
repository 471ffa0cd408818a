package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/legaleagle/internal/models"
)

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	var gotInput []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization=%q", got)
		}
		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		gotInput = body.Input
		w.Header().Set("Content-Type", "application/json")
		// Out of order on purpose; the embedder must place vectors by index.
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small",
			"data":[
				{"object":"embedding","index":1,"embedding":[0,3,4]},
				{"object":"embedding","index":0,"embedding":[2,0,0]}
			],
			"usage":{"prompt_tokens":4,"total_tokens":4}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("sk-test", srv.URL, "", 3)
	if err != nil {
		t.Fatal(err)
	}
	embs, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(gotInput) != 2 || gotInput[0] != "first" {
		t.Errorf("request input: %v", gotInput)
	}
	if len(embs) != 2 {
		t.Fatalf("got %d embeddings", len(embs))
	}
	want := [][]float32{{1, 0, 0}, {0, 0.6, 0.8}}
	for i := range want {
		for j := range want[i] {
			if math.Abs(float64(embs[i][j]-want[i][j])) > 1e-6 {
				t.Errorf("embs[%d] = %v, want %v", i, embs[i], want[i])
				break
			}
		}
	}
}

func TestOpenAIEmbedder_requiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("", "", "", 3)
	var ce *models.ConfigurationError
	if !errors.As(err, &ce) || ce.Field != "embedding.api_key" {
		t.Errorf("expected embedding.api_key ConfigurationError, got %v", err)
	}
}

func TestOpenAIEmbedder_serverErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("sk-test", srv.URL, "", 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "notice period"); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected exactly one attempt, got %d", calls)
	}
}
