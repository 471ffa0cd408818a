package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/legaleagle/internal/config"
	"github.com/hyperjump/legaleagle/internal/models"
)

func TestOpenAIGenerator_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if temp, ok := body["temperature"]; !ok || temp.(float64) != 0 {
			t.Errorf("temperature should be sent as 0, got %v (present=%v)", temp, ok)
		}
		if body["model"] != "llama-3.3-70b-versatile" {
			t.Errorf("model=%v", body["model"])
		}
		msgs, _ := body["messages"].([]interface{})
		if len(msgs) != 2 {
			t.Fatalf("expected system+user messages, got %d", len(msgs))
		}
		if role := msgs[0].(map[string]interface{})["role"]; role != "system" {
			t.Errorf("first message role=%v", role)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"llama-3.3-70b-versatile",
			"choices":[{"index":0,"finish_reason":"stop","logprobs":null,
				"message":{"role":"assistant","content":"Either party may terminate with 30 days notice [Page 1]."}}],
			"usage":{"prompt_tokens":10,"completion_tokens":10,"total_tokens":20}}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator("gsk-test", srv.URL, "llama-3.3-70b-versatile", 5*time.Second)
	got, err := g.Generate(context.Background(), "system", "user", 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Either party may terminate with 30 days notice [Page 1]." {
		t.Errorf("got %q", got)
	}
}

func TestOpenAIGenerator_serverErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator("gsk-test", srv.URL, "m", time.Second)
	if _, err := g.Generate(context.Background(), "s", "u", 0); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected exactly one attempt, got %d", calls)
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		cfg   config.GenerationConfig
		field string
	}{
		{"groq without key", config.GenerationConfig{Provider: "groq"}, "generation.api_key"},
		{"gemini without key", config.GenerationConfig{Provider: "gemini"}, "generation.api_key"},
		{"unknown provider", config.GenerationConfig{Provider: "llamacpp", APIKey: "k"}, "generation.provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(ctx, tt.cfg)
			var ce *models.ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("field=%q, want %q", ce.Field, tt.field)
			}
		})
	}

	g, err := New(ctx, config.GenerationConfig{Provider: "groq", APIKey: "k", BaseURL: config.DefaultGroqBaseURL, Model: config.DefaultGroqModel})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g.(*OpenAIGenerator); !ok {
		t.Errorf("groq should use OpenAIGenerator, got %T", g)
	}
}
