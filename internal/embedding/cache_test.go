package embedding

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Get("a")               // a is now most recent
	c.Set("c", []float32{6}) // evicts b
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len=%d, want 2", c.Len())
	}
}

// countingEmbedder records how many texts reach the provider.
type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embs[0], nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.calls += len(texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (c *countingEmbedder) Dimensions() int { return 1 }
func (c *countingEmbedder) Close() error    { return nil }

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 10)

	if _, err := c.Embed(ctx, "notice"); err != nil {
		t.Fatal(err)
	}
	got, err := c.EmbedBatch(ctx, []string{"notice", "termination", "notice"})
	if err != nil {
		t.Fatal(err)
	}
	want := [][]float32{{6}, {11}, {6}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	// Only "termination" was a miss in the batch.
	if inner.calls != 2 {
		t.Errorf("inner calls=%d, want 2", inner.calls)
	}
	if _, err := c.EmbedBatch(ctx, []string{"notice", "termination"}); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("fully cached batch should not reach provider, calls=%d", inner.calls)
	}
	if c.Dimensions() != 1 {
		t.Errorf("Dimensions=%d", c.Dimensions())
	}
}

func TestCachedEmbedder_errorNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("rate limited")}
	c := NewCachedEmbedder(inner, 10)
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	inner.err = nil
	if _, err := c.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("retry after error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls=%d, want 1", inner.calls)
	}
}
