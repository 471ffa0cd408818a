package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/hyperjump/legaleagle/internal/vector"
)

func TestMockEmbedder_deterministicAndNormalized(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "Governing law is Delaware")
	b, _ := e.Embed(ctx, "Governing law is Delaware")
	if len(a) != 64 {
		t.Fatalf("len=%d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text should give same embedding")
		}
	}
	if n := vector.InnerProduct(a, a); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm^2 = %v, want 1", n)
	}
}

func TestMockEmbedder_lexicalOverlap(t *testing.T) {
	e := NewMockEmbedder(384)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "What is the termination notice period?")
	related, _ := e.Embed(ctx, "Termination: either party may terminate with 30 days notice.")
	unrelated, _ := e.Embed(ctx, "Invoices are payable in euros by bank transfer.")
	if vector.InnerProduct(q, related) <= vector.InnerProduct(q, unrelated) {
		t.Errorf("related text should score higher: %v vs %v",
			vector.InnerProduct(q, related), vector.InnerProduct(q, unrelated))
	}
}

func TestMockEmbedder_emptyText(t *testing.T) {
	emb, err := NewMockEmbedder(8).Embed(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range emb {
		if v != 0 {
			t.Fatalf("empty text should embed to zero vector, got %v", emb)
		}
	}
}

func TestMockEmbedder_defaultDimensions(t *testing.T) {
	if d := NewMockEmbedder(0).Dimensions(); d != 384 {
		t.Errorf("Dimensions=%d, want 384", d)
	}
}
