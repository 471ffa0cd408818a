package vector

import (
	"context"
	"errors"
	"testing"
)

func TestNewVectorIndex_Memory(t *testing.T) {
	for _, name := range []string{"memory", ""} {
		idx, err := NewVectorIndex(name, 3)
		if err != nil {
			t.Fatalf("NewVectorIndex(%q): %v", name, err)
		}
		if err := idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 0, 0}}); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if idx.Size() != 1 {
			t.Errorf("Size=%d, want 1", idx.Size())
		}
		_ = idx.Close()
	}
}

func TestNewVectorIndex_Unknown(t *testing.T) {
	if _, err := NewVectorIndex("hnsw", 3); err == nil {
		t.Error("expected error for unknown index type")
	}
}

func TestNewVectorIndex_InvalidDimension(t *testing.T) {
	idx, err := NewVectorIndex("memory", 0)
	if err == nil {
		t.Error("expected error for zero dimension")
	}
	if idx != nil {
		t.Error("failed construction must return a nil interface")
	}
}

func TestNewVectorIndex_FAISS(t *testing.T) {
	if !IsFAISSAvailable() {
		_, err := NewVectorIndex("faiss", 3)
		if !errors.Is(err, ErrFAISSUnavailable) {
			t.Errorf("expected ErrFAISSUnavailable, got %v", err)
		}
		return
	}
	idx, err := NewVectorIndex("faiss", 3)
	if err != nil {
		t.Fatalf("NewVectorIndex(faiss): %v", err)
	}
	defer idx.Close()
	if err := idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size=%d, want 1", idx.Size())
	}
}
