// Package vector provides the low-level vector engines behind the local contract index.
package vector

import "context"

// VectorIndex stores id-tagged vectors and answers inner-product queries.
// Vectors are expected to be L2-normalized, so scores are cosine similarities.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Remove(ctx context.Context, ids []string) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Close() error
}

// VectorResult is a single vector search hit. ID is the chunk ID.
type VectorResult struct {
	ID    string
	Score float64 // inner product; cosine similarity for normalized vectors
}
