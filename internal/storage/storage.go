// Package storage is the registry of ingested contracts. It records what was
// ingested and when; the chunk text itself lives in the vector store.
package storage

import (
	"context"

	"github.com/hyperjump/legaleagle/internal/models"
)

// Registry defines contract and chunk bookkeeping operations.
type Registry interface {
	// SaveContract inserts c, or replaces the record with the same ID.
	SaveContract(ctx context.Context, c *models.Contract) error
	// GetContract returns models.ErrNotFound (wrapped) when id is unknown.
	GetContract(ctx context.Context, id string) (*models.Contract, error)
	ListContracts(ctx context.Context, offset, limit int) ([]*models.Contract, error)

	BatchCreateChunks(ctx context.Context, chunks []*models.ContractChunk) error
	GetChunksByContractID(ctx context.Context, contractID string) ([]*models.ContractChunk, error)
	DeleteChunksByContractID(ctx context.Context, contractID string) error

	CountContracts(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
