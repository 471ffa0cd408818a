// Package models defines core data structures for contracts, chunks, and query results.
package models

import "time"

// SourceContract is the metadata source tag carried by every chunk.
const SourceContract = "contract"

// PageText is the extracted text of one non-blank page. PageNumber starts at 1.
type PageText struct {
	Text       string `json:"text"`
	PageNumber int    `json:"page_number"`
}

// ChunkMetadata is stored alongside every indexed vector.
type ChunkMetadata struct {
	Source      string `json:"source"`
	Page        int    `json:"page"`
	ChunkLength int    `json:"chunk_length"`
}

// Chunk is a bounded span of a page's text, the atomic retrieval unit.
type Chunk struct {
	ID       string        `json:"id,omitempty"`
	Text     string        `json:"text"`
	Page     int           `json:"page"`
	Metadata ChunkMetadata `json:"metadata"`
}

// Contract is a registry record for an ingested file.
type Contract struct {
	ID         string    `json:"id" db:"id"`
	Path       string    `json:"path" db:"path"`
	Title      string    `json:"title" db:"title"`
	SHA256     string    `json:"sha256" db:"sha256"`
	Pages      int       `json:"pages" db:"pages"`
	Chunks     int       `json:"chunks" db:"chunks"`
	SizeBytes  int64     `json:"size_bytes" db:"size_bytes"`
	Backend    string    `json:"backend" db:"backend"`
	IngestedAt time.Time `json:"ingested_at" db:"ingested_at"`
}

// ContractChunk records where a chunk of a contract came from.
type ContractChunk struct {
	ID          string `json:"id" db:"id"`
	ContractID  string `json:"contract_id" db:"contract_id"`
	Page        int    `json:"page" db:"page"`
	Position    int    `json:"position" db:"position"`
	ChunkLength int    `json:"chunk_length" db:"chunk_length"`
}
