package models

// SearchResult is a single similarity hit. Higher Score means more relevant.
type SearchResult struct {
	ID       string        `json:"id,omitempty"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
}

// Source is the audit trail entry for one retrieved chunk.
type Source struct {
	Page            int     `json:"page"`
	TextPreview     string  `json:"text_preview"`
	SimilarityScore float64 `json:"similarity_score"`
}

// QueryResult is the answer to one question.
type QueryResult struct {
	Question  string   `json:"question,omitempty"`
	Answer    string   `json:"answer"`
	Citations []int    `json:"citations"`
	Sources   []Source `json:"sources"`
}

// FileResult reports the outcome of ingesting one file.
type FileResult struct {
	Path       string `json:"path"`
	ContractID string `json:"contract_id,omitempty"`
	Pages      int    `json:"pages"`
	Chunks     int    `json:"chunks"`
	Skipped    bool   `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
}

// IngestResult is the outcome of an ingestion call.
type IngestResult struct {
	ChunkCount int          `json:"chunk_count"`
	Files      []FileResult `json:"files"`
}

// Failed returns the number of files that could not be ingested.
func (r *IngestResult) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Error != "" {
			n++
		}
	}
	return n
}
