// Package indexer turns contract files into page-aware chunks and feeds them to the vector store.
package indexer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/legaleagle/internal/config"
	"github.com/hyperjump/legaleagle/internal/models"
	"github.com/tmc/langchaingo/textsplitter"
)

// chunkSeparators are tried in order: paragraph, line, sentence, word, character.
var chunkSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits page text into overlapping chunks of at most chunkSize characters.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	splitter     textsplitter.RecursiveCharacter
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// It returns a *models.ConfigurationError when overlap is not smaller than size.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if err := config.ValidateChunking(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(chunkSeparators),
		),
	}, nil
}

// Chunk splits each page in order. Every chunk carries the page number of the page it came from.
func (c *Chunker) Chunk(pages []models.PageText) ([]models.Chunk, error) {
	chunks := make([]models.Chunk, 0, len(pages))
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		parts, err := c.splitPage(page.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to split page %d: %w", page.PageNumber, err)
		}
		for _, part := range parts {
			chunks = append(chunks, newChunk(part, page.PageNumber))
		}
	}
	return chunks, nil
}

func (c *Chunker) splitPage(text string) ([]string, error) {
	// A page that already fits is one chunk, untouched.
	if utf8.RuneCountInString(text) <= c.chunkSize {
		return []string{strings.TrimSpace(text)}, nil
	}
	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func newChunk(text string, page int) models.Chunk {
	return models.Chunk{
		Text: text,
		Page: page,
		Metadata: models.ChunkMetadata{
			Source:      models.SourceContract,
			Page:        page,
			ChunkLength: utf8.RuneCountInString(text),
		},
	}
}
