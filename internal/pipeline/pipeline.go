// Package pipeline answers questions about ingested contracts: it retrieves excerpts,
// builds a grounded prompt, and returns the answer with page citations.
package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/hyperjump/legaleagle/internal/models"
	"go.uber.org/zap"
)

// DefaultTopK is the number of excerpts retrieved when the caller does not ask for a count.
const DefaultTopK = 3

// Temperature is fixed at zero so the same question over the same index gets the same answer.
const Temperature = 0.0

// NoMatchAnswer is returned, without calling the generator, when retrieval finds nothing.
const NoMatchAnswer = "I couldn't find any relevant information in the contract to answer your question."

// Searcher is the part of the vector store the pipeline needs.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]models.SearchResult, error)
}

// Generator produces a completion for a system directive and a user turn.
type Generator interface {
	Generate(ctx context.Context, system, user string, temperature float64) (string, error)
}

// Pipeline runs retrieval then generation for one question at a time. It holds no
// per-query state, so one Pipeline can serve concurrent queries.
type Pipeline struct {
	searcher  Searcher
	generator Generator
	topK      int
	logger    *zap.Logger // optional
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline. topK ≤ 0 means DefaultTopK.
func New(searcher Searcher, generator Generator, topK int, opts ...PipelineOption) *Pipeline {
	if topK <= 0 {
		topK = DefaultTopK
	}
	p := &Pipeline{searcher: searcher, generator: generator, topK: topK}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TopK returns the default excerpt count.
func (p *Pipeline) TopK() int { return p.topK }

// Query answers question from the top topK excerpts. topK ≤ 0 uses the pipeline default.
//
// A search that finds nothing, including one against an index with nothing added yet,
// yields NoMatchAnswer with empty citations and sources. Search and generation
// failures are returned as *models.RetrievalError.
func (p *Pipeline) Query(ctx context.Context, question string, topK int) (*models.QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, models.NewConfigurationError("question", "must not be empty")
	}
	if topK <= 0 {
		topK = p.topK
	}

	results, err := p.searcher.Search(ctx, question, topK)
	if err != nil {
		if !errors.Is(err, models.ErrIndexNotReady) {
			return nil, &models.RetrievalError{Stage: "search", Err: err}
		}
		if p.logger != nil {
			p.logger.Debug("query against empty index", zap.String("question", question))
		}
		results = nil
	}
	if len(results) == 0 {
		return &models.QueryResult{
			Question:  question,
			Answer:    NoMatchAnswer,
			Citations: []int{},
			Sources:   []models.Source{},
		}, nil
	}

	user := BuildUserPrompt(BuildContext(results), question)
	answer, err := p.generator.Generate(ctx, SystemPrompt, user, Temperature)
	if err != nil {
		return nil, &models.RetrievalError{Stage: "generate", Err: err}
	}
	if p.logger != nil {
		p.logger.Debug("answered question",
			zap.Int("excerpts", len(results)),
			zap.Int("answer_len", len(answer)))
	}
	return &models.QueryResult{
		Question:  question,
		Answer:    answer,
		Citations: Citations(results),
		Sources:   Sources(results),
	}, nil
}
