package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/nkapre/docqa/internal/config"
	"github.com/nkapre/docqa/internal/domain/ragmodel"
	"github.com/nkapre/docqa/internal/rag/embedding"
	"github.com/nkapre/docqa/internal/rag/vectorindex"
	"github.com/nkapre/docqa/pkg/logger_i"
)

const contextSeparator = "\n\n---\n\n"

// Result is what the synthesizer consumes. NoContext is an explicit
// signal, not an empty string: it lets the synthesizer refuse without
// spending a generation call.
type Result struct {
	Retrieval ragmodel.RetrievalResult
	Context   string
	NoContext bool
}

type Retriever struct {
	embedder        embedding.Embedder
	index           vectorindex.Index
	topK            int
	minScore        float64
	maxContextChars int
	logger          *logger_i.Logger
}

type Option func(*Retriever)

func WithLimits(topK int, minScore float64, maxContextChars int) Option {
	return func(r *Retriever) {
		r.topK = topK
		r.minScore = minScore
		r.maxContextChars = maxContextChars
	}
}

func New(embedder embedding.Embedder, index vectorindex.Index, opts ...Option) *Retriever {
	r := &Retriever{
		embedder:        embedder,
		index:           index,
		topK:            config.RetrievalTopK,
		minScore:        config.RetrievalMinScore,
		maxContextChars: config.MaxContextChars,
		logger:          logger_i.NewLogger("Retriever"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve embeds the query, searches the index and assembles the context
// bundle. Chunks enter the context in ranked order, each prefixed with its
// source document name; when the budget runs out the lowest-ranked chunks
// are dropped whole, never cut in the middle.
func (r *Retriever) Retrieve(ctx context.Context, query string) (Result, error) {
	queryVector, err := r.embedder.GetEmbedding(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("embedding query: %w", err)
	}
	return r.RetrieveWith(ctx, queryVector)
}

// RetrieveWith is Retrieve with an already-embedded query, so callers that
// needed the vector for something else (the answer cache) embed only once.
func (r *Retriever) RetrieveWith(ctx context.Context, queryVector []float32) (Result, error) {
	log := r.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	retrieval, err := r.index.Search(ctx, queryVector, r.topK, r.minScore)
	if err != nil {
		return Result{}, fmt.Errorf("searching index: %w", err)
	}

	if len(retrieval.Matches) == 0 {
		log.Debug("no chunk cleared the relevance threshold", "minScore", r.minScore)
		return Result{NoContext: true}, nil
	}

	included, contextText := r.buildContext(retrieval.Matches)
	if len(included) == 0 {
		//every chunk was too large for the budget
		return Result{NoContext: true}, nil
	}

	log.Debug("retrieval complete", "candidates", len(retrieval.Matches), "included", len(included))
	return Result{
		Retrieval: ragmodel.RetrievalResult{Matches: included},
		Context:   contextText,
	}, nil
}

// RetrieveVector is the cache path: search with an already-embedded query.
func (r *Retriever) RetrieveVector(ctx context.Context, queryVector []float32, topK int) (ragmodel.RetrievalResult, error) {
	return r.index.Search(ctx, queryVector, topK, r.minScore)
}

func (r *Retriever) buildContext(matches []ragmodel.ScoredChunk) ([]ragmodel.ScoredChunk, string) {
	var sb strings.Builder
	var included []ragmodel.ScoredChunk

	for _, m := range matches {
		block := fmt.Sprintf("Document: %s\nContent: %s", m.DocName, m.Chunk.Text)
		projected := sb.Len() + len(block)
		if len(included) > 0 {
			projected += len(contextSeparator)
		}
		if projected > r.maxContextChars {
			break //ranked order, everything after this is lower scored
		}
		if len(included) > 0 {
			sb.WriteString(contextSeparator)
		}
		sb.WriteString(block)
		included = append(included, m)
	}
	return included, sb.String()
}
