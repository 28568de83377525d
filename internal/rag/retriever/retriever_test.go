package retriever

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nkapre/docqa/internal/domain/ragmodel"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	return s.vector, s.err
}

func (s *stubEmbedder) BatchEmbedding(ctx context.Context, chunks []string, isHugeDataSet bool) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (s *stubEmbedder) Dimension() int { return len(s.vector) }

func (s *stubEmbedder) ModelID() string { return "stub-embed-v1" }

type stubIndex struct {
	matches   []ragmodel.ScoredChunk
	searchErr error
}

func (s *stubIndex) Insert(ctx context.Context, entry ragmodel.IndexEntry) error { return nil }

func (s *stubIndex) InsertBatch(ctx context.Context, entries []ragmodel.IndexEntry) error {
	return nil
}

func (s *stubIndex) Remove(ctx context.Context, docId string) error { return nil }

func (s *stubIndex) Search(ctx context.Context, vector []float32, k int, minScore float64) (ragmodel.RetrievalResult, error) {
	if s.searchErr != nil {
		return ragmodel.RetrievalResult{}, s.searchErr
	}
	return ragmodel.RetrievalResult{Matches: s.matches}, nil
}

func (s *stubIndex) Len() int { return len(s.matches) }

func match(docName, text string, score float64) ragmodel.ScoredChunk {
	return ragmodel.ScoredChunk{
		Chunk:   ragmodel.Chunk{DocId: "doc-1", DocName: docName, Text: text},
		DocName: docName,
		Score:   score,
	}
}

func TestRetrieve_AssemblesContextInRankedOrder(t *testing.T) {
	index := &stubIndex{matches: []ragmodel.ScoredChunk{
		match("guide.txt", "first chunk", 0.95),
		match("guide.txt", "second chunk", 0.90),
		match("notes.md", "third chunk", 0.85),
	}}
	r := New(&stubEmbedder{vector: []float32{1, 0}}, index)

	result, err := r.Retrieve(context.Background(), "a question")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.NoContext {
		t.Fatal("expected context, got the no-context signal")
	}
	if len(result.Retrieval.Matches) != 3 {
		t.Fatalf("expected 3 included matches, got %d", len(result.Retrieval.Matches))
	}

	firstPos := strings.Index(result.Context, "first chunk")
	secondPos := strings.Index(result.Context, "second chunk")
	thirdPos := strings.Index(result.Context, "third chunk")
	if firstPos < 0 || secondPos < 0 || thirdPos < 0 {
		t.Fatalf("context is missing a chunk: %q", result.Context)
	}
	if !(firstPos < secondPos && secondPos < thirdPos) {
		t.Error("chunks must appear in ranked order")
	}
	if !strings.Contains(result.Context, "Document: guide.txt") {
		t.Error("each chunk must carry its source document name")
	}
}

func TestRetrieve_BudgetDropsLowestRankedWhole(t *testing.T) {
	big := strings.Repeat("x", 120)
	index := &stubIndex{matches: []ragmodel.ScoredChunk{
		match("a.txt", big, 0.95),
		match("b.txt", big, 0.90),
		match("c.txt", big, 0.85),
	}}
	//budget fits roughly two blocks, the third must be dropped whole
	r := New(&stubEmbedder{vector: []float32{1, 0}}, index,
		WithLimits(5, 0.60, 320))

	result, err := r.Retrieve(context.Background(), "a question")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(result.Retrieval.Matches) != 2 {
		t.Fatalf("expected 2 included matches, got %d", len(result.Retrieval.Matches))
	}
	if strings.Contains(result.Context, "c.txt") {
		t.Error("dropped chunk must not leak into the context")
	}
	if len(result.Context) > 320 {
		t.Errorf("context exceeds the budget: %d chars", len(result.Context))
	}
}

func TestRetrieve_NoMatchesSignalsNoContext(t *testing.T) {
	r := New(&stubEmbedder{vector: []float32{1, 0}}, &stubIndex{})

	result, err := r.Retrieve(context.Background(), "a question")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !result.NoContext {
		t.Error("empty retrieval must raise the no-context signal")
	}
}

func TestRetrieve_EveryChunkOverBudgetSignalsNoContext(t *testing.T) {
	index := &stubIndex{matches: []ragmodel.ScoredChunk{
		match("huge.txt", strings.Repeat("x", 500), 0.95),
	}}
	r := New(&stubEmbedder{vector: []float32{1, 0}}, index,
		WithLimits(5, 0.60, 100))

	result, err := r.Retrieve(context.Background(), "a question")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !result.NoContext {
		t.Error("an unfillable budget must raise the no-context signal")
	}
}

func TestRetrieve_EmbeddingFailurePropagates(t *testing.T) {
	r := New(&stubEmbedder{err: errors.New("provider down")}, &stubIndex{})

	if _, err := r.Retrieve(context.Background(), "a question"); err == nil {
		t.Fatal("expected an error when embedding fails")
	}
}

func TestRetrieve_SearchFailurePropagates(t *testing.T) {
	index := &stubIndex{searchErr: errors.New("index offline")}
	r := New(&stubEmbedder{vector: []float32{1, 0}}, index)

	if _, err := r.Retrieve(context.Background(), "a question"); err == nil {
		t.Fatal("expected an error when the search fails")
	}
}
