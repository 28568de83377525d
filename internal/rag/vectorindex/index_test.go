package vectorindex

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nkapre/docqa/internal/domain/ragmodel"
)

const testModel = "embed-test-v1"

func entry(docId, docName string, seq int, vector []float32) ragmodel.IndexEntry {
	return ragmodel.IndexEntry{
		Chunk: ragmodel.Chunk{
			ChunkId: docId + "-" + docName + "-" + string(rune('a'+seq)),
			DocId:   docId,
			DocName: docName,
			Seq:     seq,
			Text:    "text for " + docName,
		},
		Vector:  vector,
		ModelID: testModel,
	}
}

func TestInsert_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	if err := idx.Insert(ctx, entry("d1", "a.txt", 0, []float32{1, 0, 0})); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err := idx.Insert(ctx, entry("d2", "b.txt", 0, []float32{1, 0}))
	if !errors.Is(err, ragmodel.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if idx.Len() != 1 {
		t.Errorf("index changed after failed insert: len=%d", idx.Len())
	}

	//model identifier mismatch is the same failure
	bad := entry("d3", "c.txt", 0, []float32{0, 1, 0})
	bad.ModelID = "embed-test-v2"
	if err := idx.Insert(ctx, bad); !errors.Is(err, ragmodel.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch for model mismatch, got %v", err)
	}
}

func TestInsertBatch_Atomic(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	batch := []ragmodel.IndexEntry{
		entry("d1", "a.txt", 0, []float32{1, 0, 0}),
		entry("d1", "a.txt", 1, []float32{0, 1}), //wrong dimension halfway through
	}
	if err := idx.InsertBatch(ctx, batch); !errors.Is(err, ragmodel.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("failed batch committed %d entries, want 0", idx.Len())
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx := NewMemoryIndex()
	result, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5, 0)
	if err != nil {
		t.Fatalf("empty index search errored: %v", err)
	}
	if len(result.Matches) != 0 {
		t.Errorf("empty index returned %d matches", len(result.Matches))
	}
}

func TestSearch_OrderingAndThreshold(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	must(t, idx.InsertBatch(ctx, []ragmodel.IndexEntry{
		entry("d1", "a.txt", 0, []float32{1, 0, 0}),       //score 1.0 vs query
		entry("d2", "b.txt", 0, []float32{0.9, 0.1, 0}),   //high
		entry("d3", "c.txt", 0, []float32{0, 1, 0}),       //orthogonal, score 0.5
		entry("d4", "d.txt", 0, []float32{-1, 0, 0}),      //opposite, score 0.0
	}))

	result, err := idx.Search(ctx, []float32{1, 0, 0}, 10, 0.6)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	for i, m := range result.Matches {
		if m.Score < 0.6 {
			t.Errorf("match %d score %f below minScore", i, m.Score)
		}
		if i > 0 && result.Matches[i-1].Score < m.Score {
			t.Errorf("matches not sorted descending at %d", i)
		}
	}
	if len(result.Matches) != 2 {
		t.Fatalf("expected 2 matches above 0.6, got %d", len(result.Matches))
	}
	if result.Matches[0].DocName != "a.txt" {
		t.Errorf("best match = %s, want a.txt", result.Matches[0].DocName)
	}
}

func TestSearch_KLimitAndTieBreaks(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	//three identical vectors, ties must break by doc name then sequence
	must(t, idx.InsertBatch(ctx, []ragmodel.IndexEntry{
		entry("d2", "beta.txt", 1, []float32{1, 0}),
		entry("d2", "beta.txt", 0, []float32{1, 0}),
		entry("d1", "alpha.txt", 0, []float32{1, 0}),
	}))

	result, err := idx.Search(ctx, []float32{1, 0}, 2, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(result.Matches) != 2 {
		t.Fatalf("k=2 returned %d matches", len(result.Matches))
	}
	if result.Matches[0].DocName != "alpha.txt" {
		t.Errorf("tie-break by doc name failed: got %s first", result.Matches[0].DocName)
	}
	if result.Matches[1].DocName != "beta.txt" || result.Matches[1].Chunk.Seq != 0 {
		t.Errorf("tie-break by sequence failed: got %s seq %d", result.Matches[1].DocName, result.Matches[1].Chunk.Seq)
	}
}

func TestRemove_ExactDocumentOnly(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	//near-duplicate content across two documents
	must(t, idx.InsertBatch(ctx, []ragmodel.IndexEntry{
		entry("d1", "policy-v1.txt", 0, []float32{0.99, 0.01, 0}),
		entry("d2", "policy-v2.txt", 0, []float32{0.98, 0.02, 0}),
	}))

	if err := idx.Remove(ctx, "d1"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	result, err := idx.Search(ctx, []float32{1, 0, 0}, 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("expected exactly 1 surviving match, got %d", len(result.Matches))
	}
	if result.Matches[0].DocName != "policy-v2.txt" {
		t.Errorf("wrong document survived removal: %s", result.Matches[0].DocName)
	}
}

func TestSearch_Deterministic(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	must(t, idx.InsertBatch(ctx, []ragmodel.IndexEntry{
		entry("d1", "facts-a.txt", 0, []float32{0.7, 0.7, 0}),
		entry("d2", "facts-b.txt", 0, []float32{0.7, 0.7, 0}), //contradictory twin
		entry("d3", "other.txt", 0, []float32{0, 0, 1}),
	}))

	var previous ragmodel.RetrievalResult
	for run := 0; run < 5; run++ {
		result, err := idx.Search(ctx, []float32{1, 1, 0}, 3, 0)
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if run > 0 {
			if len(result.Matches) != len(previous.Matches) {
				t.Fatalf("run %d returned different match count", run)
			}
			for i := range result.Matches {
				if result.Matches[i].Chunk.ChunkId != previous.Matches[i].Chunk.ChunkId {
					t.Errorf("run %d position %d differs", run, i)
				}
			}
		}
		previous = result
	}
}

func TestConcurrent_ReadersAndWriter(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	must(t, idx.InsertBatch(ctx, []ragmodel.IndexEntry{
		entry("stable", "stable.txt", 0, []float32{1, 0}),
	}))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	//readers must never observe a torn state: every result contains either
	//all of a document's entries or none of them
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				result, err := idx.Search(ctx, []float32{1, 0}, 100, 0)
				if err != nil {
					t.Errorf("reader saw error: %v", err)
					return
				}
				churn := 0
				for _, m := range result.Matches {
					if m.Chunk.DocId == "churn" {
						churn++
					}
				}
				if churn != 0 && churn != 3 {
					t.Errorf("reader saw partial document: %d of 3 entries", churn)
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		must(t, idx.InsertBatch(ctx, []ragmodel.IndexEntry{
			entry("churn", "churn.txt", 0, []float32{0.9, 0.1}),
			entry("churn", "churn.txt", 1, []float32{0.8, 0.2}),
			entry("churn", "churn.txt", 2, []float32{0.7, 0.3}),
		}))
		if err := idx.Remove(ctx, "churn"); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
