package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/nkapre/docqa/internal/domain/ragmodel"
)

type mockEmbedder struct {
	batchFunc func(ctx context.Context, chunks []string, isHuge bool) ([][]float32, error)
	batches   int
}

func (m *mockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	return []float32{0.1}, nil
}

func (m *mockEmbedder) BatchEmbedding(ctx context.Context, chunks []string, isHuge bool) ([][]float32, error) {
	m.batches++
	if m.batchFunc != nil {
		return m.batchFunc(ctx, chunks, isHuge)
	}
	out := make([][]float32, len(chunks))
	for i := range out {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (m *mockEmbedder) Dimension() int  { return 2 }
func (m *mockEmbedder) ModelID() string { return "mock-embed-v1" }

func TestDocTypeOf(t *testing.T) {
	tests := []struct {
		path     string
		expected ragmodel.DocType
	}{
		{"test.pdf", ragmodel.PDF},
		{"DOC.DOCX", ragmodel.DOCX},
		{"notes.txt", ragmodel.TXT},
		{"readme.md", ragmodel.TXT},
		{"image.png", ragmodel.ERR},
	}

	for _, tt := range tests {
		if got := DocTypeOf(tt.path); got != tt.expected {
			t.Errorf("DocTypeOf(%s) = %v; want %v", tt.path, got, tt.expected)
		}
	}
}

func TestEmbedChunks_BatchesAndTagsModel(t *testing.T) {
	chunks := make([]ragmodel.Chunk, 250)
	for i := range chunks {
		chunks[i] = ragmodel.Chunk{DocId: "d1", Seq: i, Text: "chunk text"}
	}

	embedder := &mockEmbedder{}
	entries, err := EmbedChunks(context.Background(), chunks, embedder)
	if err != nil {
		t.Fatalf("EmbedChunks failed: %v", err)
	}

	if len(entries) != 250 {
		t.Fatalf("got %d entries, want 250", len(entries))
	}
	if embedder.batches != 3 {
		t.Errorf("got %d batches for 250 chunks at size 100, want 3", embedder.batches)
	}
	for i, e := range entries {
		if e.ModelID != "mock-embed-v1" {
			t.Fatalf("entry %d missing model id", i)
		}
		if e.Chunk.Seq != i {
			t.Fatalf("entry %d out of order: seq %d", i, e.Chunk.Seq)
		}
	}
}

func TestEmbedChunks_FailureReturnsNothing(t *testing.T) {
	chunks := make([]ragmodel.Chunk, 150)
	for i := range chunks {
		chunks[i] = ragmodel.Chunk{DocId: "d1", Seq: i, Text: "chunk text"}
	}

	embedder := &mockEmbedder{
		batchFunc: func(ctx context.Context, texts []string, isHuge bool) ([][]float32, error) {
			return nil, errors.New("quota exceeded")
		},
	}

	entries, err := EmbedChunks(context.Background(), chunks, embedder)
	if err == nil {
		t.Fatal("expected error from failing embedder")
	}
	if entries != nil {
		t.Errorf("failed embedding returned %d entries, want none", len(entries))
	}
}

func TestExtractText_UnsupportedType(t *testing.T) {
	_, err := ExtractText("whatever.png", ragmodel.ERR)
	if !errors.Is(err, ragmodel.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
