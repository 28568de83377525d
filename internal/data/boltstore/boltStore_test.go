package boltstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nkapre/docqa/internal/domain/ragmodel"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testDoc(id, name string, chunks int) (ragmodel.Document, []ragmodel.IndexEntry) {
	doc := ragmodel.Document{
		Id:          id,
		Name:        name,
		Status:      ragmodel.DocStatusIndexed,
		ContentType: ragmodel.TXT,
		ChunkCount:  chunks,
		IngestedAt:  time.Now().UTC(),
	}
	entries := make([]ragmodel.IndexEntry, chunks)
	for i := 0; i < chunks; i++ {
		entries[i] = ragmodel.IndexEntry{
			Chunk: ragmodel.Chunk{
				ChunkId: id + ":" + string(rune('0'+i)),
				DocId:   id,
				DocName: name,
				Seq:     i,
				Text:    "chunk text",
			},
			Vector:  []float32{float32(i), 1},
			ModelID: "embed-v1",
		}
	}
	return doc, entries
}

func TestSaveAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc, entries := testDoc("doc-1", "policy.txt", 3)
	if err := s.SaveDocument(ctx, doc, entries); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	got, found, err := s.GetDocument(ctx, "doc-1")
	if err != nil || !found {
		t.Fatalf("GetDocument: found=%v err=%v", found, err)
	}
	if got.Name != "policy.txt" || got.ChunkCount != 3 {
		t.Errorf("document round trip mismatch: %+v", got)
	}

	_, found, err = s.GetDocument(ctx, "ghost")
	if err != nil {
		t.Fatalf("GetDocument ghost: %v", err)
	}
	if found {
		t.Error("found a document that was never saved")
	}
}

func TestLoadEntries_OrderStable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docB, entriesB := testDoc("doc-b", "b.txt", 2)
	docA, entriesA := testDoc("doc-a", "a.txt", 2)
	//insert out of order, load order must still be key order
	if err := s.SaveDocument(ctx, docB, entriesB); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveDocument(ctx, docA, entriesA); err != nil {
		t.Fatal(err)
	}

	entries, err := s.LoadEntries(ctx)
	if err != nil {
		t.Fatalf("LoadEntries: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}
	want := []string{"doc-a", "doc-a", "doc-b", "doc-b"}
	for i, e := range entries {
		if e.Chunk.DocId != want[i] {
			t.Errorf("position %d: got %s, want %s", i, e.Chunk.DocId, want[i])
		}
	}
	if entries[0].Chunk.Seq != 0 || entries[1].Chunk.Seq != 1 {
		t.Error("entries within a document out of sequence order")
	}
}

func TestReingestReplacesEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc, entries := testDoc("doc-1", "policy.txt", 5)
	if err := s.SaveDocument(ctx, doc, entries); err != nil {
		t.Fatal(err)
	}

	//second version has fewer chunks, old tail must not survive
	doc2, entries2 := testDoc("doc-1", "policy.txt", 2)
	if err := s.SaveDocument(ctx, doc2, entries2); err != nil {
		t.Fatal(err)
	}

	loaded, err := s.LoadEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 {
		t.Errorf("got %d entries after re-ingest, want 2", len(loaded))
	}
}

func TestDeleteDocument_RemovesEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc1, entries1 := testDoc("doc-1", "a.txt", 3)
	doc2, entries2 := testDoc("doc-2", "b.txt", 3)
	s.SaveDocument(ctx, doc1, entries1)
	s.SaveDocument(ctx, doc2, entries2)

	if err := s.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	entries, _ := s.LoadEntries(ctx)
	for _, e := range entries {
		if e.Chunk.DocId == "doc-1" {
			t.Fatal("deleted document's entries still present")
		}
	}
	if len(entries) != 3 {
		t.Errorf("got %d entries, want doc-2's 3", len(entries))
	}

	docs, _ := s.ListDocuments(ctx)
	if len(docs) != 1 || docs[0].Id != "doc-2" {
		t.Errorf("document list after delete: %+v", docs)
	}
}

func TestUpdateDocument_StatusFlip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc, _ := testDoc("doc-1", "a.txt", 0)
	doc.Status = ragmodel.DocStatusPending
	s.SaveDocument(ctx, doc, nil)

	doc.Status = ragmodel.DocStatusFailed
	doc.FailReason = "embedding provider down"
	if err := s.UpdateDocument(ctx, doc); err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}

	got, _, _ := s.GetDocument(ctx, "doc-1")
	if got.Status != ragmodel.DocStatusFailed || got.FailReason == "" {
		t.Errorf("update not persisted: %+v", got)
	}
}
