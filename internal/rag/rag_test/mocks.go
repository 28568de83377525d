package rag_test

import (
	"context"
	"strings"
	"sync"

	"github.com/nkapre/docqa/internal/domain/ragmodel"
)

// MockEmbedder implements embedding.Embedder with a keyword hash: any text
// mentioning refunds lands on one axis, everything else on the other. Close
// enough to steer retrieval deterministically without a real model.
type MockEmbedder struct {
	OnGetEmbedding   func(ctx context.Context, text string) ([]float32, error)
	OnBatchEmbedding func(ctx context.Context, chunks []string, isHuge bool) ([][]float32, error)
}

func vectorFor(text string) []float32 {
	if strings.Contains(strings.ToLower(text), "refund") {
		return []float32{1, 0}
	}
	return []float32{0, 1}
}

func (m *MockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, query)
	}
	return vectorFor(query), nil
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, chunks []string, isHuge bool) ([][]float32, error) {
	if m.OnBatchEmbedding != nil {
		return m.OnBatchEmbedding(ctx, chunks, isHuge)
	}
	out := make([][]float32, len(chunks))
	for i, c := range chunks {
		out[i] = vectorFor(c)
	}
	return out, nil
}

func (m *MockEmbedder) Dimension() int  { return 2 }
func (m *MockEmbedder) ModelID() string { return "mock-embed-v1" }

// MockLLM implements llm.Provider
type MockLLM struct {
	OnGenerate func(ctx context.Context, systemInstructions string, prompt string) (string, error)

	mu    sync.Mutex
	Calls int
}

func (m *MockLLM) Generate(ctx context.Context, systemInstructions string, prompt string) (string, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, systemInstructions, prompt)
	}
	return "mocked llm response", nil
}

func (m *MockLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MockRepo implements ragmodel.DocumentRepository in memory.
type MockRepo struct {
	OnSaveDocument func(ctx context.Context, doc ragmodel.Document, entries []ragmodel.IndexEntry) error

	mu        sync.Mutex
	docs      map[string]ragmodel.Document
	statusLog map[string][]ragmodel.DocStatus
}

func NewMockRepo() *MockRepo {
	return &MockRepo{
		docs:      make(map[string]ragmodel.Document),
		statusLog: make(map[string][]ragmodel.DocStatus),
	}
}

// StatusHistory returns every status the document was saved with, in
// write order.
func (r *MockRepo) StatusHistory(docId string) []ragmodel.DocStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ragmodel.DocStatus(nil), r.statusLog[docId]...)
}

func (r *MockRepo) SaveDocument(ctx context.Context, doc ragmodel.Document, entries []ragmodel.IndexEntry) error {
	if r.OnSaveDocument != nil {
		if err := r.OnSaveDocument(ctx, doc, entries); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.Id] = doc
	r.statusLog[doc.Id] = append(r.statusLog[doc.Id], doc.Status)
	return nil
}

func (r *MockRepo) UpdateDocument(ctx context.Context, doc ragmodel.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.Id] = doc
	r.statusLog[doc.Id] = append(r.statusLog[doc.Id], doc.Status)
	return nil
}

func (r *MockRepo) DeleteDocument(ctx context.Context, docId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, docId)
	return nil
}

func (r *MockRepo) GetDocument(ctx context.Context, docId string) (ragmodel.Document, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docId]
	return doc, ok, nil
}

func (r *MockRepo) ListDocuments(ctx context.Context) ([]ragmodel.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ragmodel.Document, 0, len(r.docs))
	for _, d := range r.docs {
		out = append(out, d)
	}
	return out, nil
}

func (r *MockRepo) LoadEntries(ctx context.Context) ([]ragmodel.IndexEntry, error) {
	return nil, nil
}

// MockAuditStore implements ragmodel.AuditStore in memory.
type MockAuditStore struct {
	OnRecord func(ctx context.Context, record ragmodel.AuditRecord) error

	mu      sync.Mutex
	Records []ragmodel.AuditRecord
}

func (a *MockAuditStore) Record(ctx context.Context, record ragmodel.AuditRecord) error {
	if a.OnRecord != nil {
		if err := a.OnRecord(ctx, record); err != nil {
			return err
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Records = append(a.Records, record)
	return nil
}

func (a *MockAuditStore) List(ctx context.Context, limit int) ([]ragmodel.AuditRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if limit > len(a.Records) {
		limit = len(a.Records)
	}
	//newest first
	out := make([]ragmodel.AuditRecord, 0, limit)
	for i := len(a.Records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, a.Records[i])
	}
	return out, nil
}

func (a *MockAuditStore) Last() (ragmodel.AuditRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.Records) == 0 {
		return ragmodel.AuditRecord{}, false
	}
	return a.Records[len(a.Records)-1], true
}
