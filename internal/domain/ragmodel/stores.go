package ragmodel

import "context"

// AuditStore is append-only. Record failures are non-fatal to the query
// path: callers report them and still return the answer.
type AuditStore interface {
	Record(ctx context.Context, record AuditRecord) error
	List(ctx context.Context, limit int) ([]AuditRecord, error)
}

// DocumentRepository is the durable side of the engine. LoadEntries feeds
// the in-memory index rebuild on restart; a rebuilt index must answer
// identical queries with identical results.
type DocumentRepository interface {
	SaveDocument(ctx context.Context, doc Document, entries []IndexEntry) error
	UpdateDocument(ctx context.Context, doc Document) error
	DeleteDocument(ctx context.Context, docId string) error
	GetDocument(ctx context.Context, docId string) (Document, bool, error)
	ListDocuments(ctx context.Context) ([]Document, error)
	LoadEntries(ctx context.Context) ([]IndexEntry, error)
}
