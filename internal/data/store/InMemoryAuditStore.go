package store

import (
	"context"
	"sync"

	"github.com/nkapre/docqa/internal/domain/ragmodel"
)

// InMemoryAuditStore is the fallback audit log when redis is
// unreachable. Append-only like its redis counterpart.
type InMemoryAuditStore struct {
	mu      sync.RWMutex
	records []ragmodel.AuditRecord
}

func InitInMemoryAuditStore() *InMemoryAuditStore {
	return &InMemoryAuditStore{}
}

func (store *InMemoryAuditStore) Record(ctx context.Context, record ragmodel.AuditRecord) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.records = append(store.records, record)
	return nil
}

func (store *InMemoryAuditStore) List(ctx context.Context, limit int) ([]ragmodel.AuditRecord, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if limit > len(store.records) {
		limit = len(store.records)
	}
	out := make([]ragmodel.AuditRecord, 0, limit)
	for i := len(store.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, store.records[i])
	}
	return out, nil
}
