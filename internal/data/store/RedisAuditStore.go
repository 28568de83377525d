package store

import (
	"context"
	"encoding/json"

	"github.com/nkapre/docqa/internal/config"
	"github.com/nkapre/docqa/internal/data/redisstore"
	"github.com/nkapre/docqa/internal/domain/ragmodel"
	"github.com/nkapre/docqa/pkg/logger_i"
)

const auditLogKey = "audit:log"

// RedisAuditStore keeps the audit trail as one redis list. RPUSH only -
// records are never updated or deleted, which is the whole point of an
// audit log.
type RedisAuditStore struct {
	store  *redisstore.Store
	logger *logger_i.Logger
}

func GetRedisAuditStore(ctx context.Context) *RedisAuditStore {
	internal := redisstore.GetRedisStore(ctx, config.RedisAuditStore)
	if internal == nil {
		return nil
	}
	return &RedisAuditStore{
		store:  internal,
		logger: logger_i.NewLogger("AuditStore"),
	}
}

func (s *RedisAuditStore) Record(ctx context.Context, record ragmodel.AuditRecord) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "auditId", record.Id)
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	if err := s.store.ListPush(ctx, auditLogKey, data); err != nil {
		log.Error("error appending audit record", "error", err)
		return err
	}
	log.Debug("audit record appended", "outcome", record.Outcome)
	return nil
}

// List returns the most recent records, newest first.
func (s *RedisAuditStore) List(ctx context.Context, limit int) ([]ragmodel.AuditRecord, error) {
	raw, err := s.store.ListTail(ctx, auditLogKey, int64(limit))
	if err != nil {
		return nil, err
	}

	records := make([]ragmodel.AuditRecord, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var record ragmodel.AuditRecord
		if err := json.Unmarshal([]byte(raw[i]), &record); err != nil {
			s.logger.Error("corrupt audit record skipped", "error", err)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func TestAuditStore(store *redisstore.Store) *RedisAuditStore {
	return &RedisAuditStore{
		store:  store,
		logger: logger_i.NewLogger("test audit"),
	}
}
