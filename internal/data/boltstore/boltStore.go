package boltstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/nkapre/docqa/internal/domain/ragmodel"
	"github.com/nkapre/docqa/pkg/logger_i"
)

var (
	bucketDocs    = []byte("docs")
	bucketEntries = []byte("entries")
)

// BoltStore is the durable side of the engine: document records and their
// embedded chunks in one file. On startup LoadEntries feeds the in-memory
// index so a restarted instance answers exactly like the one before it.
type BoltStore struct {
	db     *bbolt.DB
	logger *logger_i.Logger
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocs, bucketEntries} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, logger: logger_i.NewLogger("BoltStore")}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// entryKey orders entries by document then chunk sequence, so a bucket
// scan yields them in the same order every time.
func entryKey(docId string, seq int) []byte {
	return []byte(fmt.Sprintf("%s/%010d", docId, seq))
}

func entryPrefix(docId string) []byte {
	return []byte(docId + "/")
}

// SaveDocument writes the document record and all its entries in one
// transaction. Entries from a previous version of the same document are
// dropped first, so a re-ingest never leaves stale chunks behind.
func (s *BoltStore) SaveDocument(ctx context.Context, doc ragmodel.Document, entries []ragmodel.IndexEntry) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		docData, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocs).Put([]byte(doc.Id), docData); err != nil {
			return err
		}

		eb := tx.Bucket(bucketEntries)
		if err := deletePrefix(eb, entryPrefix(doc.Id)); err != nil {
			return err
		}
		for _, entry := range entries {
			data, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			if err := eb.Put(entryKey(entry.Chunk.DocId, entry.Chunk.Seq), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving document %s: %w", doc.Id, ragmodel.ErrStorageFault)
	}
	return nil
}

func (s *BoltStore) UpdateDocument(ctx context.Context, doc ragmodel.Document) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDocs).Put([]byte(doc.Id), data)
	})
	if err != nil {
		return fmt.Errorf("updating document %s: %w", doc.Id, ragmodel.ErrStorageFault)
	}
	return nil
}

func (s *BoltStore) DeleteDocument(ctx context.Context, docId string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketDocs).Delete([]byte(docId)); err != nil {
			return err
		}
		return deletePrefix(tx.Bucket(bucketEntries), entryPrefix(docId))
	})
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", docId, ragmodel.ErrStorageFault)
	}
	return nil
}

func (s *BoltStore) GetDocument(ctx context.Context, docId string) (ragmodel.Document, bool, error) {
	var doc ragmodel.Document
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(docId))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return ragmodel.Document{}, false, fmt.Errorf("getting document %s: %w", docId, ragmodel.ErrStorageFault)
	}
	return doc, found, nil
}

func (s *BoltStore) ListDocuments(ctx context.Context) ([]ragmodel.Document, error) {
	var docs []ragmodel.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var doc ragmodel.Document
			if err := json.Unmarshal(v, &doc); err != nil {
				s.logger.Error("corrupt document record skipped", "key", string(k))
				return nil
			}
			docs = append(docs, doc)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", ragmodel.ErrStorageFault)
	}
	return docs, nil
}

// LoadEntries returns every indexed entry in key order, ready to rebuild
// the in-memory index.
func (s *BoltStore) LoadEntries(ctx context.Context) ([]ragmodel.IndexEntry, error) {
	var entries []ragmodel.IndexEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			var entry ragmodel.IndexEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				s.logger.Error("corrupt index entry skipped", "key", string(k))
				return nil
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading index entries: %w", ragmodel.ErrStorageFault)
	}
	return entries, nil
}

func deletePrefix(b *bbolt.Bucket, prefix []byte) error {
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		if err := c.Delete(); err != nil {
			return err
		}
	}
	return nil
}
