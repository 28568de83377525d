package qdrantindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/nkapre/docqa/internal/config"
	"github.com/nkapre/docqa/internal/domain/ragmodel"
	"github.com/nkapre/docqa/internal/rag/vectorindex"
	"github.com/nkapre/docqa/pkg/logger_i"
)

var logger *logger_i.Logger
var qdrantInstance *qdrant.Client
var once sync.Once
var dimension = uint64(config.EmbeddingOutputDimensionality)

// ClientHolder implements vectorindex.Index against a remote qdrant
// collection. This is a performance substitution for MemoryIndex: score
// ordering and the threshold contract hold, but ties inside an equal
// score follow qdrant's internal ordering rather than the documented
// doc-name/sequence tie-break.
type ClientHolder struct {
	QObj       *qdrant.Client
	collection string

	mu      sync.Mutex
	modelID string //baseline set by the first successful insert
}

var _ vectorindex.Index = (*ClientHolder)(nil)

func GetQdrantIndex(ctx context.Context) *ClientHolder {
	once.Do(func() {
		logger = logger_i.NewLogger("Qdrant")
		res := newClient()
		if res != nil {
			qdrantInstance = res
			go closeQdrant(ctx, qdrantInstance)
		}
	})

	if qdrantInstance == nil {
		return nil
	}
	return &ClientHolder{
		QObj:       qdrantInstance,
		collection: config.QdrantCollectionName,
	}
}

func newClient() *qdrant.Client {
	host := os.Getenv("QDRANT_HOST")
	port, er := strconv.Atoi(os.Getenv("QDRANT_PORT"))

	if host == "" || er != nil {
		host = config.QdrantHost
		port = config.QdrantGrpcPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     host,
		Port:     port,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate: ", "error:", err)
		return nil
	}

	err = createCollection(context.Background(), client, config.QdrantCollectionName)
	if err != nil {
		logger.Error("could not create collection: ", "collectionName", config.QdrantCollectionName, "error:", err)
		return nil
	}

	return client
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	err := qi.Close()
	if err != nil {
		logger.Error("could not close Qdrant: ", "error:", err)
	}
	logger.Info("Closed Qdrant")
}

func (db *ClientHolder) Insert(ctx context.Context, entry ragmodel.IndexEntry) error {
	return db.InsertBatch(ctx, []ragmodel.IndexEntry{entry})
}

// pointID derives a stable UUID from the chunk id. Qdrant only accepts
// UUID or integer point ids, and chunk ids are "docId:seq" strings; the
// v5 derivation keeps re-ingestion and rebuilds idempotent. The raw
// chunk id rides along in the payload.
func pointID(chunkId string) *qdrant.PointId {
	return qdrant.NewID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkId)).String())
}

func (db *ClientHolder) InsertBatch(ctx context.Context, entries []ragmodel.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	db.mu.Lock()
	if db.modelID == "" {
		db.modelID = entries[0].ModelID
	}
	baseline := db.modelID
	db.mu.Unlock()

	qdrantPoints := make([]*qdrant.PointStruct, len(entries))
	for i, entry := range entries {
		if uint64(len(entry.Vector)) != dimension {
			return fmt.Errorf("vector dimension %d, collection baseline %d: %w", len(entry.Vector), dimension, ragmodel.ErrDimensionMismatch)
		}
		if entry.ModelID != baseline {
			return fmt.Errorf("embedding model %q, collection baseline %q: %w", entry.ModelID, baseline, ragmodel.ErrDimensionMismatch)
		}

		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      pointID(entry.Chunk.ChunkId),
			Vectors: qdrant.NewVectors(entry.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"content":       entry.Chunk.Text,
				"source_doc_id": entry.Chunk.DocId,
				"doc_name":      entry.Chunk.DocName,
				"chunk_order":   entry.Chunk.Seq,
				"chunk_id":      entry.Chunk.ChunkId,
				"start_offset":  entry.Chunk.StartOffset,
				"end_offset":    entry.Chunk.EndOffset,
			}),
		}
	}

	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: db.collection,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (db *ClientHolder) Remove(ctx context.Context, docId string) error {
	_, err := db.QObj.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: db.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("source_doc_id", docId),
			},
		}),
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete for document %s failed: %w", docId, err)
	}
	return nil
}

func (db *ClientHolder) Search(ctx context.Context, vector []float32, k int, minScore float64) (ragmodel.RetrievalResult, error) {
	loggr := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))
	if k <= 0 {
		return ragmodel.RetrievalResult{}, nil
	}

	//qdrant scores cosine in [-1,1], our convention is (cosine+1)/2
	rawThreshold := float32(minScore*2 - 1)

	result, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: db.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		ScoreThreshold: qdrant.PtrOf(rawThreshold),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Error querying Qdrant: ", "error:", err)
		return ragmodel.RetrievalResult{}, err
	}

	matches := make([]ragmodel.ScoredChunk, 0, len(result))
	for _, hit := range result {
		chunk := ragmodel.Chunk{
			ChunkId:     hit.Payload["chunk_id"].GetStringValue(),
			DocId:       hit.Payload["source_doc_id"].GetStringValue(),
			DocName:     hit.Payload["doc_name"].GetStringValue(),
			Seq:         int(hit.Payload["chunk_order"].GetIntegerValue()),
			Text:        hit.Payload["content"].GetStringValue(),
			StartOffset: int(hit.Payload["start_offset"].GetIntegerValue()),
			EndOffset:   int(hit.Payload["end_offset"].GetIntegerValue()),
		}
		matches = append(matches, ragmodel.ScoredChunk{
			Chunk:   chunk,
			DocName: chunk.DocName,
			Score:   (float64(hit.Score) + 1) / 2,
		})
	}
	return ragmodel.RetrievalResult{Matches: matches}, nil
}

func (db *ClientHolder) Len() int {
	count, err := db.QObj.Count(context.Background(), &qdrant.CountPoints{
		CollectionName: db.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		logger.Error("Error counting Qdrant points: ", "error:", err)
		return 0
	}
	return int(count)
}

func createCollection(ctx context.Context, client *qdrant.Client, collectionName string) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}

	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	return err
}
