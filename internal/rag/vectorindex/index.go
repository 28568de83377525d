package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/nkapre/docqa/internal/domain/ragmodel"
)

// Index stores (chunk, vector) pairs and answers top-K nearest-neighbor
// queries. MemoryIndex is the reference implementation; qdrantindex is a
// drop-in remote backend.
type Index interface {
	Insert(ctx context.Context, entry ragmodel.IndexEntry) error
	//InsertBatch commits all entries or none, so a document is never
	//visible to search half-indexed
	InsertBatch(ctx context.Context, entries []ragmodel.IndexEntry) error
	Remove(ctx context.Context, docId string) error
	Search(ctx context.Context, vector []float32, k int, minScore float64) (ragmodel.RetrievalResult, error)
	Len() int
}

type indexedEntry struct {
	chunk  ragmodel.Chunk
	vector []float32
	norm   float64
}

// snapshot is immutable once published. Readers grab the pointer under a
// short read lock and scan without holding it, writers swap in a fresh
// copy - a query in flight sees the full old state or the full new state.
type snapshot struct {
	entries []indexedEntry
	dim     int
	modelID string
}

// MemoryIndex is a brute-force cosine index over copy-on-write snapshots.
// Similarity is cosine normalized to [0,1] via (cosine+1)/2; that same
// convention applies to minScore and everything derived from these scores.
type MemoryIndex struct {
	mu   sync.RWMutex
	snap *snapshot
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{snap: &snapshot{}}
}

func (m *MemoryIndex) Insert(ctx context.Context, entry ragmodel.IndexEntry) error {
	return m.InsertBatch(ctx, []ragmodel.IndexEntry{entry})
}

func (m *MemoryIndex) InsertBatch(ctx context.Context, entries []ragmodel.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.snap
	dim, modelID := current.dim, current.modelID
	if dim == 0 {
		//baseline is set by the first successful insert
		dim = len(entries[0].Vector)
		modelID = entries[0].ModelID
		if dim == 0 {
			return fmt.Errorf("insert of empty vector: %w", ragmodel.ErrDimensionMismatch)
		}
	}

	//validate the whole batch before touching anything, a failed insert
	//must leave the index unchanged
	for _, e := range entries {
		if len(e.Vector) != dim {
			return fmt.Errorf("vector dimension %d, index baseline %d: %w", len(e.Vector), dim, ragmodel.ErrDimensionMismatch)
		}
		if e.ModelID != modelID {
			return fmt.Errorf("embedding model %q, index baseline %q: %w", e.ModelID, modelID, ragmodel.ErrDimensionMismatch)
		}
	}

	next := &snapshot{
		entries: make([]indexedEntry, 0, len(current.entries)+len(entries)),
		dim:     dim,
		modelID: modelID,
	}
	next.entries = append(next.entries, current.entries...)
	for _, e := range entries {
		next.entries = append(next.entries, indexedEntry{
			chunk:  e.Chunk,
			vector: e.Vector,
			norm:   vectorNorm(e.Vector),
		})
	}
	m.snap = next
	return nil
}

func (m *MemoryIndex) Remove(ctx context.Context, docId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.snap
	next := &snapshot{
		entries: make([]indexedEntry, 0, len(current.entries)),
		dim:     current.dim,
		modelID: current.modelID,
	}
	for _, e := range current.entries {
		if e.chunk.DocId != docId {
			next.entries = append(next.entries, e)
		}
	}
	m.snap = next
	return nil
}

// Search returns up to k entries scoring >= minScore, ordered by score
// descending with ties broken by document name then chunk sequence. An
// empty index yields an empty result, never an error.
func (m *MemoryIndex) Search(ctx context.Context, vector []float32, k int, minScore float64) (ragmodel.RetrievalResult, error) {
	m.mu.RLock()
	snap := m.snap
	m.mu.RUnlock()

	if len(snap.entries) == 0 {
		return ragmodel.RetrievalResult{}, nil
	}
	if len(vector) != snap.dim {
		return ragmodel.RetrievalResult{}, fmt.Errorf("query vector dimension %d, index baseline %d: %w", len(vector), snap.dim, ragmodel.ErrDimensionMismatch)
	}
	if k <= 0 {
		return ragmodel.RetrievalResult{}, nil
	}

	queryNorm := vectorNorm(vector)
	matches := make([]ragmodel.ScoredChunk, 0, len(snap.entries))
	for _, e := range snap.entries {
		score := normalizedCosine(vector, queryNorm, e.vector, e.norm)
		if score >= minScore {
			matches = append(matches, ragmodel.ScoredChunk{
				Chunk:   e.chunk,
				DocName: e.chunk.DocName,
				Score:   score,
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].DocName != matches[j].DocName {
			return matches[i].DocName < matches[j].DocName
		}
		return matches[i].Chunk.Seq < matches[j].Chunk.Seq
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return ragmodel.RetrievalResult{Matches: matches}, nil
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snap.entries)
}

// Baseline reports the established dimensionality and model identifier.
// Zero values mean no successful insert has happened yet.
func (m *MemoryIndex) Baseline() (int, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.dim, m.snap.modelID
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// normalizedCosine maps cosine similarity from [-1,1] into [0,1].
// Zero-norm vectors score 0 rather than dividing by zero.
func normalizedCosine(a []float32, normA float64, b []float32, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	cosine := dot / (normA * normB)
	if cosine > 1 {
		cosine = 1
	} else if cosine < -1 {
		cosine = -1
	}
	return (cosine + 1) / 2
}
