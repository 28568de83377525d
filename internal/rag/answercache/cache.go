package answercache

import (
	"math"
	"sync"
	"time"

	"github.com/nkapre/docqa/internal/config"
	"github.com/nkapre/docqa/internal/domain/ragmodel"
	"github.com/nkapre/docqa/pkg/logger_i"
)

const maxEntries = 512

type cacheEntry struct {
	vector  []float32
	norm    float64
	answer  ragmodel.AnswerResult
	savedAt time.Time
}

// Cache is a semantic answer cache: a repeated question (or a close
// paraphrase, cosine above the cutoff) returns the previous grounded
// answer without touching the index or the model. Any corpus change
// flushes it, a cached answer must never outlive its sources.
type Cache struct {
	mu      sync.RWMutex
	entries []cacheEntry
	//generation advances on every Invalidate; a Save carrying an older
	//generation is dropped, so an answer computed against a corpus that
	//changed mid-flight never enters the cache
	generation uint64
	cutoff     float64
	logger     *logger_i.Logger
}

func New() *Cache {
	return &Cache{
		cutoff: config.CacheSimilarityScore,
		logger: logger_i.NewLogger("AnswerCache"),
	}
}

func (c *Cache) Lookup(queryVector []float32) (ragmodel.AnswerResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	queryNorm := vectorNorm(queryVector)
	if queryNorm == 0 {
		return ragmodel.AnswerResult{}, false
	}

	bestScore := 0.0
	bestIdx := -1
	for i, e := range c.entries {
		if len(e.vector) != len(queryVector) {
			continue
		}
		score := normalizedCosine(queryVector, queryNorm, e.vector, e.norm)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx < 0 || bestScore < c.cutoff {
		return ragmodel.AnswerResult{}, false
	}
	c.logger.Debug("cache hit", "score", bestScore)
	return c.entries[bestIdx].answer, true
}

// Generation is the corpus version the caller snapshots before retrieval
// and hands back to Save.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *Cache) Save(generation uint64, queryVector []float32, answer ragmodel.AnswerResult) {
	if answer.Status != ragmodel.AnswerGrounded {
		return //refusals and errors are cheap to recompute and may heal
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		c.logger.Debug("stale answer dropped", "savedGeneration", generation, "currentGeneration", c.generation)
		return
	}

	if len(c.entries) >= maxEntries {
		c.entries = c.entries[1:] //oldest first
	}
	c.entries = append(c.entries, cacheEntry{
		vector:  queryVector,
		norm:    vectorNorm(queryVector),
		answer:  answer,
		savedAt: time.Now(),
	})
}

// Invalidate drops everything. Called whenever a document is added or
// removed.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.generation++
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func normalizedCosine(a []float32, normA float64, b []float32, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return (dot/(normA*normB) + 1) / 2
}
