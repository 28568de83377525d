package chunker

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/nkapre/docqa/internal/config"
	"github.com/nkapre/docqa/internal/domain/ragmodel"
)

// Config drives chunk boundaries. The same text and config always produce
// the same chunks - index rebuilds depend on that.
type Config struct {
	TargetSize int //characters (runes)
	Overlap    int
	MinSize    int //trailing fragments below this are dropped unless they are the only chunk
}

func DefaultConfig() Config {
	return Config{
		TargetSize: config.ChunkTargetSize,
		Overlap:    config.ChunkOverlap,
		MinSize:    config.ChunkMinSize,
	}
}

// Normalize collapses windows line endings and trims surrounding
// whitespace. Chunk offsets point into the normalized text.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}

// Chunk splits normalized document text into overlapping chunks.
// Splits prefer paragraph breaks, then sentence ends, then word breaks,
// falling back to a hard cut for unbroken runs of text.
func Chunk(docId string, docName string, text string, cfg Config) ([]ragmodel.Chunk, error) {
	normalized := Normalize(text)
	if normalized == "" {
		return nil, fmt.Errorf("document %q is empty after normalization: %w", docName, ragmodel.ErrInvalidInput)
	}
	if cfg.TargetSize <= 0 {
		return nil, fmt.Errorf("chunk target size %d: %w", cfg.TargetSize, ragmodel.ErrInvalidInput)
	}
	if cfg.Overlap >= cfg.TargetSize {
		return nil, fmt.Errorf("overlap %d >= target size %d: %w", cfg.Overlap, cfg.TargetSize, ragmodel.ErrInvalidInput)
	}

	runes := []rune(normalized)
	paraCuts, sentCuts, wordCuts := boundaryPositions(runes)

	var chunks []ragmodel.Chunk
	start := 0
	seq := 0
	for start < len(runes) {
		end := start + cfg.TargetSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = pickCut(start, end, paraCuts, sentCuts, wordCuts)
		}

		if c, ok := makeChunk(docId, docName, runes, start, end, seq); ok {
			chunks = append(chunks, c)
			seq++
		}
		if end >= len(runes) {
			break
		}

		next := end - cfg.Overlap
		if next <= start {
			next = start + 1 //always make progress, even on pathological overlap
		}
		start = next
	}

	chunks = dropTrailingFragment(chunks, cfg.MinSize)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %q produced no chunks: %w", docName, ragmodel.ErrInvalidInput)
	}
	return chunks, nil
}

// boundaryPositions returns cut candidates as positions *after* which a
// chunk may end, split by preference class.
func boundaryPositions(runes []rune) (para, sent, word []int) {
	for i, r := range runes {
		switch {
		case r == '\n':
			if i+1 < len(runes) && runes[i+1] == '\n' {
				para = append(para, i+2)
			} else {
				sent = append(sent, i+1)
			}
		case r == '.' || r == '!' || r == '?':
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				sent = append(sent, i+1)
			}
		case r == ' ':
			word = append(word, i+1)
		}
	}
	return para, sent, word
}

// pickCut finds the furthest boundary in (start, limit], preferring
// paragraph over sentence over word cuts. No boundary means a hard cut.
func pickCut(start, limit int, para, sent, word []int) int {
	for _, cuts := range [][]int{para, sent, word} {
		if c := furthestInWindow(cuts, start, limit); c > 0 {
			return c
		}
	}
	return limit
}

// furthestInWindow returns the largest cut in (start, limit], or -1.
// Cut positions are ascending, so a binary search keeps large documents
// linear instead of rescanning every cut per chunk.
func furthestInWindow(cuts []int, start, limit int) int {
	i := sort.SearchInts(cuts, limit+1)
	if i == 0 {
		return -1
	}
	if c := cuts[i-1]; c > start {
		return c
	}
	return -1
}

func makeChunk(docId, docName string, runes []rune, start, end, seq int) (ragmodel.Chunk, bool) {
	//trim whitespace off both ends but keep offsets honest
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	if start >= end {
		return ragmodel.Chunk{}, false
	}
	return ragmodel.Chunk{
		DocId:       docId,
		DocName:     docName,
		Seq:         seq,
		Text:        string(runes[start:end]),
		StartOffset: start,
		EndOffset:   end,
	}, true
}

func dropTrailingFragment(chunks []ragmodel.Chunk, minSize int) []ragmodel.Chunk {
	if len(chunks) < 2 {
		return chunks
	}
	last := chunks[len(chunks)-1]
	if len([]rune(last.Text)) < minSize {
		return chunks[:len(chunks)-1]
	}
	return chunks
}
