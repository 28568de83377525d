package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nkapre/docqa/internal/config"
	"github.com/nkapre/docqa/internal/domain/ragmodel"
	"github.com/nkapre/docqa/internal/rag/embedding"
)

func DocTypeOf(docPath string) ragmodel.DocType {
	ext := strings.ToLower(filepath.Ext(docPath))
	switch ext {
	case ".pdf":
		return ragmodel.PDF
	case ".docx", ".rtf", ".odt":
		return ragmodel.DOCX
	case ".txt", ".md":
		return ragmodel.TXT
	default:
		return ragmodel.ERR
	}
}

// ExtractText pulls the raw text out of a source file. PDF pages are
// joined with blank lines so the chunker can treat them as paragraph
// boundaries.
func ExtractText(path string, contentType ragmodel.DocType) (string, error) {
	switch contentType {
	case ragmodel.PDF:
		return extractPDF(path)
	case ragmodel.DOCX, ragmodel.TXT:
		return extractDocxTxtRtf(path)
	default:
		return "", fmt.Errorf("unsupported content type %q: %w", contentType, ragmodel.ErrInvalidInput)
	}
}

// EmbedChunks vectorizes all chunks of one document, batched so a big
// document does not become one giant provider call. All batches must
// succeed before anything is returned - a partially embedded document is
// never handed to the index.
func EmbedChunks(ctx context.Context, chunks []ragmodel.Chunk, embedder embedding.Embedder) ([]ragmodel.IndexEntry, error) {
	batchSize := config.EmbeddingBatchSize
	isHugeDataSet := len(chunks) > 1000000

	entries := make([]ragmodel.IndexEntry, 0, len(chunks))
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		currentBatch := chunks[i:end]

		texts := make([]string, len(currentBatch))
		for j, c := range currentBatch {
			texts[j] = c.Text
		}

		vectors, err := embedder.BatchEmbedding(ctx, texts, isHugeDataSet)
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d failed: %w", i, end, err)
		}
		if len(vectors) != len(currentBatch) {
			return nil, fmt.Errorf("embedding batch %d-%d: got %d vectors for %d chunks: %w",
				i, end, len(vectors), len(currentBatch), ragmodel.ErrEmbeddingUnavailable)
		}

		for j, c := range currentBatch {
			entries = append(entries, ragmodel.IndexEntry{
				Chunk:   c,
				Vector:  vectors[j],
				ModelID: embedder.ModelID(),
			})
		}
	}
	return entries, nil
}
