package rag

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nkapre/docqa/internal/config"
	"github.com/nkapre/docqa/internal/domain/jobmodel"
	"github.com/nkapre/docqa/internal/domain/ragmodel"
	"github.com/nkapre/docqa/internal/metrics"
	"github.com/nkapre/docqa/internal/rag/chunker"
	"github.com/nkapre/docqa/internal/rag/ingest"
	"github.com/nkapre/docqa/internal/rag/retriever"
	"github.com/nkapre/docqa/pkg/logger_i"
)

func traceIdFrom(ctx context.Context) string {
	traceId, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return traceId
}

func logOutput(job jobmodel.Job, status jobmodel.InternalStatus, log *logger_i.Logger) jobmodel.Job {
	job.CurrentStep = status
	log.Debug("Ingestion", "Current Status", job.CurrentStep)
	return job
}

func (s *service) jobError(job jobmodel.Job, err error, message string, canRetry bool) jobmodel.Job {
	s.logger.Error(message, "error", err)

	job.Error = jobmodel.JobError{
		Code:    http.StatusInternalServerError,
		Message: "Internal Server Error",
		Retry:   canRetry,
	}
	job.Status = jobmodel.JobStatusError
	return job
}

// ingestError fails the job and flips the document record to FAILED so a
// status poll explains what happened. Nothing from the failed run is left
// in the index.
func (s *service) ingestError(ctx context.Context, job jobmodel.Job, err error, message string) jobmodel.Job {
	if doc, found, getErr := s.repo.GetDocument(ctx, job.JobPayload.DocumentId); getErr == nil && found {
		doc.Status = ragmodel.DocStatusFailed
		doc.FailReason = err.Error()
		if updErr := s.repo.UpdateDocument(ctx, doc); updErr != nil {
			s.logger.Error("failed to mark document FAILED", "error", updErr)
		}
	}
	return s.jobError(job, err, message, true)
}

func (s *service) executeEmbeddingStep(ctx context.Context, question string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	return s.embedder.GetEmbedding(ctx, question)
}

func (s *service) executeCacheCheckStep(queryVector []float32) (ragmodel.AnswerResult, bool) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("cache_lookup", time.Since(start)) }()

	return s.cache.Lookup(queryVector)
}

func (s *service) executeRetrievalStep(ctx context.Context, queryVector []float32) (retriever.Result, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_search", time.Since(start)) }()

	return s.retriever.RetrieveWith(ctx, queryVector)
}

func (s *service) executeSynthesisStep(ctx context.Context, question string, retrieved retriever.Result) ragmodel.AnswerResult {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	return s.synthesizer.Synthesize(ctx, question, retrieved)
}

func (s *service) executeExtractionStep(log *logger_i.Logger, job *jobmodel.Job) (string, error) {
	*job = logOutput(*job, jobmodel.IngestExtracting, log)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("text_extraction", time.Since(start)) }()

	//the temp file loses its name; the original filename decides the type
	docType := ingest.DocTypeOf(job.JobPayload.DocumentName)
	if docType == ragmodel.ERR {
		return "", fmt.Errorf("unsupported file type %q: %w", job.JobPayload.DocumentName, ragmodel.ErrInvalidInput)
	}
	return ingest.ExtractText(job.JobPayload.SourcePath, docType)
}

func (s *service) executeChunkingStep(ctx context.Context, log *logger_i.Logger, job *jobmodel.Job, text string) ([]ragmodel.Chunk, error) {
	*job = logOutput(*job, jobmodel.IngestChunking, log)

	chunks, err := chunker.Chunk(job.JobPayload.DocumentId, job.JobPayload.DocumentName, text, chunker.DefaultConfig())
	if err != nil {
		return nil, err
	}
	//chunk ids are derived, not minted, so a rebuild produces the same ids
	for i := range chunks {
		chunks[i].ChunkId = fmt.Sprintf("%s:%d", chunks[i].DocId, chunks[i].Seq)
	}

	//lifecycle progress: PENDING -> CHUNKED. Embedding can take a while,
	//a status poll in between should say how far the document got.
	if doc, found, getErr := s.repo.GetDocument(ctx, job.JobPayload.DocumentId); getErr == nil && found {
		doc.Status = ragmodel.DocStatusChunked
		if updErr := s.repo.UpdateDocument(ctx, doc); updErr != nil {
			log.Error("failed to mark document CHUNKED", "error", updErr)
		}
	}
	return chunks, nil
}

func (s *service) executeBatchEmbeddingStep(ctx context.Context, log *logger_i.Logger, job *jobmodel.Job, chunks []ragmodel.Chunk) ([]ragmodel.IndexEntry, error) {
	*job = logOutput(*job, jobmodel.IngestEmbedding, log)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("batch_embedding", time.Since(start)) }()

	return ingest.EmbedChunks(ctx, chunks, s.embedder)
}

func (s *service) executeIndexingStep(ctx context.Context, log *logger_i.Logger, job *jobmodel.Job, entries []ragmodel.IndexEntry) error {
	*job = logOutput(*job, jobmodel.IngestIndexing, log)

	if err := s.index.InsertBatch(ctx, entries); err != nil {
		return err
	}

	doc, found, err := s.repo.GetDocument(ctx, job.JobPayload.DocumentId)
	if err != nil {
		return err
	}
	if !found {
		doc = ragmodel.Document{
			Id:   job.JobPayload.DocumentId,
			Name: job.JobPayload.DocumentName,
		}
	}
	doc.Status = ragmodel.DocStatusIndexed
	doc.ContentType = ingest.DocTypeOf(job.JobPayload.DocumentName)
	doc.ChunkCount = len(entries)
	doc.IngestedAt = time.Now().UTC()

	if err := s.repo.SaveDocument(ctx, doc, entries); err != nil {
		//durable save failed, roll the index back so memory and disk agree
		if rmErr := s.index.Remove(ctx, doc.Id); rmErr != nil {
			s.logger.Error("index rollback failed", "error", rmErr)
		}
		return err
	}
	return nil
}

func (s *service) recordAudit(ctx context.Context, log *logger_i.Logger, question string, answer ragmodel.AnswerResult) {
	record := ragmodel.AuditRecord{
		Id:         s.newId(),
		Query:      question,
		Timestamp:  time.Now().UTC(),
		Outcome:    outcomeFor(answer.Status),
		Confidence: answer.Confidence,
		CitedDocs:  answer.Citations,
	}
	//audit failures never fail the answer
	if err := s.auditStore.Record(ctx, record); err != nil {
		log.Error("AUDIT_WRITE_FAILURE", "error", err)
	}
}

func outcomeFor(status ragmodel.AnswerStatus) ragmodel.AuditOutcome {
	switch status {
	case ragmodel.AnswerGrounded:
		return ragmodel.OutcomeAnswered
	case ragmodel.AnswerRefused:
		return ragmodel.OutcomeRefused
	default:
		return ragmodel.OutcomeError
	}
}
