package rag

import (
	"context"
	"strings"
	"time"

	"github.com/nkapre/docqa/internal/config"
	"github.com/nkapre/docqa/internal/domain/jobmodel"
	"github.com/nkapre/docqa/internal/domain/ragmodel"
	"github.com/nkapre/docqa/internal/metrics"
	"github.com/nkapre/docqa/internal/rag/answercache"
	"github.com/nkapre/docqa/internal/rag/embedding"
	"github.com/nkapre/docqa/internal/rag/retriever"
	"github.com/nkapre/docqa/internal/rag/synth"
	"github.com/nkapre/docqa/internal/rag/vectorindex"
	"github.com/nkapre/docqa/pkg/logger_i"
)

/*
ARCHITECTURE NOTE: OPAQUE INTERFACE PATTERN
---------------------------------------------------------

1. Service (Interface):
  - Real work happens down low bruh
  - This is the PUBLIC contract.
  - It defines the "behavior" (what the worker and handlers can do).
  - We expose this to keep callers decoupled from our specific logic.

2. service (Private Struct):
  - down low stuff
  - This is the PRIVATE implementation.
  - It holds the "state" (index, embedder, repository, audit store).
  - It is lowercase to prevent external packages from accessing our
    internal dependencies directly.

3. Pointer Receiver (*service):
  - By defining methods on (*service), the struct IMPLICITLY satisfies
    the Service interface.
  - if it quacks like a duck, -it's a duck (Duck Typing)

4. Dependency Injection (NewService):
  - This constructor links the private struct to the public interface.
  - It allows us to swap real stores for mocks during testing without
    changing the callers' code.
*/

// Service is everything the workers, handlers and the MCP tools need.
// Ingestion and removal run as jobs on the worker pool; questions are
// answered inline.
type Service interface {
	AddDocument(ctx context.Context, job jobmodel.Job) jobmodel.Job
	RemoveDocument(ctx context.Context, job jobmodel.Job) jobmodel.Job
	RegisterDocument(ctx context.Context, doc ragmodel.Document) error
	AskQuestion(ctx context.Context, question string) ragmodel.AnswerResult
	Search(ctx context.Context, query string, topK int) (ragmodel.RetrievalResult, error)
	GetDocument(ctx context.Context, docId string) (ragmodel.Document, bool, error)
	ListDocuments(ctx context.Context) ([]ragmodel.Document, error)
	ListAuditLog(ctx context.Context, limit int) ([]ragmodel.AuditRecord, error)
}

type service struct {
	index       vectorindex.Index
	embedder    embedding.Embedder
	retriever   *retriever.Retriever
	synthesizer *synth.Synthesizer
	repo        ragmodel.DocumentRepository
	auditStore  ragmodel.AuditStore
	cache       *answercache.Cache
	newId       func() string
	logger      *logger_i.Logger
}

// NewService constructor
func NewService(
	index vectorindex.Index,
	embedder embedding.Embedder,
	ret *retriever.Retriever,
	syn *synth.Synthesizer,
	repo ragmodel.DocumentRepository,
	audit ragmodel.AuditStore,
	cache *answercache.Cache,
	newId func() string,
) Service {
	return &service{
		index:       index,
		embedder:    embedder,
		retriever:   ret,
		synthesizer: syn,
		repo:        repo,
		auditStore:  audit,
		cache:       cache,
		newId:       newId,
		logger:      logger_i.NewLogger("RAG Service :"),
	}
}

// AskQuestion runs the full question pipeline inline: embed, answer
// cache, retrieval, synthesis, audit. It never fails the caller; every
// failure mode resolves to a typed AnswerResult.
func (s *service) AskQuestion(ctx context.Context, question string) ragmodel.AnswerResult {
	inMethodLogger := s.logger.With("traceId", traceIdFrom(ctx))

	start := time.Now()
	result := s.askQuestion(ctx, inMethodLogger, question)
	metrics.CaptureJobMetrics(string(result.Status), time.Since(start))
	metrics.CountAnswer(string(result.Status))

	s.recordAudit(ctx, inMethodLogger, question, result)
	return result
}

func (s *service) askQuestion(ctx context.Context, log *logger_i.Logger, question string) ragmodel.AnswerResult {
	question = strings.TrimSpace(question)
	if question == "" {
		//nothing to look up, so there is nothing in the documents either
		return synth.Refusal()
	}

	askContext, cancel := context.WithTimeout(ctx, config.GenerationCallTimeout)
	defer cancel()

	// Embedding
	queryVector, err := s.executeEmbeddingStep(askContext, question)
	if err != nil {
		log.Error("EMBEDDING_FAILURE", "error", err)
		return synth.ModelError()
	}

	// Cache Check
	if cached, found := s.executeCacheCheckStep(queryVector); found {
		log.Debug("answered from cache")
		return cached
	}

	//snapshot the corpus generation before touching the index: a document
	//added or removed while we retrieve and generate makes this answer
	//stale, and Save drops it
	corpusGeneration := s.cache.Generation()

	// Retrieval
	retrieved, err := s.executeRetrievalStep(askContext, queryVector)
	if err != nil {
		log.Error("RETRIEVAL_FAILURE", "error", err)
		return synth.ModelError()
	}

	// Synthesis
	answer := s.executeSynthesisStep(askContext, question, retrieved)

	s.cache.Save(corpusGeneration, queryVector, answer)

	return answer
}

// Search exposes raw retrieval without synthesis, used by the MCP
// search tool and handy for debugging relevance thresholds.
func (s *service) Search(ctx context.Context, query string, topK int) (ragmodel.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return ragmodel.RetrievalResult{}, ragmodel.ErrInvalidInput
	}
	if topK <= 0 {
		topK = config.RetrievalTopK
	}

	queryVector, err := s.executeEmbeddingStep(ctx, query)
	if err != nil {
		return ragmodel.RetrievalResult{}, err
	}
	return s.retriever.RetrieveVector(ctx, queryVector, topK)
}

// AddDocument runs the full ingestion pipeline for one uploaded file:
// extract, chunk, embed, index, persist. The document flips to INDEXED
// only at the very end; any failure marks it FAILED and leaves the index
// untouched.
func (s *service) AddDocument(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	inMethodLogger := s.logger.With("traceId", job.TraceId, "JobId", job.Id, "DocId", job.JobPayload.DocumentId)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("Document_ingestion", time.Since(start)) }()

	ingestContext, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	job.CurrentStep = jobmodel.IngestInit

	// Extraction
	text, err := s.executeExtractionStep(inMethodLogger, &job)
	if err != nil {
		return s.ingestError(ingestContext, job, err, "EXTRACTION_FAILURE")
	}

	// Chunking
	chunks, err := s.executeChunkingStep(ingestContext, inMethodLogger, &job, text)
	if err != nil {
		return s.ingestError(ingestContext, job, err, "CHUNKING_FAILURE")
	}

	// Embedding
	entries, err := s.executeBatchEmbeddingStep(ingestContext, inMethodLogger, &job, chunks)
	if err != nil {
		return s.ingestError(ingestContext, job, err, "EMBEDDING_FAILURE")
	}

	// Indexing + durable save
	if err := s.executeIndexingStep(ingestContext, inMethodLogger, &job, entries); err != nil {
		return s.ingestError(ingestContext, job, err, "INDEXING_FAILURE")
	}

	//a new document can change any answer, cached ones included
	s.cache.Invalidate()
	metrics.SetIndexedChunks(s.index.Len())

	job.JobPayload.ChunkCount = len(chunks)
	job.Status = jobmodel.JobStatusComplete
	job.CurrentStep = jobmodel.Complete
	inMethodLogger.Info("document indexed", "chunks", len(chunks))
	return job
}

// RemoveDocument drops a document from the index and the durable store.
// Queries racing the removal see either all of the document's chunks or
// none of them.
func (s *service) RemoveDocument(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	inMethodLogger := s.logger.With("traceId", job.TraceId, "JobId", job.Id, "DocId", job.JobPayload.DocumentId)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("Document_removal", time.Since(start)) }()

	job.CurrentStep = jobmodel.RemoveInit
	docId := job.JobPayload.DocumentId

	doc, found, err := s.repo.GetDocument(ctx, docId)
	if err != nil {
		return s.jobError(job, err, "REMOVAL_FAILURE", true)
	}
	if !found {
		return s.jobError(job, ragmodel.ErrInvalidInput, "DOCUMENT_NOT_FOUND", false)
	}

	job.CurrentStep = jobmodel.RemoveIndexing
	if err := s.index.Remove(ctx, docId); err != nil {
		return s.jobError(job, err, "REMOVAL_FAILURE", true)
	}
	if err := s.repo.DeleteDocument(ctx, docId); err != nil {
		return s.jobError(job, err, "REMOVAL_FAILURE", true)
	}

	s.cache.Invalidate()
	metrics.SetIndexedChunks(s.index.Len())

	job.JobPayload.DocumentName = doc.Name
	job.Status = jobmodel.JobStatusComplete
	job.CurrentStep = jobmodel.Complete
	inMethodLogger.Info("document removed", "name", doc.Name)
	return job
}

// RegisterDocument persists the PENDING record before the ingest job
// runs, so the document shows up in listings while it is still queued.
func (s *service) RegisterDocument(ctx context.Context, doc ragmodel.Document) error {
	if doc.Status == "" {
		doc.Status = ragmodel.DocStatusPending
	}
	return s.repo.SaveDocument(ctx, doc, nil)
}

func (s *service) GetDocument(ctx context.Context, docId string) (ragmodel.Document, bool, error) {
	return s.repo.GetDocument(ctx, docId)
}

func (s *service) ListDocuments(ctx context.Context) ([]ragmodel.Document, error) {
	return s.repo.ListDocuments(ctx)
}

func (s *service) ListAuditLog(ctx context.Context, limit int) ([]ragmodel.AuditRecord, error) {
	if limit <= 0 || limit > config.AuditListLimit {
		limit = config.AuditListLimit
	}
	return s.auditStore.List(ctx, limit)
}
