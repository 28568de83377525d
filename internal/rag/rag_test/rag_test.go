package rag_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/nkapre/docqa/internal/config"
	"github.com/nkapre/docqa/internal/domain/jobmodel"
	"github.com/nkapre/docqa/internal/domain/ragmodel"
	"github.com/nkapre/docqa/internal/rag"
	"github.com/nkapre/docqa/internal/rag/answercache"
	"github.com/nkapre/docqa/internal/rag/retriever"
	"github.com/nkapre/docqa/internal/rag/synth"
	"github.com/nkapre/docqa/internal/rag/vectorindex"
)

const policyText = "Refunds are processed within 30 days of the return being received. " +
	"All refund requests must include the original receipt."

type testHarness struct {
	service rag.Service
	embed   *MockEmbedder
	llm     *MockLLM
	repo    *MockRepo
	audit   *MockAuditStore
	index   *vectorindex.MemoryIndex
}

func newTestHarness() *testHarness {
	embed := &MockEmbedder{}
	llm := &MockLLM{}
	repo := NewMockRepo()
	audit := &MockAuditStore{}
	index := vectorindex.NewMemoryIndex()

	counter := 0
	newId := func() string {
		counter++
		return fmt.Sprintf("id-%d", counter)
	}

	s := rag.NewService(
		index,
		embed,
		retriever.New(embed, index),
		synth.New(llm),
		repo,
		audit,
		answercache.New(),
		newId,
	)
	return &testHarness{service: s, embed: embed, llm: llm, repo: repo, audit: audit, index: index}
}

func writeTempDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing temp doc: %v", err)
	}
	return path
}

func ingestJob(docId, docName, sourcePath string) jobmodel.Job {
	return jobmodel.Job{
		Id:      "job-" + docId,
		TraceId: "test-trace",
		JobType: jobmodel.JobTypeIngest,
		JobPayload: jobmodel.JobPayload{
			DocumentId:   docId,
			DocumentName: docName,
			SourcePath:   sourcePath,
		},
		Status: jobmodel.JobStatusRunning,
	}
}

func mustIngest(t *testing.T, h *testHarness, docId, docName, content string) {
	t.Helper()
	path := writeTempDoc(t, docName, content)
	result := h.service.AddDocument(context.Background(), ingestJob(docId, docName, path))
	if result.Status != jobmodel.JobStatusComplete {
		t.Fatalf("ingest of %s failed: step %v, error %+v", docName, result.CurrentStep, result.Error)
	}
}

func TestAskQuestion_GroundedFromIngestedDocument(t *testing.T) {
	h := newTestHarness()
	h.llm.OnGenerate = func(ctx context.Context, sys, prompt string) (string, error) {
		return "Refunds are processed within **30 days** [policy.txt].", nil
	}

	mustIngest(t, h, "doc-1", "policy.txt", policyText)

	answer := h.service.AskQuestion(context.Background(), "How long do refunds take?")

	if answer.Status != ragmodel.AnswerGrounded {
		t.Fatalf("status got %v, want GROUNDED", answer.Status)
	}
	if answer.Refused {
		t.Error("grounded answer flagged as refused")
	}
	if len(answer.Citations) != 1 || answer.Citations[0] != "policy.txt" {
		t.Errorf("citations got %v, want [policy.txt]", answer.Citations)
	}
	if answer.Confidence <= 0 {
		t.Errorf("confidence got %v, want > 0", answer.Confidence)
	}

	record, ok := h.audit.Last()
	if !ok {
		t.Fatal("no audit record written")
	}
	if record.Outcome != ragmodel.OutcomeAnswered {
		t.Errorf("audit outcome got %v, want answered", record.Outcome)
	}
	if record.Query != "How long do refunds take?" {
		t.Errorf("audit query got %q", record.Query)
	}
}

func TestAskQuestion_EmptyCorpusRefusesWithoutModelCall(t *testing.T) {
	h := newTestHarness()

	answer := h.service.AskQuestion(context.Background(), "How long do refunds take?")

	if answer.Status != ragmodel.AnswerRefused || !answer.Refused {
		t.Fatalf("got status %v refused=%v, want a refusal", answer.Status, answer.Refused)
	}
	if answer.Text != config.RefusalSentence {
		t.Errorf("refusal text got %q, want the exact refusal sentence", answer.Text)
	}
	if answer.Confidence != 0 {
		t.Errorf("refusal confidence got %v, want 0", answer.Confidence)
	}
	if h.llm.CallCount() != 0 {
		t.Errorf("model was called %d times on an empty corpus, want 0", h.llm.CallCount())
	}

	record, _ := h.audit.Last()
	if record.Outcome != ragmodel.OutcomeRefused {
		t.Errorf("audit outcome got %v, want refused", record.Outcome)
	}
}

func TestAskQuestion_IrrelevantQuestionRefuses(t *testing.T) {
	h := newTestHarness()
	mustIngest(t, h, "doc-1", "policy.txt", policyText)

	//embeds orthogonal to every indexed chunk, nothing clears the threshold
	answer := h.service.AskQuestion(context.Background(), "What is the capital of France?")

	if answer.Status != ragmodel.AnswerRefused {
		t.Fatalf("status got %v, want REFUSED", answer.Status)
	}
	if h.llm.CallCount() != 0 {
		t.Errorf("model was called %d times with no relevant context, want 0", h.llm.CallCount())
	}
}

func TestAskQuestion_EmptyQuestionRefuses(t *testing.T) {
	h := newTestHarness()
	mustIngest(t, h, "doc-1", "policy.txt", policyText)

	answer := h.service.AskQuestion(context.Background(), "   \n ")

	if answer.Status != ragmodel.AnswerRefused {
		t.Fatalf("status got %v, want REFUSED", answer.Status)
	}
	if h.llm.CallCount() != 0 {
		t.Error("model called for a blank question")
	}
}

func TestAskQuestion_EmbeddingFailureIsModelError(t *testing.T) {
	h := newTestHarness()
	h.embed.OnGetEmbedding = func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("quota: %w", ragmodel.ErrEmbeddingUnavailable)
	}

	answer := h.service.AskQuestion(context.Background(), "How long do refunds take?")

	if answer.Status != ragmodel.AnswerModelError {
		t.Fatalf("status got %v, want MODEL_ERROR", answer.Status)
	}
	if answer.Text == config.RefusalSentence {
		t.Error("infrastructure failure surfaced as a grounded refusal")
	}
	if answer.Refused {
		t.Error("model error flagged as refused")
	}

	record, _ := h.audit.Last()
	if record.Outcome != ragmodel.OutcomeError {
		t.Errorf("audit outcome got %v, want error", record.Outcome)
	}
}

func TestAskQuestion_AnswerRacingRemovalIsNotCached(t *testing.T) {
	h := newTestHarness()
	h.llm.OnGenerate = func(ctx context.Context, sys, prompt string) (string, error) {
		//the document disappears while the model is still generating
		result := h.service.RemoveDocument(context.Background(), jobmodel.Job{
			Id:         "job-remove",
			JobType:    jobmodel.JobTypeRemove,
			JobPayload: jobmodel.JobPayload{DocumentId: "doc-1"},
		})
		if result.Status != jobmodel.JobStatusComplete {
			t.Errorf("mid-generation removal failed: %+v", result.Error)
		}
		return "Refunds take **30 days** [policy.txt].", nil
	}
	mustIngest(t, h, "doc-1", "policy.txt", policyText)

	//retrieval ran against the pre-removal corpus, so this answer is
	//grounded - but it must not outlive the removal
	first := h.service.AskQuestion(context.Background(), "How long do refunds take?")
	if first.Status != ragmodel.AnswerGrounded {
		t.Fatalf("in-flight status got %v, want GROUNDED", first.Status)
	}

	second := h.service.AskQuestion(context.Background(), "How long do refunds take?")
	if second.Status != ragmodel.AnswerRefused {
		t.Fatalf("post-removal status got %v, want REFUSED", second.Status)
	}
	if second.Text != config.RefusalSentence {
		t.Errorf("post-removal text got %q, want the refusal sentence", second.Text)
	}
	if got := h.llm.CallCount(); got != 1 {
		t.Errorf("model calls got %d, want 1 - the stale answer was served from cache", got)
	}
}

func TestRemoveDocument_QuestionsStopBeingAnswered(t *testing.T) {
	h := newTestHarness()
	h.llm.OnGenerate = func(ctx context.Context, sys, prompt string) (string, error) {
		return "Refunds take **30 days** [policy.txt].", nil
	}
	mustIngest(t, h, "doc-1", "policy.txt", policyText)

	first := h.service.AskQuestion(context.Background(), "How long do refunds take?")
	if first.Status != ragmodel.AnswerGrounded {
		t.Fatalf("pre-removal status got %v, want GROUNDED", first.Status)
	}

	removeResult := h.service.RemoveDocument(context.Background(), jobmodel.Job{
		Id:         "job-remove",
		JobType:    jobmodel.JobTypeRemove,
		JobPayload: jobmodel.JobPayload{DocumentId: "doc-1"},
	})
	if removeResult.Status != jobmodel.JobStatusComplete {
		t.Fatalf("removal failed: %+v", removeResult.Error)
	}

	//identical question: neither the index nor the answer cache may serve it
	second := h.service.AskQuestion(context.Background(), "How long do refunds take?")
	if second.Status != ragmodel.AnswerRefused {
		t.Fatalf("post-removal status got %v, want REFUSED", second.Status)
	}
	if second.Text != config.RefusalSentence {
		t.Errorf("post-removal text got %q, want the refusal sentence", second.Text)
	}

	docs, _ := h.service.ListDocuments(context.Background())
	if len(docs) != 0 {
		t.Errorf("document list still has %d entries after removal", len(docs))
	}
}

func TestRemoveDocument_UnknownIdFailsJob(t *testing.T) {
	h := newTestHarness()

	result := h.service.RemoveDocument(context.Background(), jobmodel.Job{
		Id:         "job-remove",
		JobType:    jobmodel.JobTypeRemove,
		JobPayload: jobmodel.JobPayload{DocumentId: "no-such-doc"},
	})
	if result.Status != jobmodel.JobStatusError {
		t.Fatalf("status got %v, want error for unknown document", result.Status)
	}
}

func TestAddDocument_EmbeddingFailureMarksDocumentFailed(t *testing.T) {
	h := newTestHarness()
	h.embed.OnBatchEmbedding = func(ctx context.Context, chunks []string, isHuge bool) ([][]float32, error) {
		return nil, errors.New("provider down")
	}

	//handler persists the PENDING record before the job runs
	h.repo.SaveDocument(context.Background(), ragmodel.Document{
		Id:     "doc-1",
		Name:   "policy.txt",
		Status: ragmodel.DocStatusPending,
	}, nil)

	path := writeTempDoc(t, "policy.txt", policyText)
	result := h.service.AddDocument(context.Background(), ingestJob("doc-1", "policy.txt", path))

	if result.Status != jobmodel.JobStatusError {
		t.Fatalf("status got %v, want error", result.Status)
	}
	doc, found, _ := h.repo.GetDocument(context.Background(), "doc-1")
	if !found || doc.Status != ragmodel.DocStatusFailed {
		t.Errorf("document status got %v, want FAILED", doc.Status)
	}
	if doc.FailReason == "" {
		t.Error("failed document has no fail reason")
	}
	if h.index.Len() != 0 {
		t.Errorf("index has %d entries after a failed ingest, want 0", h.index.Len())
	}
}

func TestAddDocument_LifecycleProgression(t *testing.T) {
	h := newTestHarness()

	//the upload handler registers the document before the job runs
	if err := h.service.RegisterDocument(context.Background(), ragmodel.Document{
		Id:   "doc-1",
		Name: "policy.txt",
	}); err != nil {
		t.Fatalf("registering document: %v", err)
	}

	mustIngest(t, h, "doc-1", "policy.txt", policyText)

	want := []ragmodel.DocStatus{
		ragmodel.DocStatusPending,
		ragmodel.DocStatusChunked,
		ragmodel.DocStatusIndexed,
	}
	got := h.repo.StatusHistory("doc-1")
	if len(got) != len(want) {
		t.Fatalf("status history got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("status history got %v, want %v", got, want)
		}
	}
}

func TestAddDocument_UnsupportedTypeFailsJob(t *testing.T) {
	h := newTestHarness()

	path := writeTempDoc(t, "image.png", "not really an image")
	result := h.service.AddDocument(context.Background(), ingestJob("doc-1", "image.png", path))

	if result.Status != jobmodel.JobStatusError {
		t.Fatalf("status got %v, want error for unsupported type", result.Status)
	}
}

func TestSearch_DeterministicAcrossRuns(t *testing.T) {
	h := newTestHarness()
	//two documents with overlapping content, ordering must not flap
	mustIngest(t, h, "doc-a", "policy_a.txt", policyText)
	mustIngest(t, h, "doc-b", "policy_b.txt", "Refund windows differ by region. Refunds in the EU take 14 days.")

	var baseline []string
	for run := 0; run < 5; run++ {
		result, err := h.service.Search(context.Background(), "refund timing", 10)
		if err != nil {
			t.Fatalf("search run %d: %v", run, err)
		}
		var order []string
		for _, m := range result.Matches {
			order = append(order, m.Chunk.ChunkId)
		}
		if run == 0 {
			baseline = order
			if len(baseline) == 0 {
				t.Fatal("search returned nothing")
			}
			continue
		}
		if len(order) != len(baseline) {
			t.Fatalf("run %d returned %d matches, baseline %d", run, len(order), len(baseline))
		}
		for i := range order {
			if order[i] != baseline[i] {
				t.Fatalf("run %d position %d: got %s, baseline %s", run, i, order[i], baseline[i])
			}
		}
	}
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	h := newTestHarness()
	_, err := h.service.Search(context.Background(), "  ", 5)
	if !errors.Is(err, ragmodel.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestListAuditLog_NewestFirst(t *testing.T) {
	h := newTestHarness()

	h.service.AskQuestion(context.Background(), "first question about nothing")
	h.service.AskQuestion(context.Background(), "second question about nothing")

	records, err := h.service.ListAuditLog(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListAuditLog: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Query != "second question about nothing" {
		t.Errorf("newest record first, got %q", records[0].Query)
	}
}
