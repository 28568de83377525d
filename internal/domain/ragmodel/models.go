package ragmodel

import "time"

type DocStatus string
type DocType string
type AnswerStatus string
type AuditOutcome string

const (
	DocStatusPending DocStatus = "PENDING"
	DocStatusChunked DocStatus = "CHUNKED"
	DocStatusIndexed DocStatus = "INDEXED"
	DocStatusFailed  DocStatus = "FAILED"
)

var (
	PDF  DocType = "PDF"
	DOCX DocType = "DOCX"
	TXT  DocType = "TXT"
	ERR  DocType = "ERROR"
)

const (
	//every query resolves to exactly one of these, errors included
	AnswerGrounded   AnswerStatus = "GROUNDED"
	AnswerRefused    AnswerStatus = "REFUSED"
	AnswerModelError AnswerStatus = "MODEL_ERROR"

	OutcomeAnswered AuditOutcome = "answered"
	OutcomeRefused  AuditOutcome = "refused"
	OutcomeError    AuditOutcome = "error"
)

type Document struct {
	Id          string    `json:"source_doc_id"`
	Name        string    `json:"doc_name"`
	ByteSize    int64     `json:"byte_size"`
	IngestedAt  time.Time `json:"ingested_at"`
	Status      DocStatus `json:"status"`
	ContentType DocType   `json:"contentType"`
	ChunkCount  int       `json:"chunk_count"`
	FailReason  string    `json:"fail_reason,omitempty"`
}

// Chunk is immutable once created. Offsets are rune positions into the
// normalized document text.
type Chunk struct {
	ChunkId     string `json:"chunk_id"`
	DocId       string `json:"source_doc_id"`
	DocName     string `json:"doc_name"`
	Seq         int    `json:"chunk_order"`
	Text        string `json:"content"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

type IndexEntry struct {
	Chunk   Chunk     `json:"chunk"`
	Vector  []float32 `json:"vector"`
	ModelID string    `json:"embedding_model"`
}

// ScoredChunk carries a similarity score in [0,1] ((cosine+1)/2).
type ScoredChunk struct {
	Chunk   Chunk   `json:"chunk"`
	DocName string  `json:"doc_name"`
	Score   float64 `json:"score"`
}

// RetrievalResult is ordered highest score first; ties break by document
// name then chunk sequence so repeated runs return identical orderings.
type RetrievalResult struct {
	Matches []ScoredChunk `json:"matches"`
}

type AnswerResult struct {
	Text       string       `json:"answer"`
	Citations  []string     `json:"citations"`
	Confidence float64      `json:"confidence"`
	Status     AnswerStatus `json:"status"`
	Refused    bool         `json:"refused"`
}

// AuditRecord is append-only, never mutated after creation.
type AuditRecord struct {
	Id         string       `json:"id"`
	Query      string       `json:"query"`
	Timestamp  time.Time    `json:"timestamp"`
	Outcome    AuditOutcome `json:"outcome"`
	Confidence float64      `json:"confidence"`
	CitedDocs  []string     `json:"cited_docs"`
}
