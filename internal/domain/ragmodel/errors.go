package ragmodel

import "errors"

// Error taxonomy. Ingestion errors mark the document FAILED and never
// commit partial chunk sets to the index. Query path errors resolve to a
// typed AnswerResult instead of propagating.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	ErrDimensionMismatch    = errors.New("embedding dimension or model mismatch")
	ErrModelFailure         = errors.New("generation provider failure")
	ErrStorageFault         = errors.New("storage fault")
)
