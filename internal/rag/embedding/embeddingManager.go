package embedding

import "context"

// Embedder is the pluggable embedding capability. Dimension and ModelID
// let the index validate compatibility before accepting vectors: mixing
// model versions invalidates similarity comparisons.
type Embedder interface {
	GetEmbedding(ctx context.Context, query string) ([]float32, error)
	BatchEmbedding(ctx context.Context, chunks []string, isHugeDataSet bool) ([][]float32, error)
	Dimension() int
	ModelID() string
}
