package openaiembedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nkapre/docqa/internal/config"
	"github.com/nkapre/docqa/internal/domain/ragmodel"
	"github.com/nkapre/docqa/internal/rag/embedding"
	"github.com/nkapre/docqa/pkg/logger_i"
)

// Alternative embedding provider. Same contract as the Google adapter so
// the two are interchangeable behind embedding.Embedder.
type client struct {
	openAi    openai.Client
	model     string
	dimension int
	logger    *logger_i.Logger
}

func GetOpenAIEmbeddingClient(modelName string, apikey string) embedding.Embedder {
	if apikey == "" {
		return nil
	}
	return &client{
		openAi:    openai.NewClient(option.WithAPIKey(apikey)),
		model:     modelName,
		dimension: int(config.EmbeddingOutputDimensionality),
		logger:    logger_i.NewLogger("openai_embedding"),
	}
}

func (c *client) Dimension() int {
	return c.dimension
}

func (c *client) ModelID() string {
	return c.model
}

func (c *client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.BatchEmbedding(ctx, []string{query}, false)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) BatchEmbedding(ctx context.Context, chunks []string, isHugeDataSet bool) ([][]float32, error) {
	log := c.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	callCtx, cancel := context.WithTimeout(ctx, config.EmbeddingCallTimeout)
	defer cancel()

	resp, err := c.openAi.Embeddings.New(callCtx, openai.EmbeddingNewParams{
		Model:      openai.EmbeddingModel(c.model),
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: chunks},
		Dimensions: openai.Int(int64(c.dimension)),
	})
	if err != nil {
		log.Error("Error getting Embeddings from OpenAI", "error", err.Error())
		return nil, fmt.Errorf("openai embed: %v: %w", err, ragmodel.ErrEmbeddingUnavailable)
	}
	if len(resp.Data) != len(chunks) {
		return nil, fmt.Errorf("openai embed returned %d vectors for %d chunks: %w", len(resp.Data), len(chunks), ragmodel.ErrEmbeddingUnavailable)
	}

	results := make([][]float32, len(resp.Data))
	for i, datum := range resp.Data {
		vector := make([]float32, len(datum.Embedding))
		for j, v := range datum.Embedding {
			vector[j] = float32(v)
		}
		results[i] = vector
	}
	return results, nil
}
