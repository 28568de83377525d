package openaillm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nkapre/docqa/internal/config"
	"github.com/nkapre/docqa/internal/domain/ragmodel"
	"github.com/nkapre/docqa/internal/rag/llm"
	"github.com/nkapre/docqa/pkg/logger_i"
)

type llmClient struct {
	client    openai.Client
	modelName string
	logger    *logger_i.Logger
}

func GetOpenAIClient(modelName string, apikey string) llm.Provider {
	if apikey == "" {
		return nil
	}
	return &llmClient{
		client:    openai.NewClient(option.WithAPIKey(apikey)),
		modelName: modelName,
		logger:    logger_i.NewLogger("llm_openai"),
	}
}

func (c *llmClient) Generate(ctx context.Context, systemInstructions string, prompt string) (string, error) {
	log := c.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	callCtx, cancel := context.WithTimeout(ctx, config.GenerationCallTimeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemInstructions),
			openai.UserMessage(prompt),
		},
		Temperature:         openai.Float(float64(config.ModelTemperature)),
		TopP:                openai.Float(float64(config.ModelTopP)),
		MaxCompletionTokens: openai.Int(int64(config.ModelMaxOutputTokens)),
	})
	if err != nil {
		log.Error("OpenAI generation failed", "error", err)
		return "", fmt.Errorf("openai generate: %v: %w", err, ragmodel.ErrModelFailure)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai returned empty output: %w", ragmodel.ErrModelFailure)
	}
	return resp.Choices[0].Message.Content, nil
}
