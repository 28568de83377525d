package config

import (
	"log/slog"
	"os"
	"time"
)

const (
	IS_PROD        = false
	LOG_LEVEL_PROD = slog.LevelInfo
	TRACE_ID_KEY   = "traceId"

	NoAuthBypass = true //local dev only, bearer auth is skipped
	AuthToken    = ""

	RATE_LIMIT_PER_SECOND       = 2
	BURST_RATE_LIMIT_PER_SECOND = 5

	//chunking - same config always yields the same boundaries, index rebuilds depend on it
	ChunkTargetSize  = 1000 //characters
	ChunkOverlap     = 150
	ChunkMinSize     = 80 //trailing fragments below this are dropped unless they are the only chunk
	MaxDocumentBytes = 32 << 20

	//retrieval
	//similarity scores are cosine normalized to [0,1] via (cosine+1)/2
	//the same convention is used for the index threshold, retriever minScore and confidence
	RetrievalTopK        = 5
	RetrievalMinScore    = 0.60
	MaxContextChars      = 8000
	CacheSimilarityScore = 0.97 //semantic answer cache cutoff

	EmbeddingOutputDimensionality int32 = 1536
	EmbeddingBatchSize                  = 100

	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 30 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//external call budgets - a timed out call maps to a retryable error, never a hung caller
	EmbeddingCallTimeout  = 30 * time.Second
	GenerationCallTimeout = 60 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	//durable state
	BoltStorePath = "docqa.db"

	//vectorDB (optional qdrant backend)
	QdrantCollectionName   = "docqa-chunks"
	QdrantHost             = ""
	QdrantGrpcPort         = 6334
	QdrantUseTLS           = false
	QdrantPoolSize         = 1
	QdrantKeepAliveTimeout = 30 * time.Second

	//llm
	GeminiModelName      = "gemini-2.5-flash-lite-preview-09-2025"
	GoogleEmbeddingModel = "gemini-embedding-001"
	OpenAIModelName      = "gpt-4o-mini"
	OpenAIEmbeddingModel = "text-embedding-3-small"

	//low temperature for factual grounding
	ModelTemperature     float32 = 0.1
	ModelTopP            float32 = 0.8
	ModelMaxOutputTokens int32   = 1024

	//the refusal sentence is matched verbatim on the way back - do not reword it
	RefusalSentence = "The uploaded documents do not contain enough information to answer this question."

	SystemPrompt = `You are a precise Semantic Search Engine and RAG assistant.
Your task is to answer user questions EXCLUSIVELY using the provided context from uploaded documents.

STRICT RULES:
1. ONLY use the provided document context.
2. If the answer is not present in the provided context, or if the context is empty, you MUST reply exactly: "` + RefusalSentence + `"
3. NEVER use your internal external knowledge or pull random facts.
4. Each answer must be grounded in facts from the text.
5. Provide citations in your response using the format [Document Name].
6. Highlight key terms by wrapping them in **double asterisks**.
7. Maintain a professional, objective tone.`

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	RedisPassword = ""

	//redis has 16 DB we can use
	RedisJobStore   = 0
	RedisAuditStore = 2

	//redis timeouts
	RedisJobStoreTTL = 24 * time.Hour

	//audit listing page size
	AuditListLimit = 200

	//mcp
	MCPServerName = "docqa"
)

func GoogleAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}
