package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nkapre/docqa/internal/adapter/utils"
	"github.com/nkapre/docqa/internal/config"
	"github.com/nkapre/docqa/internal/data/boltstore"
	"github.com/nkapre/docqa/internal/data/store"
	"github.com/nkapre/docqa/internal/domain/jobmodel"
	"github.com/nkapre/docqa/internal/domain/ragmodel"
	"github.com/nkapre/docqa/internal/handlers"
	"github.com/nkapre/docqa/internal/job"
	"github.com/nkapre/docqa/internal/mcpserver"
	"github.com/nkapre/docqa/internal/metrics"
	"github.com/nkapre/docqa/internal/rag"
	"github.com/nkapre/docqa/internal/rag/answercache"
	"github.com/nkapre/docqa/internal/rag/embedding"
	"github.com/nkapre/docqa/internal/rag/embedding/googleembedding"
	"github.com/nkapre/docqa/internal/rag/embedding/openaiembedding"
	"github.com/nkapre/docqa/internal/rag/llm"
	"github.com/nkapre/docqa/internal/rag/llm/gemini"
	"github.com/nkapre/docqa/internal/rag/llm/openaillm"
	"github.com/nkapre/docqa/internal/rag/retriever"
	"github.com/nkapre/docqa/internal/rag/synth"
	"github.com/nkapre/docqa/internal/rag/vectorindex"
	"github.com/nkapre/docqa/internal/rag/vectorindex/qdrantindex"
	"github.com/nkapre/docqa/internal/server"
	"github.com/nkapre/docqa/internal/worker"
	"github.com/nkapre/docqa/pkg/logger_i"
)

var (
	listenAddr        string
	mcpAddr           string
	boltPath          string
	provider          string
	vectorBackend     string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.StringVar(&mcpAddr, "mcp-addr", "", "serve MCP over HTTP at this address (disabled when empty)")
	flag.StringVar(&boltPath, "bolt-path", config.BoltStorePath, "path of the durable document store")
	flag.StringVar(&provider, "provider", "gemini", "model provider: gemini or openai")
	flag.StringVar(&vectorBackend, "vector-backend", "memory", "vector index backend: memory or qdrant")
	flag.Parse()

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//init job service and job store
	serviceConfig := job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
	}
	logger.Info("Starting job service")

	if redisJobStore := store.GetRedisJobStore(serviceContext); redisJobStore != nil {
		serviceConfig.JobStore = redisJobStore
	} else {
		logger.Error("Redis job store is offline, using in-memory fallback")
		serviceConfig.JobStore = store.InitInMemoryJobStore()
	}
	service := job.InitJobService(serviceConfig)

	var auditStore ragmodel.AuditStore
	if redisAuditStore := store.GetRedisAuditStore(serviceContext); redisAuditStore != nil {
		auditStore = redisAuditStore
	} else {
		logger.Error("Redis audit store is offline, using in-memory fallback")
		auditStore = store.InitInMemoryAuditStore()
	}

	//durable document store
	boltStore, err := boltstore.NewBoltStore(boltPath)
	if err != nil {
		logger.Error("Could not open the document store. Shutting down.", "error", err)
		return
	}
	defer boltStore.Close()

	//model providers
	var embeddingService embedding.Embedder
	var llmProvider llm.Provider
	if provider == "openai" {
		embeddingService = openaiembedding.GetOpenAIEmbeddingClient(config.OpenAIEmbeddingModel, config.OpenAIAPIKey())
		llmProvider = openaillm.GetOpenAIClient(config.OpenAIModelName, config.OpenAIAPIKey())
	} else {
		embeddingService = googleembedding.GetGoogleEmbeddingClient(serviceContext, config.GoogleEmbeddingModel, config.GoogleAPIKey())
		llmProvider = gemini.GetGeminiClient(serviceContext, config.GeminiModelName, config.GoogleAPIKey())
	}

	if embeddingService == nil || llmProvider == nil {
		logger.Error("One or more external services failed to initialize. Shutting down.")
		logger.Debug("Available services : ", "EmbeddingService", embeddingService != nil, "LLMProvider", llmProvider != nil)
		return
	}

	//vector index
	var index vectorindex.Index
	if vectorBackend == "qdrant" {
		qdrant := qdrantindex.GetQdrantIndex(serviceContext)
		if qdrant == nil {
			logger.Error("Qdrant backend requested but unreachable. Shutting down.")
			return
		}
		index = qdrant
	} else {
		index = vectorindex.NewMemoryIndex()
	}

	//rebuild the index from the durable store - a restarted instance must
	//answer exactly like the one before it
	entries, err := boltStore.LoadEntries(serviceContext)
	if err != nil {
		logger.Error("Could not load stored entries. Shutting down.", "error", err)
		return
	}
	if len(entries) > 0 {
		if err := index.InsertBatch(serviceContext, entries); err != nil {
			logger.Error("Index rebuild failed. Shutting down.", "error", err)
			return
		}
		logger.Info("Index rebuilt from durable store", "entries", len(entries))
	}
	metrics.SetIndexedChunks(index.Len())

	ragService := rag.NewService(
		index,
		embeddingService,
		retriever.New(embeddingService, index),
		synth.New(llmProvider),
		boltStore,
		auditStore,
		answercache.New(),
		utils.GetNewUUID,
	)

	handlers.InitJobHandler(service, ragService)

	//init worker pool
	worker.InitServices(service, ragService)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//optional MCP surface
	if mcpAddr != "" {
		mcpSrv := mcpserver.NewServer(ragService)
		go func() {
			if err := mcpSrv.RunHTTP(serviceContext, mcpAddr); err != nil {
				logger.Error("MCP server stopped", "error", err)
			}
		}()
	}

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}
