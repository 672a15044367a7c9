package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecKarfonta/graphrag/internal/config"
	"github.com/alecKarfonta/graphrag/internal/graph"
	httpx "github.com/alecKarfonta/graphrag/internal/http"
	httpH "github.com/alecKarfonta/graphrag/internal/http/handlers"
	"github.com/alecKarfonta/graphrag/internal/ingest/chunker"
	"github.com/alecKarfonta/graphrag/internal/ingest/extractor"
	"github.com/alecKarfonta/graphrag/internal/ingest/pipeline"
	"github.com/alecKarfonta/graphrag/internal/observability"
	"github.com/alecKarfonta/graphrag/internal/platform/cache"
	"github.com/alecKarfonta/graphrag/internal/platform/llm"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
	"github.com/alecKarfonta/graphrag/internal/platform/neo4jdb"
	"github.com/alecKarfonta/graphrag/internal/platform/ner"
	"github.com/alecKarfonta/graphrag/internal/platform/qdrant"
	"github.com/alecKarfonta/graphrag/internal/retrieval/hybrid"
	"github.com/alecKarfonta/graphrag/internal/retrieval/keyword"
	"github.com/alecKarfonta/graphrag/internal/retrieval/planner"
	"github.com/alecKarfonta/graphrag/internal/retrieval/reasoning"
	"github.com/alecKarfonta/graphrag/internal/services"
)

const (
	exitOK            = 0
	exitUnexpected    = 1
	exitInvalidConfig = 2
	exitStoreDown     = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return exitInvalidConfig
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		return exitUnexpected
	}
	defer log.Sync()

	// Store clients. Qdrant is required; without NEO4J_URI the node runs
	// with graph features disabled. Cache, NER and LLM are optional
	// collaborators.
	neo, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Error("neo4j init failed", "error", err)
		return exitStoreDown
	}
	if neo != nil {
		defer neo.Close(context.Background())
	}

	var vec qdrant.Store
	vec, err = qdrant.New(log, qdrant.ConfigFromEnv())
	if err != nil {
		log.Error("qdrant init failed", "error", err)
		return exitStoreDown
	}

	redisCache, err := cache.NewFromEnv(log)
	if err != nil {
		log.Warn("redis cache unavailable, running without memoization", "error", err)
		redisCache = nil
	}
	if redisCache != nil {
		defer redisCache.Close()
	}

	llmClient, err := llm.NewFromEnv(log)
	if err != nil {
		log.Error("llm client init failed", "error", err)
		return exitInvalidConfig
	}
	if llmClient == nil {
		log.Warn("no LLM collaborator configured; rule-based paths only")
	}
	nerClient, err := ner.NewFromEnv(log)
	if err != nil {
		log.Error("ner client init failed", "error", err)
		return exitInvalidConfig
	}

	var graphStore graph.Store
	if neo != nil {
		graphStore, err = graph.New(log, neo)
		if err != nil {
			log.Error("graph store init failed", "error", err)
			return exitStoreDown
		}
	} else {
		log.Warn("no NEO4J_URI configured; graph features disabled")
	}

	// Keyword index lives in-process; rebuild from the graph so restarts
	// keep the lexical strategy.
	keywordIndex := keyword.NewIndex()
	if graphStore != nil {
		rebuildCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		chunks, err := graphStore.AllChunks(rebuildCtx, "")
		cancel()
		if err != nil {
			log.Warn("keyword index rebuild failed", "error", err)
		} else {
			keywordIndex.Reset(chunks)
			log.Info("keyword index rebuilt", "chunks", len(chunks))
		}
	}

	metrics := observability.NewMetrics()

	chk := chunker.New(log, chunker.DefaultConfig(), llmClient)
	ext := extractor.New(log, nerClient, llmClient, cfg.DisableLLMFallback)

	var embedder pipeline.Embedder
	if llmClient != nil {
		embedder = llmClient
	}
	pipe, err := pipeline.New(pipeline.Deps{
		Log:       log,
		Chunker:   chk,
		Extractor: ext,
		Graph:     graphStore,
		Vec:       vec,
		Embedder:  embedder,
		Keyword:   keywordIndex,
		Cache:     redisCache,
	}, pipeline.Config{
		ChunkConcurrency:  cfg.IngestChunkConcurrency,
		GlobalConcurrency: cfg.IngestGlobalConcurrency,
		ExtractTimeout:    cfg.ExtractTimeout,
	})
	if err != nil {
		log.Error("pipeline init failed", "error", err)
		return exitUnexpected
	}

	var genReader planner.GenerationReader
	if redisCache != nil {
		genReader = redisCache
	}
	plannerSvc, err := planner.New(log, cfg.Vocabulary, graphStore, nerClient, llmClient, genReader, cfg.DisableLLMFallback)
	if err != nil {
		log.Error("planner init failed", "error", err)
		return exitInvalidConfig
	}

	var retrEmbedder hybrid.Embedder
	if llmClient != nil {
		retrEmbedder = llmClient
	}
	retriever := hybrid.New(log, hybrid.Config{
		GlobalTimeout:   cfg.RetrieveGlobalTimeout,
		StrategyTimeout: cfg.RetrieveStrategyTimeout,
		CacheTTL:        cfg.RetrievalCacheTTL,
	}, graphStore, vec, retrEmbedder, keywordIndex, redisCache, metrics)

	reasoner := reasoning.New(log, graphStore, cfg.Vocabulary.CausalRelationTypes)

	queryService := services.NewQueryService(log, plannerSvc, retriever, reasoner, llmClient, cfg.DisableLLMFallback)
	documentService := services.NewDocumentService(log, pipe, graphStore, vec, metrics)

	router := httpx.NewRouter(httpx.RouterConfig{
		Log:     log,
		Metrics: metrics,
		HealthHandler: httpH.NewHealthHandler(map[string]func() bool{
			"graph_store": func() bool { return graphStore != nil },
			"vector_store": func() bool {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_, err := vec.Count(ctx, nil)
				return err == nil
			},
		}),
		DocumentHandler:  httpH.NewDocumentHandler(documentService),
		SearchHandler:    httpH.NewSearchHandler(queryService),
		ReasoningHandler: httpH.NewReasoningHandler(queryService),
		GraphHandler:     httpH.NewGraphHandler(graphStore),
	})

	srv := httpx.NewServer(cfg.HTTPAddr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
		if err := httpx.Shutdown(context.Background(), srv, 15*time.Second); err != nil {
			log.Warn("shutdown incomplete", "error", err)
		}
		return exitOK
	case err := <-errCh:
		log.Error("http server failed", "error", err)
		return exitUnexpected
	}
}
