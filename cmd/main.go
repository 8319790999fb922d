package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contract-qa-platform/internal/ai"
	"contract-qa-platform/internal/config"
	"contract-qa-platform/internal/logger"
	"contract-qa-platform/internal/telemetry"
	"contract-qa-platform/middleware"
	"contract-qa-platform/routes"
	"contract-qa-platform/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Initialize tracing
	shutdownTracer, err := telemetry.InitTracer("contract-qa-platform")
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	// Connect to Redis
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Vector store and AI clients
	store, err := services.NewQdrantStore(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Qdrant:", err)
	}
	defer store.Close()

	embedder, err := ai.NewGoogleEmbedder(cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	geminiClient, err := ai.NewGeminiClient(cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	var reranker ai.Reranker
	if cfg.RerankerEnabled && cfg.RerankerAPIKey != "" {
		reranker = ai.NewCohereReranker(cfg)
	} else {
		logger.Warn("Reranker disabled, falling back to search-score ordering")
	}

	// Document pipeline
	processor, err := services.NewDocumentProcessor(cfg)
	if err != nil {
		log.Fatal("Failed to initialize document processor:", err)
	}

	indexer, err := services.NewDocumentIndexer(cfg, processor, embedder, store)
	if err != nil {
		log.Fatal("Failed to initialize indexer:", err)
	}

	registry := services.NewRegistry(mongoClient, cfg.DBName)
	queryEngine := services.NewQueryEngine(cfg, store, embedder, reranker, geminiClient, metrics)

	var queryCache *services.QueryCache
	if cfg.QueryCacheEnabled {
		queryCache = services.NewQueryCache(rdb, time.Duration(cfg.QueryCacheTTL)*time.Second)
	}

	// Asynq client for background processing
	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	// Setup routes
	routes.SetupHealthRoutes(router, mongoClient, rdb)
	routes.SetupDocumentRoutes(router, cfg, registry, indexer, queueClient)
	routes.SetupQueryRoutes(router, queryEngine, registry, queryCache)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
