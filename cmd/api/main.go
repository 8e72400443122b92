package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/onelens/backend/internal/analysis"
	"github.com/onelens/backend/internal/api/handlers"
	cacheredis "github.com/onelens/backend/internal/cache/redis"
	"github.com/onelens/backend/internal/dedup"
	"github.com/onelens/backend/internal/embedding"
	"github.com/onelens/backend/internal/evaluation"
	"github.com/onelens/backend/internal/ingestion"
	"github.com/onelens/backend/internal/llm"
	"github.com/onelens/backend/internal/metrics"
	"github.com/onelens/backend/internal/middleware/ratelimit"
	"github.com/onelens/backend/internal/middleware/security"
	"github.com/onelens/backend/internal/middleware/validation"
	"github.com/onelens/backend/internal/scoring"
	"github.com/onelens/backend/internal/storage/sqlite"
	"github.com/onelens/backend/internal/vector/milvus"
	"github.com/onelens/backend/pkg/config"
	appLogger "github.com/onelens/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting OneLens API server")

	metrics.Init()

	db, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	featureIDs, err := db.ListFeatureIDs()
	if err != nil {
		appLogger.Fatal("Failed to count features", zap.Error(err))
	}
	metrics.FeaturesTotal.Set(float64(len(featureIDs)))

	var cache *cacheredis.Client
	if cfg.Redis.Enabled {
		cache, err = cacheredis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Embedding.CacheTTL)*time.Second,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer cache.Close()
	}

	var llmClient *llm.Client
	if cfg.LLM.APIKey != "" {
		llmClient = llm.NewClient(
			cfg.LLM.APIKey,
			cfg.LLM.Model,
			cfg.LLM.EmbeddingModel,
			cfg.LLM.Temperature,
			cfg.LLM.MaxTokens,
		)
	}

	provider := buildEmbeddingProvider(cfg, llmClient, cache)

	var index dedup.Index
	if cfg.Milvus.Enabled {
		milvusClient, err := milvus.NewClient(
			cfg.Milvus.Endpoint,
			cfg.Milvus.CollectionName,
			provider.Dimension(),
		)
		if err != nil {
			appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
		}
		defer milvusClient.Close()

		if err := milvusClient.CreateCollection(context.Background()); err != nil {
			appLogger.Fatal("Failed to create Milvus collection", zap.Error(err))
		}
		index = milvusClient
	}

	deduplicator := dedup.NewDeduplicator(db, index, provider, dedup.Config{
		AutoLinkThreshold: cfg.Dedup.AutoLinkThreshold,
		SearchThreshold:   cfg.Dedup.SearchThreshold,
		TopK:              cfg.Dedup.TopK,
		MaxTitleLength:    cfg.Dedup.MaxTitleLength,
	})

	sources := map[analysis.Kind]analysis.SourceFunc{}
	if llmClient != nil {
		sources = analysis.LLMSources(llmClient)
	} else {
		appLogger.Warn("No LLM API key configured, analysis signals disabled")
	}

	aggregator := analysis.NewAggregator(sources, db, analysis.Config{
		SignalTimeout: time.Duration(cfg.Analysis.SignalTimeoutSec) * time.Second,
		MaxWorkers:    cfg.Analysis.MaxWorkers,
	})

	var scoreCache scoring.ScoreCache
	if cache != nil {
		scoreCache = cache
	}

	engine, err := scoring.NewEngine(db, aggregator, scoreCache, cfg.Scoring.AlgorithmVersion)
	if err != nil {
		appLogger.Fatal("Failed to create scoring engine", zap.Error(err))
	}

	evaluator := evaluation.NewEvaluator(db)
	processor := ingestion.NewProcessor(deduplicator, cfg.Dedup.MaxTitleLength)

	app := buildApp(cfg, db, provider, deduplicator, engine, evaluator, processor)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

func buildEmbeddingProvider(cfg *config.Config, llmClient *llm.Client, cache *cacheredis.Client) embedding.Provider {
	var provider embedding.Provider

	switch cfg.Embedding.Provider {
	case "openai":
		if llmClient == nil {
			appLogger.Fatal("Embedding provider 'openai' requires an LLM API key")
		}
		provider = embedding.NewOpenAIProvider(llmClient, cfg.Embedding.Dimension)
	default:
		provider = embedding.NewLexicalProvider(cfg.Embedding.Dimension)
	}

	if cache != nil {
		provider = embedding.NewCachedProvider(provider, cache)
	}

	return provider
}

func buildApp(
	cfg *config.Config,
	db *sqlite.Client,
	provider embedding.Provider,
	deduplicator *dedup.Deduplicator,
	engine *scoring.Engine,
	evaluator *evaluation.Evaluator,
	processor *ingestion.Processor,
) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 120,
		Logger:               appLogger.GetLogger(),
	})
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		MaxDocumentSize: cfg.Server.BodyLimit,
		Logger:          appLogger.GetLogger(),
	}))

	requestHandler := handlers.NewRequestHandler(deduplicator)
	featureHandler := handlers.NewFeatureHandler(db, provider, engine)
	scoringHandler := handlers.NewScoringHandler(engine, evaluator)
	rfpHandler := handlers.NewRFPHandler(processor)
	wsHandler := handlers.NewWebSocketHandler(processor)

	api := app.Group("/api/v1")

	api.Post("/requests", requestHandler.HandleResolve)
	api.Post("/requests/search", requestHandler.HandleSearch)

	api.Post("/features", featureHandler.HandleCreate)
	api.Get("/features", featureHandler.HandleList)
	api.Get("/features/ranking", scoringHandler.HandleRanking)
	api.Get("/features/:id", featureHandler.HandleGet)
	api.Put("/features/:id", featureHandler.HandleUpdate)
	api.Delete("/features/:id", featureHandler.HandleDelete)

	api.Get("/features/:id/score", scoringHandler.HandleGetScore)
	api.Post("/features/:id/score", scoringHandler.HandleCalculate)
	api.Post("/scores/recalculate", scoringHandler.HandleRecalculateAll)
	api.Get("/scores/calibration", scoringHandler.HandleCalibration)

	api.Post("/rfp/process", rfpHandler.HandleProcess)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/rfp", websocket.New(wsHandler.HandleConnection))

	return app
}
