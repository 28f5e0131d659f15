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

	"github.com/campus-agent/backend/internal/api/handlers"
	cache "github.com/campus-agent/backend/internal/cache/redis"
	"github.com/campus-agent/backend/internal/chat"
	"github.com/campus-agent/backend/internal/gaps"
	"github.com/campus-agent/backend/internal/llm"
	"github.com/campus-agent/backend/internal/metrics"
	"github.com/campus-agent/backend/internal/middleware/ratelimit"
	"github.com/campus-agent/backend/internal/middleware/security"
	"github.com/campus-agent/backend/internal/middleware/validation"
	"github.com/campus-agent/backend/internal/normalize"
	"github.com/campus-agent/backend/internal/retrieval"
	"github.com/campus-agent/backend/internal/session"
	"github.com/campus-agent/backend/internal/storage/sqlite"
	"github.com/campus-agent/backend/internal/vector/milvus"
	"github.com/campus-agent/backend/pkg/config"
	appLogger "github.com/campus-agent/backend/pkg/logger"
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

	appLogger.Info("Starting Campus Assistant API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *cache.Client
	if cfg.Redis.Enabled {
		cacheClient, err = cache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer cacheClient.Close()
	}

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.APIKey,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	err = milvusClient.CreateCollection(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to create collection", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	gateway := retrieval.NewGateway(llmClient, milvusClient, cacheClient, cfg.Milvus.VectorDim)

	sessions := buildSessionStore(cfg, cacheClient)
	if memStore, ok := sessions.(*session.MemoryStore); ok {
		defer memStore.Stop()
	}

	normalizer := normalize.NewNormalizer(llmClient)
	ledger := gaps.NewLedger(sqliteClient, normalizer, cfg.Chat.SimilarityThreshold)

	orchestrator := chat.NewOrchestrator(sessions, llmClient, gateway, ledger, sqliteClient, cfg.Chat.TopK)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{Logger: appLogger.GetLogger()}))

	chatHandler := handlers.NewChatHandler(orchestrator)
	gapsHandler := handlers.NewGapsHandler(ledger)
	wsHandler := handlers.NewWebSocketHandler(orchestrator)

	api := app.Group("/api/v1")

	api.Post("/chat", chatHandler.HandleChat)

	api.Use("/chat/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/chat/ws", websocket.New(wsHandler.HandleConnection))

	api.Get("/gaps", gapsHandler.ListGaps)
	api.Get("/gaps/:id", gapsHandler.GetGap)
	api.Post("/gaps/:id/resolve", gapsHandler.ResolveGap)
	api.Post("/gaps/:id/assign", gapsHandler.AssignGap)
	api.Delete("/gaps/:id", gapsHandler.DeleteGap)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		if err := sqliteClient.Ping(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unavailable",
			})
		}
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

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

func buildSessionStore(cfg *config.Config, cacheClient *cache.Client) session.Store {
	if cfg.Session.Backend == "redis" && cacheClient != nil {
		appLogger.Info("Using Redis session store")
		return session.NewRedisStore(cacheClient, cfg.Session.Timeout, cfg.Chat.HistoryLimit)
	}

	return session.NewMemoryStore(cfg.Session.Timeout, cfg.Session.SweepInterval, cfg.Chat.HistoryLimit)
}
