package main

import (
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

	"github.com/sitebot/backend/internal/answer"
	"github.com/sitebot/backend/internal/api/handlers"
	"github.com/sitebot/backend/internal/crawler"
	"github.com/sitebot/backend/internal/metrics"
	"github.com/sitebot/backend/internal/middleware/ratelimit"
	"github.com/sitebot/backend/internal/middleware/security"
	"github.com/sitebot/backend/internal/middleware/validation"
	"github.com/sitebot/backend/internal/scan"
	"github.com/sitebot/backend/internal/session"
	"github.com/sitebot/backend/internal/storage/sqlite"
	"github.com/sitebot/backend/pkg/config"
	appLogger "github.com/sitebot/backend/pkg/logger"
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

	appLogger.Info("Starting Sitebot API Server")

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

	var sessions session.Store
	if cfg.Redis.Enabled {
		sessions, err = session.NewRedisStore(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Chat.SessionTTLMin)*time.Minute,
		)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
	} else {
		sessions = session.NewMemoryStore(
			time.Duration(cfg.Chat.SessionTTLMin)*time.Minute,
			time.Minute,
		)
	}
	defer sessions.Close()

	fetcher := crawler.NewFetcher(time.Duration(cfg.Crawler.FetchTimeoutSec) * time.Second)

	var renderer crawler.Renderer
	if cfg.Crawler.RenderEnabled {
		rodRenderer := crawler.NewRodRenderer(
			cfg.Crawler.RenderPoolSize,
			time.Duration(cfg.Crawler.RenderTimeoutSec)*time.Second,
			time.Duration(cfg.Crawler.RenderGraceMS)*time.Millisecond,
		)
		defer rodRenderer.Close()
		renderer = rodRenderer
	}

	scheduler := crawler.NewScheduler(fetcher, renderer, crawler.Config{
		MaxPages:        cfg.Crawler.MaxPages,
		PolitenessDelay: time.Duration(cfg.Crawler.PolitenessDelayMS) * time.Millisecond,
		RespectRobots:   cfg.Crawler.RespectRobots,
	})

	scanService := scan.NewService(sqliteClient, scheduler, time.Duration(cfg.Crawler.ScanBudgetSec)*time.Second)
	answerEngine := answer.NewEngine(sqliteClient)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-User-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(validation.Middleware(validation.Config{
		MaxMessageLength: cfg.Chat.MaxMessageLength,
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Chat.RateLimitPerMin,
	})
	defer limiter.Stop()

	websiteHandler := handlers.NewWebsiteHandler(sqliteClient, scanService)
	chatbotHandler := handlers.NewChatbotHandler(sqliteClient, cfg.Server.BaseURL)
	chatHandler := handlers.NewChatHandler(answerEngine, sessions, cfg.Chat.MaxMessageLength)
	wsHandler := handlers.NewWebSocketHandler(answerEngine, sessions)
	embedHandler := handlers.NewEmbedHandler(sqliteClient, cfg.Server.BaseURL)

	api := app.Group("/api/v1")

	api.Post("/websites/scan", limiter.Dashboard(), websiteHandler.ScanWebsite)
	api.Get("/websites", websiteHandler.ListWebsites)
	api.Get("/websites/:id", websiteHandler.GetWebsite)
	api.Delete("/websites/:id", websiteHandler.DeleteWebsite)

	api.Post("/chatbots", limiter.Dashboard(), chatbotHandler.CreateChatbot)
	api.Get("/chatbots", chatbotHandler.ListChatbots)
	api.Get("/chatbots/:id", chatbotHandler.GetChatbot)
	api.Put("/chatbots/:id", chatbotHandler.UpdateChatbot)
	api.Post("/chatbots/:id/knowledge", chatbotHandler.AttachKnowledge)
	api.Delete("/chatbots/:id", chatbotHandler.DeleteChatbot)

	api.Post("/chat/:chatbotId/messages", limiter.Widget(), chatHandler.SendMessage)
	api.Get("/chat/:chatbotId/history", limiter.Widget(), chatHandler.GetHistory)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Get("/embed/:script", embedHandler.Script)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat/:chatbotId", websocket.New(wsHandler.HandleConnection))

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
