package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/quizreel/api/internal/client"
	"github.com/quizreel/api/internal/config"
	"github.com/quizreel/api/internal/handler"
	"github.com/quizreel/api/internal/middleware"
	"github.com/quizreel/api/internal/service"
	"github.com/quizreel/api/internal/store"
	"github.com/quizreel/api/internal/worker"
	ws "github.com/quizreel/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client (asynq backend + rate limiting)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// External generative clients; unconfigured clients fall back to
	// mock output so development works without API keys
	falClient := client.NewFalClient(&cfg.Fal)
	elevenLabsClient := client.NewElevenLabsClient(&cfg.ElevenLabs)
	rendererClient := client.NewRendererClient(&cfg.Renderer)

	if !falClient.IsConfigured() {
		log.Println("Info: Fal not configured, using mock image generation")
	}
	if !elevenLabsClient.IsConfigured() {
		log.Println("Info: ElevenLabs not configured, using mock narration")
	}
	if !rendererClient.IsConfigured() {
		log.Println("Info: renderer service not configured, using mock rendering")
	}

	// One store, one service, one worker per process — wired here, no
	// package-level singletons
	jobStore := store.NewJobStore()
	videoService := service.NewVideoService(jobStore, asynqClient, &cfg.Storage, &cfg.Retention)

	// Initialize handlers
	videoHandler := handler.NewVideoHandler(videoService, validate)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"fal":        falClient.IsConfigured(),
				"elevenlabs": elevenLabsClient.IsConfigured(),
				"renderer":   rendererClient.IsConfigured(),
				"jobs":       jobStore.Len(),
			},
		})
	})

	// API routes; bearer auth only when a secret is configured
	var api fiber.Router
	if cfg.JWT.Secret != "" {
		authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
		api = app.Group("/api", authMiddleware.Authenticate())
	} else {
		log.Println("Info: JWT secret not set, API is open")
		api = app.Group("/api")
	}

	videos := api.Group("/videos")
	videos.Post("/generate", rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerHour), videoHandler.Generate)
	videos.Get("/status/:jobId", videoHandler.Status)
	videos.Get("/download/:jobId", videoHandler.Download)
	videos.Get("/assets/:jobId/:filename", videoHandler.Asset)
	videos.Delete("/:jobId", videoHandler.Delete)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server and the retention scheduler
	go startWorkerServer(cfg, videoService, falClient, elevenLabsClient, rendererClient, hub)
	go startScheduler(cfg)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(
	cfg *config.Config,
	videoService *service.VideoService,
	falClient *client.FalClient,
	elevenLabsClient *client.ElevenLabsClient,
	rendererClient *client.RendererClient,
	hub *ws.Hub,
) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"video":   8,
				"cleanup": 2,
			},
			LogLevel: asynqLogLevel,
		},
	)

	videoWorker := worker.NewVideoWorker(videoService, falClient, elevenLabsClient, rendererClient, hub)
	cleanupWorker := worker.NewCleanupWorker(videoService)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeVideoGenerate, videoWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypeCleanupSweep, cleanupWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func startScheduler(cfg *config.Config) {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		nil,
	)

	cronspec := fmt.Sprintf("@every %dm", cfg.Retention.SweepIntervalMin)
	if _, err := scheduler.Register(cronspec, service.NewCleanupTask(), asynq.Queue("cleanup")); err != nil {
		log.Printf("Failed to register retention sweep: %v", err)
		return
	}

	if err := scheduler.Run(); err != nil {
		log.Printf("Asynq scheduler error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
