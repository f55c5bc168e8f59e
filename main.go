package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flakeboard/flakeboard-backend/config"
	"github.com/flakeboard/flakeboard-backend/handlers"
	"github.com/flakeboard/flakeboard-backend/middleware"
	"github.com/flakeboard/flakeboard-backend/services"
	"github.com/flakeboard/flakeboard-backend/storage"
	"github.com/flakeboard/flakeboard-backend/utils"
	"github.com/flakeboard/flakeboard-backend/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	websocket2 "github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	// Validate configuration
	if errors := cfg.Validate(); len(errors) > 0 {
		log.Fatal("Configuration validation failed:", errors)
	}

	// Initialize logger
	utils.InitLogger(cfg.LogLevel, cfg.LogFormat)
	logger := utils.GetLogger()
	logger.Info("Starting Flakeboard Backend", map[string]interface{}{
		"version":     "1.0.0",
		"environment": cfg.Environment,
		"port":        cfg.Port,
	})

	// Open storage
	store, err := storage.NewStorage(cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer store.Close()

	var blobStore services.BlobStorage
	if cfg.EnableBlobStorage {
		bs, err := storage.NewBlobStore(cfg.BlobStorageDir, cfg.BlobPublicBaseURL)
		if err != nil {
			log.Fatal("Failed to initialize blob storage:", err)
		}
		blobStore = bs
	}

	// Initialize WebSocket hub
	if cfg.EnableWebSocket {
		websocket.InitializeHub()
	}

	// Create Fiber app with configuration
	app := createFiberApp(cfg, logger)

	// Setup middleware
	setupMiddleware(app, cfg, logger)

	// Setup routes
	setupRoutes(app, cfg, store, blobStore, logger)

	// Start server with graceful shutdown
	startServerWithGracefulShutdown(app, cfg, logger)
}

// createFiberApp creates and configures the Fiber application
func createFiberApp(cfg *config.Config, logger *utils.Logger) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:      "Flakeboard Backend v1.0.0",
		ServerHeader: "Flakeboard",
		ErrorHandler: middleware.NewErrorHandler(&middleware.ErrorHandlingConfig{
			EnableDetailedErrors: cfg.EnableDetailedErrors,
			Logger:               logger,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    cfg.MaxUploadSizeMB * 1024 * 1024,
		JSONEncoder:  utils.JSONMarshal,
		JSONDecoder:  utils.JSONUnmarshal,
	})
}

// setupMiddleware configures all middleware for the application
func setupMiddleware(app *fiber.App, cfg *config.Config, logger *utils.Logger) {
	// Recovery middleware (should be first)
	app.Use(recover.New(recover.Config{
		EnableStackTrace: cfg.IsDevelopment(),
	}))

	// Correlation ID middleware
	app.Use(middleware.CorrelationID())

	// CORS middleware
	corsOrigins := []string{cfg.FrontendURL}
	if cfg.IsDevelopment() {
		corsOrigins = append(corsOrigins, "http://localhost:3000", "http://127.0.0.1:3000")
	}
	app.Use(middleware.CORSWithOrigins(corsOrigins))

	// Request validation middleware
	app.Use(middleware.RequestValidation(middleware.ValidationConfig{
		MaxBodySize: int64(cfg.MaxUploadSizeMB) * 1024 * 1024,
		AllowedMethods: []string{
			fiber.MethodGet,
			fiber.MethodPost,
			fiber.MethodOptions,
			fiber.MethodHead,
		},
	}))

	// Request logging middleware
	app.Use(middleware.RequestLogging(middleware.LoggingConfig{
		Logger:    logger,
		SkipPaths: []string{"/health"},
	}))

	// Error logging middleware
	app.Use(middleware.ErrorLogging(logger))
}

// setupRoutes configures all routes for the application
func setupRoutes(app *fiber.App, cfg *config.Config, store *storage.Storage, blobStore services.BlobStorage, logger *utils.Logger) {
	// Health check endpoint
	app.Get("/health", healthCheckHandler(cfg, store))

	// WebSocket endpoints
	if cfg.EnableWebSocket {
		app.Use("/ws", websocket.WebSocketUpgrade)
		app.Get("/ws", websocket2.New(websocket.WebSocketHandler))
		app.Get("/ws/stats", func(c *fiber.Ctx) error {
			return utils.SuccessResponse(c, "WebSocket statistics", websocket.GetWebSocketStats())
		})
	}

	// Serve stored blobs (screenshots, step logs) statically
	if bs, ok := blobStore.(*storage.BlobStore); ok {
		app.Static("/blobs", bs.Root())
	}

	// API version group
	api := app.Group("/api")

	// Initialize services
	materializer := services.NewAttachmentMaterializer(blobStore, logger)
	var broadcaster services.WebSocketBroadcaster
	if cfg.EnableWebSocket {
		broadcaster = websocket.GetHub()
	}
	uploadService := services.NewUploadService(store, store, materializer, broadcaster, logger)

	// Initialize handlers
	uploadHandler := handlers.NewUploadHandler(uploadService, cfg.MaxUploadSizeMB)
	runsHandler := handlers.NewRunsHandler(store)

	// Run ingestion and query routes
	runs := api.Group("/runs")
	runs.Post("/upload", uploadHandler.UploadRun)
	runs.Get("/", runsHandler.ListRuns)
	runs.Get("/:runId", runsHandler.GetRun)

	// Basic API info endpoint
	api.Get("/", func(c *fiber.Ctx) error {
		return utils.SuccessResponse(c, "Flakeboard API", fiber.Map{
			"version":     "1.0.0",
			"environment": cfg.Environment,
			"endpoints": []string{
				"GET /health - Health check",
				"GET /api - API information",
				"GET /ws - WebSocket connection",
				"GET /ws/stats - WebSocket statistics",
				"POST /api/runs/upload - Upload a report archive",
				"GET /api/runs - List stored runs",
				"GET /api/runs/:runId - Get a run with its executions",
			},
		})
	})

	logger.Info("Routes configured successfully", map[string]interface{}{
		"health_endpoint":    "/health",
		"api_base":           "/api",
		"websocket_endpoint": "/ws",
	})
}

// healthCheckHandler creates the health check endpoint handler
func healthCheckHandler(cfg *config.Config, store *storage.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbStatus := "ok"
		if err := store.Ping(c.Context()); err != nil {
			dbStatus = "unavailable"
		}

		health := fiber.Map{
			"status":      "healthy",
			"message":     "Flakeboard Backend is running",
			"version":     "1.0.0",
			"environment": cfg.Environment,
			"timestamp":   time.Now().UTC(),
			"uptime":      time.Since(startTime).String(),
			"checks": fiber.Map{
				"server":   "ok",
				"database": dbStatus,
			},
		}

		if dbStatus != "ok" {
			health["status"] = "degraded"
			return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE",
				"Database is unreachable", nil)
		}

		return utils.SuccessResponse(c, "Health check passed", health)
	}
}

// startServerWithGracefulShutdown starts the server with graceful shutdown handling
func startServerWithGracefulShutdown(app *fiber.App, cfg *config.Config, logger *utils.Logger) {
	// Channel to listen for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		address := ":" + cfg.Port
		logger.Info("Server starting", map[string]interface{}{
			"address":     address,
			"environment": cfg.Environment,
		})

		fmt.Printf("Server starting on port %s\n", cfg.Port)
		fmt.Printf("Health check available at: http://localhost:%s/health\n", cfg.Port)
		fmt.Printf("API base URL: http://localhost:%s/api\n", cfg.Port)

		if err := app.Listen(address); err != nil {
			logger.Error("Server failed to start", err, map[string]interface{}{
				"address": address,
			})
			log.Fatal("Server failed to start:", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	logger.Info("Shutdown signal received, starting graceful shutdown...")

	// Create a context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server forced to shutdown", err, nil)
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server shutdown completed successfully")
	fmt.Println("Server shutdown completed")
}

// Global variable to track server start time for uptime calculation
var startTime = time.Now()
