// @title           Print Wizard Backend API
// @version         1.0.0
// @description     Backend API for laying out print artwork on production sheets. Handles the print library, layout jobs with watermarked previews, usage metering and final sheet rendering.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"print-wizard-backend/internal/config"
	"print-wizard-backend/internal/database"
	"print-wizard-backend/internal/handlers"
	"print-wizard-backend/internal/middleware"
	"print-wizard-backend/internal/queue"
	"print-wizard-backend/internal/render"
	"print-wizard-backend/internal/services"
	"print-wizard-backend/internal/supabase"
	"print-wizard-backend/internal/usage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var logger *zap.Logger
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// Run migrations before anything touches the schema.
	migrator, err := database.NewMigrator(cfg.DatabaseURL, sugar)
	if err != nil {
		sugar.Fatalw("failed to initialize migrator", "error", err)
	}
	if err := migrator.Run(); err != nil {
		sugar.Fatalw("migration failed", "error", err)
	}
	migrator.Close()

	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		sugar.Fatalw("failed to initialize supabase client", "error", err)
	}

	storageClient, err := supabase.NewStorageClient(
		cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, cfg.ArtworkBucket, cfg.OutputBucket,
	)
	if err != nil {
		sugar.Fatalw("failed to initialize storage client", "error", err)
	}

	dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalw("failed to initialize database client", "error", err)
	}
	defer dbClient.Close()

	realtimeClient := supabase.NewRealtimeClient(supabaseClient.Supabase)

	// Without Redis the server renders jobs on background goroutines.
	var dispatcher services.Dispatcher
	if cfg.RedisURL != "" {
		renderQueue, err := queue.New(cfg.RedisURL)
		if err != nil {
			sugar.Fatalw("failed to connect to redis", "error", err)
		}
		if err := renderQueue.Ping(context.Background()); err != nil {
			sugar.Fatalw("redis unreachable", "error", err)
		}
		defer renderQueue.Close()
		dispatcher = renderQueue
	}

	renderer := render.NewRenderer(dbClient, storageClient, render.NewImageCache(), sugar)
	ledger := usage.NewLedger(dbClient)
	jobService := services.NewJobService(
		dbClient, renderer, ledger, storageClient, dispatcher, realtimeClient, sugar,
	)

	jobsHandler := handlers.NewJobsHandler(jobService, dbClient)
	printsHandler := handlers.NewPrintsHandler(dbClient, storageClient)
	usageHandler := handlers.NewUsageHandler(ledger, dbClient)
	webhookHandler := handlers.NewWebhookHandler(cfg, dbClient, sugar)

	router := gin.Default()

	// Health check (no auth)
	router.GET("/health", handlers.HealthHandler)

	// API routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	// Print library
	api.POST("/prints", printsHandler.CreatePrint)
	api.GET("/prints", printsHandler.ListPrints)
	api.GET("/prints/:print_id", printsHandler.GetPrint)
	api.PUT("/prints/:print_id", printsHandler.UpdatePrint)
	api.DELETE("/prints/:print_id", printsHandler.DeletePrint)
	api.POST("/prints/:print_id/files", printsHandler.UploadPrintFile)

	// Layout jobs
	api.POST("/jobs", jobsHandler.CreateJob)
	api.GET("/jobs", jobsHandler.ListJobs)
	api.GET("/jobs/:job_id", jobsHandler.GetJob)
	api.POST("/jobs/:job_id/confirm", jobsHandler.ConfirmJob)
	api.POST("/jobs/:job_id/cancel", jobsHandler.CancelJob)

	// Usage
	api.GET("/me/usage", usageHandler.GetUsage)

	// Webhook (no auth, uses shared token)
	router.POST("/api/v1/webhooks/billing", webhookHandler.HandleBillingWebhook)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	sugar.Infow("server starting", "port", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		sugar.Fatalw("server stopped", "error", err)
	}
}
