package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"print-wizard-backend/internal/config"
	"print-wizard-backend/internal/queue"
	"print-wizard-backend/internal/render"
	"print-wizard-backend/internal/services"
	"print-wizard-backend/internal/supabase"
	"print-wizard-backend/internal/usage"
)

// The worker drains the render queue: it picks up preview and final render
// tasks enqueued by the API server and runs them to completion one at a
// time. Sheet-level parallelism lives inside the renderer.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.RedisURL == "" {
		log.Fatal("REDIS_URL is required for the worker")
	}

	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

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

	renderQueue, err := queue.New(cfg.RedisURL)
	if err != nil {
		sugar.Fatalw("failed to connect to redis", "error", err)
	}
	if err := renderQueue.Ping(context.Background()); err != nil {
		sugar.Fatalw("redis unreachable", "error", err)
	}
	defer renderQueue.Close()

	realtimeClient := supabase.NewRealtimeClient(supabaseClient.Supabase)
	renderer := render.NewRenderer(dbClient, storageClient, render.NewImageCache(), sugar)
	ledger := usage.NewLedger(dbClient)

	// The worker executes tasks itself, so no dispatcher is wired in.
	jobService := services.NewJobService(
		dbClient, renderer, ledger, storageClient, nil, realtimeClient, sugar,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sugar.Infow("worker started")
	for {
		task, err := renderQueue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				sugar.Infow("worker shutting down")
				return
			}
			sugar.Errorw("failed to dequeue task", "error", err)
			continue
		}
		if task == nil {
			continue
		}

		sugar.Infow("processing task", "job_id", task.JobID, "preview", task.Preview)
		if err := jobService.ProcessTask(ctx, *task); err != nil {
			sugar.Errorw("task failed", "job_id", task.JobID, "preview", task.Preview, "error", err)
		}
	}
}
