package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"task-navigator/internal/cache"
	"task-navigator/internal/config"
	"task-navigator/internal/database"
	"task-navigator/internal/server"
	"task-navigator/internal/worker"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and background workers",
		Long: `Run the HTTP API. When Redis is reachable it also backs the task list
cache and the job queue, and the workers start alongside the server.

Examples:
  tasknav serve
  DB_DRIVER=sqlite tasknav serve
  CONFIG_FILE=config.yaml tasknav serve`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func openDatabase(cfg *config.Config, logger *slog.Logger) (*database.DatabasePool, error) {
	pool, err := database.NewDatabasePool(database.PoolConfigFromConfig(cfg, logger))
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(pool.DB); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return pool, nil
}

// connectRedis returns nil when Redis is not needed or not reachable.
func connectRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) *cache.RedisCache {
	if !cfg.Cache.Enabled && !cfg.Worker.Enabled {
		return nil
	}
	rc := cache.NewRedisCache(cache.CacheConfigFromConfig(cfg, logger))
	if err := rc.Health(ctx); err != nil {
		logger.Warn("redis unavailable, running without shared cache and workers", "addr", cfg.GetRedisAddr(), "error", err)
		rc.Close()
		return nil
	}
	return rc
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr, slog.LevelInfo)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps := server.Deps{Config: cfg, Pool: pool, Logger: logger}

	var w *worker.Worker
	if rc := connectRedis(ctx, cfg, logger); rc != nil {
		defer rc.Close()
		if cfg.Cache.Enabled {
			deps.Cache = rc
		}
		if cfg.Worker.Enabled {
			w = worker.NewWorker(worker.WorkerConfigFromConfig(cfg, rc.Client(), logger))
			deps.Queue = w.Queue()
		}
	}

	srv, err := server.NewServer(deps)
	if err != nil {
		return err
	}

	if w != nil {
		srv.RegisterJobs(w)
		w.Start(ctx)
		defer w.Wait()
		if cfg.Worker.CleanupInterval > 0 {
			go w.Queue().Every(ctx, cfg.Worker.CleanupInterval, worker.QueueMaintenance, worker.JobTypeTokenCleanup, nil)
		}
	}

	return srv.Run(ctx)
}
