// Package main provides the entry point for the standalone enrichment worker.
// It runs the worker pool against the shared database and exposes a small
// status endpoint. Deployments that run everything in one process do not need
// it; the server embeds the same pool.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedbackapp/internal/config"
	"feedbackapp/internal/database"
	"feedbackapp/internal/observability"
	"feedbackapp/internal/services"
	"feedbackapp/internal/version"
	"feedbackapp/internal/worker"

	"github.com/gin-gonic/gin"
)

// fatalIfErr logs the error with context and panics with a consistent message
func fatalIfErr(ctx context.Context, logger *observability.Logger, msg string, err error, fields map[string]interface{}) {
	logger.Error(ctx, msg, err, fields)
	panic(msg + ": " + err.Error())
}

func main() {
	ctx := context.Background()

	cfg, err := config.NewConfig()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "feedback-worker")
	if err != nil {
		panic("Failed to initialize observability: " + err.Error())
	}
	defer func() {
		if sd, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
			if err := sd.Shutdown(context.TODO()); err != nil {
				logger.Warn(ctx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
			}
		}
		if mp != nil {
			if err := mp.Shutdown(context.TODO()); err != nil {
				logger.Warn(ctx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error(), "provider": "meter"})
			}
		}
	}()

	logger.Info(ctx, "Starting feedback enrichment worker", map[string]interface{}{
		"port":     cfg.Server.WorkerPort,
		"logLevel": cfg.Server.LogLevel,
		"debug":    cfg.Server.Debug,
	})

	dbManager := database.NewManager(logger)

	// Migrations are managed by the server
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		fatalIfErr(ctx, logger, "Failed to initialize database", err, map[string]interface{}{"db_url": cfg.Database.URL})
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database", map[string]interface{}{"error": err.Error()})
		}
	}()

	submissionService := services.NewSubmissionService(db, logger)
	enrichmentService := services.NewEnrichmentService(cfg, logger)

	pool := worker.NewPool(submissionService, enrichmentService, cfg, logger)
	pool.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "feedback-worker",
		})
	})
	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, pool.Status())
	})
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":   "feedback-worker",
			"version":   version.Version,
			"commit":    version.Commit,
			"buildTime": version.BuildTime,
		})
	})

	port := cfg.Server.WorkerPort
	if port == "" {
		port = config.DefaultWorkerPort
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-shutdownCh:
		logger.Info(ctx, "Received shutdown signal, shutting down gracefully", nil)
	case err := <-serverErr:
		fatalIfErr(ctx, logger, "Status server failed", err, nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.WorkerShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "Error shutting down status server", map[string]interface{}{"error": err.Error()})
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Error shutting down worker pool", err, nil)
	}
	if err := enrichmentService.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "Error shutting down enrichment service", map[string]interface{}{"error": err.Error()})
	}

	logger.Info(ctx, "Shutdown completed successfully", nil)
}
