// Package main provides the entry point for the feedback backend admin CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"feedbackapp/cmd/adm/commands"
	"feedbackapp/internal/config"
	"feedbackapp/internal/database"
	"feedbackapp/internal/observability"
	"feedbackapp/internal/services"

	"github.com/spf13/cobra"
)

// Global variables for shared resources
var (
	cfg         *config.Config
	logger      *observability.Logger
	userService *services.UserService
)

func main() {
	ctx := context.Background()

	// Set default config file if not already set
	if os.Getenv("FEEDBACK_CONFIG_FILE") == "" {
		defaultPaths := []string{
			"../config.yaml",
			"../../config.yaml",
			"config.yaml",
		}

		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := os.Setenv("FEEDBACK_CONFIG_FILE", path); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to set FEEDBACK_CONFIG_FILE environment variable: %v\n", err)
					os.Exit(1)
				}
				break
			}
		}
	}

	var err error
	cfg, err = config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Quiet logging and no telemetry exports for the CLI
	cfg.Server.LogLevel = "error"
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	tp, mp, loggerInstance, err := observability.SetupObservability(&cfg.OpenTelemetry, "feedback-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	logger = loggerInstance

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

	dbManager := database.NewManager(logger)

	// The CLI never runs migrations; the server owns the schema
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		logger.Error(ctx, "Failed to connect to database", err, map[string]interface{}{"db_url": cfg.Database.URL})
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	userService = services.NewUserService(db, logger)
	rateLimitService := services.NewRateLimitService(db, cfg, logger)
	submissionService := services.NewSubmissionService(db, logger)

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Feedback Backend Administration Tool",
		Long: `Feedback Backend Administration Tool

A CLI tool for administering the feedback backend.
Provides commands for operator account management, rate limit maintenance
and inbox statistics.`,

		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.UserCommands(userService, cfg, logger, cfg.Database.URL))
	rootCmd.AddCommand(commands.DatabaseCommands(rateLimitService, submissionService, logger, db))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
