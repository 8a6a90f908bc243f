package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"feedbackapp/internal/observability"
	"feedbackapp/internal/services"
	contextutils "feedbackapp/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database maintenance commands
func DatabaseCommands(rateLimitService *services.RateLimitService, submissionService *services.SubmissionService, logger *observability.Logger, db *sql.DB) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance commands",
		Long: `Database maintenance commands for the feedback backend.

Available commands:
  stats - Show inbox and rate limiter statistics
  sweep - Remove rate limit events outside the sliding window`,
	}

	dbCmd.AddCommand(statsCmd(rateLimitService, submissionService, logger, db))
	dbCmd.AddCommand(sweepCmd(rateLimitService, logger, db))

	return dbCmd
}

// statsCmd returns the stats command
func statsCmd(rateLimitService *services.RateLimitService, submissionService *services.SubmissionService, logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show inbox and rate limiter statistics",
		Long:  `Show submission counts by status and the state of the rate limit event table.`,
		RunE:  runStats(rateLimitService, submissionService, logger, db),
	}
}

// sweepCmd returns the sweep command
func sweepCmd(rateLimitService *services.RateLimitService, logger *observability.Logger, db *sql.DB) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove rate limit events outside the sliding window",
		Long: `Remove rate limit events that have aged out of the sliding window.

The server runs this hourly on its own; the command exists for manual
maintenance and for deployments where the server is not running.

Use --dry-run to see how many events would be removed.`,
		RunE: runSweep(rateLimitService, logger, &dryRun, db),
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be removed without actually removing it")

	return cmd
}

// runStats returns a function that shows database statistics
func runStats(rateLimitService *services.RateLimitService, submissionService *services.SubmissionService, logger *observability.Logger, db *sql.DB) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		logger.Info(ctx, "Diagnostic info", map[string]interface{}{"config_file": os.Getenv("FEEDBACK_CONFIG_FILE"), "database": getDatabaseInfo(db)})

		inbox, err := submissionService.GetInboxStats(ctx)
		if err != nil {
			logger.Error(ctx, "Failed to get inbox statistics", err, nil)
			return contextutils.WrapError(err, "failed to get inbox statistics")
		}

		limits, err := rateLimitService.Stats(ctx)
		if err != nil {
			logger.Error(ctx, "Failed to get rate limit statistics", err, nil)
			return contextutils.WrapError(err, "failed to get rate limit statistics")
		}

		fmt.Println("Inbox:")
		fmt.Printf("  total:    %d\n", inbox.Total)
		fmt.Printf("  new:      %d\n", inbox.New)
		fmt.Printf("  read:     %d\n", inbox.Read)
		fmt.Printf("  resolved: %d\n", inbox.Resolved)
		fmt.Println("Rate limit events:")
		fmt.Printf("  total:     %d\n", limits.TotalEntries)
		fmt.Printf("  last hour: %d\n", limits.LastHour)
		fmt.Printf("  last day:  %d\n", limits.LastDay)
		fmt.Printf("  stale:     %d\n", limits.Stale)

		return nil
	}
}

// runSweep returns a function that sweeps stale rate limit events
func runSweep(rateLimitService *services.RateLimitService, logger *observability.Logger, dryRun *bool, db *sql.DB) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		logger.Info(ctx, "Diagnostic info", map[string]interface{}{"config_file": os.Getenv("FEEDBACK_CONFIG_FILE"), "database": getDatabaseInfo(db)})

		if *dryRun {
			stats, err := rateLimitService.Stats(ctx)
			if err != nil {
				logger.Error(ctx, "Failed to get rate limit stats", err, nil)
				return contextutils.WrapError(err, "failed to get rate limit stats")
			}
			fmt.Printf("Dry run: would remove %d stale rate limit events\n", stats.Stale)
			return nil
		}

		removed, err := rateLimitService.Sweep(ctx)
		if err != nil {
			logger.Error(ctx, "Sweep failed", err, nil)
			return contextutils.WrapError(err, "sweep failed")
		}

		fmt.Printf("Removed %d stale rate limit events\n", removed)
		logger.Info(ctx, "Rate limit sweep completed", map[string]interface{}{"removed": removed})
		return nil
	}
}
