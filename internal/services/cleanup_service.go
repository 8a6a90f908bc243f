package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"feedbackapp/internal/config"
	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
)

// CleanupService runs periodic database maintenance, currently the expiry of
// rate limit events that have aged out of the submission window.
type CleanupService struct {
	rateLimits *RateLimitService
	logger     *observability.Logger

	stop chan struct{}
	done chan struct{}
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(rateLimits *RateLimitService, logger *observability.Logger) *CleanupService {
	if rateLimits == nil {
		panic("NewCleanupService: rateLimits is nil")
	}
	if logger == nil {
		panic("NewCleanupService: logger is nil")
	}
	return &CleanupService{
		rateLimits: rateLimits,
		logger:     logger,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// RunFullCleanup performs all cleanup operations once.
func (c *CleanupService) RunFullCleanup(ctx context.Context) (err error) {
	ctx, span := observability.TraceCleanupFunction(ctx, "run_full_cleanup")
	defer observability.FinishSpan(span, &err)

	span.SetAttributes(attribute.String("cleanup.start_time", time.Now().Format(time.RFC3339)))

	removed, err := c.rateLimits.Sweep(ctx)
	if err != nil {
		c.logger.Error(ctx, "Failed to sweep rate limit events", err, map[string]interface{}{})
		return err
	}

	span.SetAttributes(
		attribute.Int("cleanup.rate_limit_events_removed", removed),
		attribute.String("cleanup.result", "success"),
	)
	c.logger.Info(ctx, "Cleanup completed", map[string]interface{}{
		"rate_limit_events_removed": removed,
	})
	return nil
}

// Start launches the periodic cleanup loop. It runs one sweep immediately and
// then once per config.RateLimitSweepInterval until Stop is called.
func (c *CleanupService) Start(ctx context.Context) {
	go func() {
		defer close(c.done)

		if err := c.RunFullCleanup(ctx); err != nil {
			c.logger.Error(ctx, "Initial cleanup failed", err, map[string]interface{}{})
		}

		ticker := time.NewTicker(config.RateLimitSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := c.RunFullCleanup(ctx); err != nil {
					c.logger.Error(ctx, "Periodic cleanup failed", err, map[string]interface{}{})
				}
			case <-c.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the cleanup loop and waits for it to exit.
func (c *CleanupService) Stop(ctx context.Context) error {
	close(c.stop)
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetCleanupStats returns counters describing pending cleanup work.
func (c *CleanupService) GetCleanupStats(ctx context.Context) (result0 *models.RateLimitStats, err error) {
	ctx, span := observability.TraceCleanupFunction(ctx, "get_cleanup_stats")
	defer observability.FinishSpan(span, &err)

	if c.rateLimits == nil {
		return nil, errors.New("rate limit service not available")
	}

	stats, err := c.rateLimits.Stats(ctx)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("cleanup.stats.total_entries", stats.TotalEntries),
		attribute.Int("cleanup.stats.stale", stats.Stale),
	)
	return stats, nil
}
