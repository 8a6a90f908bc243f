package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"feedbackapp/internal/config"
	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	contextutils "feedbackapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// RateLimitService enforces the sliding-window limit on public submissions.
// Submitters are identified only by a salted hash of their address; the raw
// address is never stored.
type RateLimitService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewRateLimitService creates a new RateLimitService instance.
func NewRateLimitService(db *sql.DB, cfg *config.Config, logger *observability.Logger) *RateLimitService {
	if db == nil {
		panic("NewRateLimitService: db is nil")
	}
	if cfg == nil {
		panic("NewRateLimitService: cfg is nil")
	}
	if logger == nil {
		panic("NewRateLimitService: logger is nil")
	}
	return &RateLimitService{db: db, cfg: cfg, logger: logger}
}

// HashFingerprint derives the stored submitter fingerprint from an address.
func HashFingerprint(salt, ip string) string {
	sum := sha256.Sum256([]byte(salt + ip))
	return hex.EncodeToString(sum[:])
}

// Fingerprint hashes an address with the configured salt.
func (s *RateLimitService) Fingerprint(ip string) string {
	return HashFingerprint(s.cfg.FingerprintSalt(), ip)
}

// IsAllowed reports whether the fingerprint may submit right now, counting
// only events inside the sliding window.
func (s *RateLimitService) IsAllowed(ctx context.Context, ipHash string) (result0 bool, err error) {
	ctx, span := observability.TraceRateLimitFunction(ctx, "is_allowed")
	defer observability.FinishSpan(span, &err)

	windowStart := time.Now().Add(-s.cfg.RateLimitWindow())
	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rate_limit_events WHERE ip_hash=$1 AND submitted_at >= $2`,
		ipHash, windowStart).Scan(&count)
	if err != nil {
		return false, contextutils.WrapError(err, "failed to count rate limit events")
	}

	span.SetAttributes(attribute.Int("ratelimit.count", count))
	return count < s.cfg.RateLimitMax(), nil
}

// Sweep deletes events that have aged out of the window and returns how many
// rows were removed.
func (s *RateLimitService) Sweep(ctx context.Context) (result0 int, err error) {
	ctx, span := observability.TraceRateLimitFunction(ctx, "sweep")
	defer observability.FinishSpan(span, &err)

	cutoff := time.Now().Add(-s.cfg.RateLimitWindow())
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM rate_limit_events WHERE submitted_at < $1`, cutoff)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to sweep rate limit events")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to get rows affected")
	}

	if rowsAffected > 0 {
		s.logger.Info(ctx, "Swept expired rate limit events", map[string]interface{}{
			"removed": rowsAffected,
		})
	}
	return int(rowsAffected), nil
}

// Stats summarizes the rate_limit_events table for operators.
func (s *RateLimitService) Stats(ctx context.Context) (result0 *models.RateLimitStats, err error) {
	ctx, span := observability.TraceRateLimitFunction(ctx, "stats")
	defer observability.FinishSpan(span, &err)

	now := time.Now()
	query := `SELECT
        COUNT(*),
        COUNT(*) FILTER (WHERE submitted_at >= $1),
        COUNT(*) FILTER (WHERE submitted_at >= $2),
        COUNT(*) FILTER (WHERE submitted_at < $2)
        FROM rate_limit_events`

	var stats models.RateLimitStats
	err = s.db.QueryRowContext(ctx, query, now.Add(-time.Hour), now.Add(-s.cfg.RateLimitWindow())).
		Scan(&stats.TotalEntries, &stats.LastHour, &stats.LastDay, &stats.Stale)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query rate limit stats")
	}
	return &stats, nil
}
