//go:build integration

package services

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"feedbackapp/internal/config"
	"feedbackapp/internal/database"
	"feedbackapp/internal/observability"

	"github.com/stretchr/testify/require"
)

// SharedTestDBSetup provides a clean, isolated database for each integration test
func SharedTestDBSetup(t *testing.T) *sql.DB {
	t.Helper()
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	dbManager := database.NewManager(logger)

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Fatal("TEST_DATABASE_URL environment variable must be set for integration tests")
	}

	db, err := dbManager.InitDB(databaseURL)
	require.NoError(t, err)

	CleanupTestDatabase(db, t)
	return db
}

// CleanupTestDatabase truncates every application table and resets sequences
// so tests start from a known state.
func CleanupTestDatabase(db *sql.DB, t *testing.T) {
	t.Helper()
	ctx := context.Background()

	queries := []string{
		"TRUNCATE TABLE rate_limit_events CASCADE",
		"TRUNCATE TABLE submissions CASCADE",
		"TRUNCATE TABLE users CASCADE",
		"ALTER SEQUENCE users_id_seq RESTART WITH 1",
		"ALTER SEQUENCE submissions_id_seq RESTART WITH 1",
		"ALTER SEQUENCE rate_limit_events_id_seq RESTART WITH 1",
	}
	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			t.Fatalf("cleanup query failed (%s): %v", query, err)
		}
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.SecretKey = "integration-test-secret-key-0123456789"
	cfg.RateLimit.MaxPerWindow = 3
	cfg.RateLimit.WindowHours = 24
	return cfg
}

func testLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}
