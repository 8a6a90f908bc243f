package services

import (
	"testing"

	"feedbackapp/internal/config"
	"feedbackapp/internal/observability"

	"github.com/stretchr/testify/assert"
)

func cleanupTestLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

func TestNewCleanupService_PanicsOnNilRateLimits(t *testing.T) {
	assert.Panics(t, func() {
		NewCleanupService(nil, cleanupTestLogger())
	})
}

func TestNewCleanupService_PanicsOnNilLogger(t *testing.T) {
	assert.Panics(t, func() {
		NewCleanupService(&RateLimitService{}, nil)
	})
}
