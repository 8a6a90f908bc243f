package services

import (
	"testing"

	"feedbackapp/internal/config"
	"feedbackapp/internal/observability"

	"github.com/stretchr/testify/assert"
)

func TestHashFingerprint_Deterministic(t *testing.T) {
	a := HashFingerprint("salt", "203.0.113.9")
	b := HashFingerprint("salt", "203.0.113.9")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHashFingerprint_SaltChangesHash(t *testing.T) {
	a := HashFingerprint("salt-one", "203.0.113.9")
	b := HashFingerprint("salt-two", "203.0.113.9")
	assert.NotEqual(t, a, b)
}

func TestHashFingerprint_AddressChangesHash(t *testing.T) {
	a := HashFingerprint("salt", "203.0.113.9")
	b := HashFingerprint("salt", "203.0.113.10")
	assert.NotEqual(t, a, b)
}

func TestRateLimitService_Fingerprint_UsesConfiguredSalt(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.SecretKey = "0123456789abcdefEXTRA-NOT-IN-SALT"
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	service := &RateLimitService{cfg: cfg, logger: logger}

	got := service.Fingerprint("203.0.113.9")
	want := HashFingerprint("0123456789abcdef", "203.0.113.9")
	assert.Equal(t, want, got)
}
