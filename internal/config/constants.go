package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout      = 60 * time.Second
	ServerShutdownTimeout   = 30 * time.Second
	WorkerShutdownTimeout   = 30 * time.Second
	EnrichmentRetryBackoff  = 2 * time.Second
	WorkerJanitorInterval   = 1 * time.Minute
	WorkerJanitorMinAge     = 1 * time.Minute
	RateLimitSweepInterval  = 1 * time.Hour
	WorkerDrainPollInterval = 100 * time.Millisecond

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute
)

// Default configuration values applied when the config file leaves a knob unset
const (
	DefaultRateLimitMax             = 10
	DefaultRateLimitWindowHours     = 24
	DefaultTokenExpiryMinutes       = 480
	DefaultEnrichmentTimeoutSeconds = 30
	DefaultEnrichmentMaxRetries     = 2
	DefaultEnrichmentWorkers        = 4
	DefaultEnrichmentQueueSize      = 256
	DefaultUploadMaxBytes           = 5 * 1024 * 1024
	DefaultUploadDir                = "uploads"
	DefaultEnrichmentAPIURL         = "https://api.openai.com/v1"
	DefaultEnrichmentModel          = "gpt-4o-mini"
	DefaultWorkerPort               = "8081"
)

// Submission constraints
const (
	MaxMessageLength   = 1000
	MaxUserAgentLength = 500
	MaxSummaryLength   = 150
	MaxTagsPerRecord   = 3

	// FingerprintSaltLength is how many bytes of the secret key salt submitter
	// fingerprints.
	FingerprintSaltLength = 16

	// ReferenceCodePrefix is the public tracking code prefix (FBK-NNN-NN).
	ReferenceCodePrefix = "FBK"
)

// Cookie configuration constants
const (
	// TokenIssuer is the iss claim stamped into access tokens.
	TokenIssuer = "feedbackapp"

	AccessTokenCookie   = "access_token"
	CookiePath          = "/"
	CookieHTTPOnly      = true
	LoginRedirectTarget = "/admin/login"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data:; media-src 'self' blob: data:;"
)

// User account constraints
const (
	MinPasswordLength = 10
)
