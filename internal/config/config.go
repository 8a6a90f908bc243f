// Package config handles application configuration loading from environment variables.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "feedbackapp/internal/utils"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Authentication configuration
	Auth AuthConfig `json:"auth" yaml:"auth"`

	// Rate limiting for public submissions
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`

	// Photo upload handling
	Upload UploadConfig `json:"upload" yaml:"upload"`

	// Background enrichment pipeline
	Enrichment EnrichmentConfig `json:"enrichment" yaml:"enrichment"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port        string   `json:"port" yaml:"port"`
	WorkerPort  string   `json:"worker_port" yaml:"worker_port"`
	Debug       bool     `json:"debug" yaml:"debug"`
	LogLevel    string   `json:"log_level" yaml:"log_level"`
	AppBaseURL  string   `json:"app_base_url" yaml:"app_base_url"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`       // Maximum number of open connections to the database
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`       // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"` // Maximum amount of time a connection may be reused
}

// AuthConfig represents authentication configuration. SecretKey signs access
// tokens and also salts submitter fingerprints.
type AuthConfig struct {
	SecretKey          string `json:"secret_key" yaml:"secret_key"`
	TokenExpiryMinutes int    `json:"token_expiry_minutes" yaml:"token_expiry_minutes"`
	CookieSecure       bool   `json:"cookie_secure" yaml:"cookie_secure"`
	SeedDefaultUsers   bool   `json:"seed_default_users" yaml:"seed_default_users"`
	SeedDomain         string `json:"seed_domain" yaml:"seed_domain"`
}

// RateLimitConfig represents the sliding-window limiter configuration
type RateLimitConfig struct {
	MaxPerWindow int `json:"max_per_window" yaml:"max_per_window"`
	WindowHours  int `json:"window_hours" yaml:"window_hours"`
}

// UploadConfig represents photo upload configuration
type UploadConfig struct {
	Dir          string `json:"dir" yaml:"dir"`
	MaxSizeBytes int64  `json:"max_size_bytes" yaml:"max_size_bytes"`
}

// EnrichmentConfig represents the background enrichment pipeline configuration.
// When APIKey is empty the remote classifier is disabled and every submission
// is enriched by the local heuristic fallback.
type EnrichmentConfig struct {
	APIKey         string `json:"api_key" yaml:"api_key"`
	APIURL         string `json:"api_url" yaml:"api_url"`
	Model          string `json:"model" yaml:"model"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `json:"max_retries" yaml:"max_retries"`
	Workers        int    `json:"workers" yaml:"workers"`
	QueueSize      int    `json:"queue_size" yaml:"queue_size"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "http://localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "feedback-backend"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`   // Default: true
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`   // Default: true
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`   // Default: true
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"`     // Default: 1.0 (100%)
	UseAutoSDK     bool              `json:"use_auto_sdk" yaml:"use_auto_sdk"`       // Use the auto-instrumentation SDK tracer provider
}

// RateLimitWindow returns the sliding window as a duration
func (c *Config) RateLimitWindow() time.Duration {
	hours := c.RateLimit.WindowHours
	if hours <= 0 {
		hours = DefaultRateLimitWindowHours
	}
	return time.Duration(hours) * time.Hour
}

// RateLimitMax returns the maximum submissions allowed per window
func (c *Config) RateLimitMax() int {
	if c.RateLimit.MaxPerWindow <= 0 {
		return DefaultRateLimitMax
	}
	return c.RateLimit.MaxPerWindow
}

// FingerprintSalt returns the salt mixed into submitter fingerprints. It is
// derived from the secret key so rotating the key invalidates stored hashes.
func (c *Config) FingerprintSalt() string {
	if len(c.Auth.SecretKey) >= FingerprintSaltLength {
		return c.Auth.SecretKey[:FingerprintSaltLength]
	}
	return c.Auth.SecretKey
}

// TokenExpiry returns the access token lifetime
func (c *Config) TokenExpiry() time.Duration {
	minutes := c.Auth.TokenExpiryMinutes
	if minutes <= 0 {
		minutes = DefaultTokenExpiryMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// RemoteEnrichmentEnabled reports whether the remote classifier should be used
func (c *Config) RemoteEnrichmentEnabled() bool {
	return strings.TrimSpace(c.Enrichment.APIKey) != ""
}

// EnrichmentTimeout returns the per-request timeout for the remote classifier
func (c *Config) EnrichmentTimeout() time.Duration {
	seconds := c.Enrichment.TimeoutSeconds
	if seconds <= 0 {
		seconds = DefaultEnrichmentTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}

// EnrichmentWorkers returns the concurrent remote classifier call ceiling
func (c *Config) EnrichmentWorkers() int {
	if c.Enrichment.Workers <= 0 {
		return DefaultEnrichmentWorkers
	}
	return c.Enrichment.Workers
}

// EnrichmentMaxRetries returns how many times a failed classifier call is retried
func (c *Config) EnrichmentMaxRetries() int {
	if c.Enrichment.MaxRetries <= 0 {
		return DefaultEnrichmentMaxRetries
	}
	return c.Enrichment.MaxRetries
}

// EnrichmentAPIURL returns the classifier endpoint base URL
func (c *Config) EnrichmentAPIURL() string {
	if strings.TrimSpace(c.Enrichment.APIURL) == "" {
		return DefaultEnrichmentAPIURL
	}
	return c.Enrichment.APIURL
}

// EnrichmentModel returns the classifier model name
func (c *Config) EnrichmentModel() string {
	if strings.TrimSpace(c.Enrichment.Model) == "" {
		return DefaultEnrichmentModel
	}
	return c.Enrichment.Model
}

// UploadDir returns the directory uploaded photos are stored under
func (c *Config) UploadDir() string {
	if strings.TrimSpace(c.Upload.Dir) == "" {
		return DefaultUploadDir
	}
	return c.Upload.Dir
}

// UploadMaxSize returns the maximum accepted photo size in bytes
func (c *Config) UploadMaxSize() int64 {
	if c.Upload.MaxSizeBytes <= 0 {
		return DefaultUploadMaxBytes
	}
	return c.Upload.MaxSizeBytes
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	// Load config from YAML file
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	// Override with environment variables
	config.overrideFromEnv()

	return config, nil
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnv(c)
}

// overrideStructFromEnv recursively overrides struct fields with environment variables
func overrideStructFromEnv(v interface{}) {
	overrideStructFromEnvWithPrefix(v, "")
}

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		// Skip unexported fields
		if !field.CanSet() {
			continue
		}

		// Get the yaml tag for the field
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		// Convert yaml tag to environment variable name
		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if uintVal, err := strconv.ParseUint(envVal, 10, 64); err == nil {
					field.SetUint(uintVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				// Handle string slices (like CORS_ORIGINS)
				if field.Type().Elem().Kind() == reflect.String {
					slice := strings.Split(envVal, ",")
					field.Set(reflect.ValueOf(slice))
				}
			}
		case reflect.Struct:
			// Recursively process nested structs with the field name as prefix
			if field.CanAddr() {
				fieldPrefix := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
				if prefix != "" {
					fieldPrefix = prefix + "_" + fieldPrefix
				}
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), fieldPrefix)
			}
		case reflect.Ptr:
			// Handle pointer to struct
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				fieldPrefix := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
				if prefix != "" {
					fieldPrefix = prefix + "_" + fieldPrefix
				}
				overrideStructFromEnvWithPrefix(field.Interface(), fieldPrefix)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file with potential local overrides
func loadConfigWithOverrides() (result0 *Config, err error) {
	// Try to load from environment variable first
	if envPath := os.Getenv("FEEDBACK_CONFIG_FILE"); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	// If no environment variable is set, try default config.yaml
	return loadConfigFromFile("config.yaml")
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
