// Package config loads service configuration from environment
// variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/backoffice/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Identity      IdentityConfig
	Sidebar       SidebarConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
	QueryTimeout time.Duration
}

// RedisConfig holds Redis configuration for distributed rate limiting
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// IdentityConfig holds the identity provider boundary configuration
type IdentityConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// MetadataURL and MetadataToken configure role pushes to the
	// provider's per-user metadata API. Empty disables pushes.
	MetadataURL   string
	MetadataToken string
}

// SidebarConfig holds the navigation template source
type SidebarConfig struct {
	// TemplatePath points at a YAML file overriding the built-in menu
	// sets. Empty uses the defaults. The file is watched for changes.
	TemplatePath string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
	// Distributed switches to the Redis-backed limiter.
	Distributed bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("BACKOFFICE_HOST", "0.0.0.0"),
			Port:            getEnv("BACKOFFICE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("BACKOFFICE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("BACKOFFICE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("BACKOFFICE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("BACKOFFICE_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("BACKOFFICE_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("BACKOFFICE_POSTGRES_URL", "postgres://localhost:5432/backoffice?sslmode=disable"),
			MaxOpenConns: getEnvInt("BACKOFFICE_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("BACKOFFICE_POSTGRES_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("BACKOFFICE_POSTGRES_CONN_LIFETIME", 5*time.Minute),
			QueryTimeout: getEnvDuration("BACKOFFICE_POSTGRES_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:      getEnv("BACKOFFICE_REDIS_URL", ""),
			Password: getEnv("BACKOFFICE_REDIS_PASSWORD", ""),
			DB:       getEnvInt("BACKOFFICE_REDIS_DB", 0),
		},
		Identity: IdentityConfig{
			IssuerURL:     getEnv("BACKOFFICE_OIDC_ISSUER", ""),
			ClientID:      getEnv("BACKOFFICE_OIDC_CLIENT_ID", ""),
			ClientSecret:  getEnv("BACKOFFICE_OIDC_CLIENT_SECRET", ""),
			RedirectURL:   getEnv("BACKOFFICE_OIDC_REDIRECT_URL", ""),
			MetadataURL:   getEnv("BACKOFFICE_IDP_METADATA_URL", ""),
			MetadataToken: getEnv("BACKOFFICE_IDP_METADATA_TOKEN", ""),
		},
		Sidebar: SidebarConfig{
			TemplatePath: getEnv("BACKOFFICE_SIDEBAR_TEMPLATES", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvBool("BACKOFFICE_RATELIMIT_ENABLED", true),
			RequestsPerMinute: getEnvInt("BACKOFFICE_RATELIMIT_RPM", 300),
			Burst:             getEnvInt("BACKOFFICE_RATELIMIT_BURST", 50),
			Distributed:       getEnvBool("BACKOFFICE_RATELIMIT_DISTRIBUTED", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.ParseLogLevel(getEnv("BACKOFFICE_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("BACKOFFICE_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("BACKOFFICE_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("BACKOFFICE_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("BACKOFFICE_OTEL_SERVICE_NAME", "backoffice"),
			OTelServiceVersion: getEnv("BACKOFFICE_OTEL_SERVICE_VERSION", "dev"),
			OTelInsecure:       getEnvBool("BACKOFFICE_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("BACKOFFICE_POSTGRES_URL is required")
	}
	if c.RateLimit.Distributed && c.Redis.URL == "" {
		return fmt.Errorf("BACKOFFICE_REDIS_URL is required for distributed rate limiting")
	}
	if c.Identity.MetadataURL != "" && c.Identity.MetadataToken == "" {
		return fmt.Errorf("BACKOFFICE_IDP_METADATA_TOKEN is required when metadata pushes are enabled")
	}
	return nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		return strings.ToLower(val) == "true"
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}
