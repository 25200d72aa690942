// Package config provides centralized configuration management for tabload.
// Settings come from environment variables with defaults, and are validated
// on startup so that misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Load     LoadConfig
	API      APIConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request, body included (default: 15m, uploads can be large)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15m"`

	// WriteTimeout is the maximum duration for writing a response (default: 0, no limit)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for read requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// LoadConfig holds bulk load settings.
type LoadConfig struct {
	// InferSize is how many leading rows are sampled to pin column types (default: 100)
	InferSize int `env:"LOAD_INFER_SIZE" default:"100"`

	// ChunkSize is the number of rows written per COPY batch (default: 1000)
	ChunkSize int `env:"LOAD_CHUNK_SIZE" default:"1000"`

	// MaxFileSize is the largest file accepted by the upload endpoint in bytes (default: 1GB)
	MaxFileSize int64 `env:"LOAD_MAX_FILE_SIZE" default:"1073741824"`

	// Timeout bounds a single load, index or drop operation (default: 30m)
	Timeout time.Duration `env:"LOAD_TIMEOUT" default:"30m"`

	// WriterWait is how long a writer waits for the single writer slot (default: 30s)
	WriterWait time.Duration `env:"LOAD_WRITER_WAIT" default:"30s"`

	// TempDir is where uploaded files are spooled before loading (default: OS temp dir)
	TempDir string `env:"LOAD_TEMP_DIR"`
}

// APIConfig holds settings for the generated read-only REST API.
type APIConfig struct {
	// PageSize is the default number of resources per page (default: 20)
	PageSize int `env:"API_PAGE_SIZE" default:"20"`

	// MaxPageSize caps the limit query parameter (default: 1000)
	MaxPageSize int `env:"API_MAX_PAGE_SIZE" default:"1000"`

	// Browser enables the HTML table browser under /browse (default: false)
	Browser bool `env:"API_BROWSER" default:"false"`

	// Admin enables the /admin maintenance endpoints (default: false)
	Admin bool `env:"API_ADMIN" default:"false"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`

	// AdminLimit is requests per minute for admin endpoints (default: 10)
	AdminLimit int `env:"RATE_LIMIT_ADMIN" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey protects the admin endpoints with X-API-Key (default: true)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"true"`

	// APIKeys is a comma-separated list of accepted admin API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	// Enabled exposes /metrics (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`

	// Path is the metrics endpoint path (default: /metrics)
	Path string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
