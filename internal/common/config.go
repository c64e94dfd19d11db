// Package common provides shared utilities for the Blink scoring service.
package common

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the Blink scoring service.
type Config struct {
	Environment string         `toml:"environment"`
	Server      ServerConfig   `toml:"server"`
	Database    DatabaseConfig `toml:"database"`
	Logging     LoggingConfig  `toml:"logging"`
	Auth        AuthConfig     `toml:"auth"`
	Rescorer    RescorerConfig `toml:"rescorer"`
	Scoring     ScoringConfig  `toml:"scoring"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// DatabaseConfig holds Postgres connection configuration.
// URL, when set, wins over the individual fields.
type DatabaseConfig struct {
	URL             string `toml:"url"`
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Name            string `toml:"name"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	SSLMode         string `toml:"ssl_mode"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
}

// DSN returns the Postgres connection string.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// GetConnMaxLifetime parses and returns the connection max lifetime.
func (c *DatabaseConfig) GetConnMaxLifetime() time.Duration {
	d, err := time.ParseDuration(c.ConnMaxLifetime)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// AuthConfig holds authentication configuration for the API.
type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`
	TokenExpiry string `toml:"token_expiry"` // duration string, default "1h"

	// Bootstrap client registered on first start so the batch services
	// can authenticate before any client has been provisioned.
	BootstrapClientID     string `toml:"bootstrap_client_id"`
	BootstrapClientSecret string `toml:"bootstrap_client_secret"`
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return time.Hour
	}
	return d
}

// RescorerConfig holds configuration for the background rescoring worker.
type RescorerConfig struct {
	Enabled       bool    `toml:"enabled"`
	WatchInterval string  `toml:"watch_interval"` // how often the watcher scans for stale users
	StaleAfter    string  `toml:"stale_after"`    // audit age before a user is considered stale
	BatchSize     int     `toml:"batch_size"`     // max users enqueued per watcher pass
	MaxConcurrent int     `toml:"max_concurrent"` // processor pool size
	MaxRetries    int     `toml:"max_retries"`    // attempts per job before giving up
	RatePerSec    float64 `toml:"rate_per_sec"`   // per-processor pacing between users
	PurgeAfter    string  `toml:"purge_after"`    // age before finished jobs are purged
	DryRun        bool    `toml:"dry_run"`        // compute but never persist
}

// GetWatchInterval parses and returns the watcher interval.
func (c *RescorerConfig) GetWatchInterval() time.Duration {
	d, err := time.ParseDuration(c.WatchInterval)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// GetStaleAfter parses and returns the stale-audit age cutoff.
func (c *RescorerConfig) GetStaleAfter() time.Duration {
	d, err := time.ParseDuration(c.StaleAfter)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// GetMaxConcurrent returns the processor pool size with a sane floor.
func (c *RescorerConfig) GetMaxConcurrent() int {
	if c.MaxConcurrent <= 0 {
		return 4
	}
	return c.MaxConcurrent
}

// GetMaxRetries returns the per-job attempt limit with a sane floor.
func (c *RescorerConfig) GetMaxRetries() int {
	if c.MaxRetries <= 0 {
		return 3
	}
	return c.MaxRetries
}

// GetRatePerSec returns the per-processor pacing rate with a sane floor.
func (c *RescorerConfig) GetRatePerSec() float64 {
	if c.RatePerSec <= 0 {
		return 2.0
	}
	return c.RatePerSec
}

// GetPurgeAfter parses and returns the finished-job retention period.
func (c *RescorerConfig) GetPurgeAfter() time.Duration {
	d, err := time.ParseDuration(c.PurgeAfter)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// ScoringConfig holds scoring service configuration.
type ScoringConfig struct {
	// PersistSnapshots controls whether each scoring run also writes a
	// feature-store snapshot for offline model training.
	PersistSnapshots bool `toml:"persist_snapshots"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `toml:"level"`
	Format   string `toml:"format"` // "console" or "json"
	FilePath string `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "blink",
			User:            "blink",
			Password:        "blink",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: "30m",
		},
		Auth: AuthConfig{
			JWTSecret:         "dev-jwt-secret-change-in-production",
			TokenExpiry:       "1h",
			BootstrapClientID: "blink-cron",
		},
		Rescorer: RescorerConfig{
			Enabled:       true,
			WatchInterval: "15m",
			StaleAfter:    "24h",
			BatchSize:     250,
			MaxConcurrent: 4,
			MaxRetries:    3,
			RatePerSec:    2.0,
			PurgeAfter:    "24h",
		},
		Scoring: ScoringConfig{
			PersistSnapshots: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Apply environment overrides
	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("BLINK_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("BLINK_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("BLINK_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("BLINK_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// Database overrides
	if v := os.Getenv("BLINK_DATABASE_URL"); v != "" {
		config.Database.URL = v
	}
	if v := os.Getenv("BLINK_DATABASE_HOST"); v != "" {
		config.Database.Host = v
	}
	if v := os.Getenv("BLINK_DATABASE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			config.Database.Port = p
		}
	}
	if v := os.Getenv("BLINK_DATABASE_NAME"); v != "" {
		config.Database.Name = v
	}
	if v := os.Getenv("BLINK_DATABASE_USER"); v != "" {
		config.Database.User = v
	}
	if v := os.Getenv("BLINK_DATABASE_PASSWORD"); v != "" {
		config.Database.Password = v
	}

	// Auth overrides
	if v := os.Getenv("BLINK_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("BLINK_AUTH_TOKEN_EXPIRY"); v != "" {
		config.Auth.TokenExpiry = v
	}
	if v := os.Getenv("BLINK_AUTH_BOOTSTRAP_CLIENT_SECRET"); v != "" {
		config.Auth.BootstrapClientSecret = v
	}

	// Rescorer overrides (the batch deployment drives these from the environment)
	if v := os.Getenv("BLINK_RESCORER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Rescorer.Enabled = b
		}
	}
	if v := os.Getenv("BLINK_RESCORER_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Rescorer.BatchSize = n
		}
	}
	if v := os.Getenv("BLINK_RESCORER_DRY_RUN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Rescorer.DryRun = b
		}
	}
	if v := os.Getenv("BLINK_RESCORER_RATE_PER_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Rescorer.RatePerSec = f
		}
	}
	if v := os.Getenv("BLINK_RESCORER_STALE_AFTER"); v != "" {
		config.Rescorer.StaleAfter = v
	}
}

// Validate checks the configuration for values the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.URL == "" && c.Database.Name == "" {
		return fmt.Errorf("database name or url is required")
	}
	if c.IsProduction() && c.Auth.JWTSecret == "dev-jwt-secret-change-in-production" {
		return fmt.Errorf("auth.jwt_secret must be set in production")
	}
	if c.Rescorer.BatchSize < 0 {
		return fmt.Errorf("rescorer.batch_size must be >= 0")
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
