// Package config defines service configuration and its layered loading.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/okian/nakshatra/internal/adapters/repository"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log records.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory natal job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of natal chart workers.
	WorkerCount int `koanf:"worker_count"`

	// StoreDriver selects the profile store: memory, sqlite or redis.
	StoreDriver string `koanf:"store_driver"`

	SQLitePath string `koanf:"sqlite_path"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisPrefix   string `koanf:"redis_prefix"`

	// MetricsEnabled turns Prometheus recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsRefreshSec is the period of the gauge updaters.
	MetricsRefreshSec int `koanf:"metrics_refresh_sec"`

	// ShutdownTimeoutSec bounds graceful shutdown, including draining queued jobs.
	ShutdownTimeoutSec int `koanf:"shutdown_timeout_sec"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		QueueSize:          10_000,
		WorkerCount:        runtime.NumCPU() * 2,
		StoreDriver:        repository.DriverMemory,
		SQLitePath:         "nakshatra.db",
		RedisAddr:          "localhost:6379",
		RedisPrefix:        "nakshatra:",
		MetricsEnabled:     true,
		MetricsRefreshSec:  10,
		ShutdownTimeoutSec: 30,
	}
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.MetricsRefreshSec < 1:
		return fmt.Errorf("%w: metrics_refresh_sec must be positive, got %d", ErrInvalidConfig, c.MetricsRefreshSec)
	case c.ShutdownTimeoutSec < 1:
		return fmt.Errorf("%w: shutdown_timeout_sec must be positive, got %d", ErrInvalidConfig, c.ShutdownTimeoutSec)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}

	switch strings.ToLower(c.StoreDriver) {
	case repository.DriverMemory:
	case repository.DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: sqlite_path is required for the sqlite store", ErrInvalidConfig)
		}
	case repository.DriverRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("%w: redis_addr is required for the redis store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	return nil
}

// Store returns the repository settings.
func (c *Config) Store() repository.Config {
	return repository.Config{
		Driver:     strings.ToLower(c.StoreDriver),
		SQLitePath: c.SQLitePath,
		Redis: repository.RedisConfig{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		},
	}
}

// StoreOptions returns the repository options derived from the config.
func (c *Config) StoreOptions() []repository.Option {
	return []repository.Option{repository.WithKeyPrefix(c.RedisPrefix)}
}

// ShutdownTimeout returns ShutdownTimeoutSec as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// MetricsRefresh returns MetricsRefreshSec as a duration.
func (c *Config) MetricsRefresh() time.Duration {
	return time.Duration(c.MetricsRefreshSec) * time.Second
}
