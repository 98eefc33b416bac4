package repository

import (
	"context"
	"fmt"
	"strings"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config selects and configures a ProfileStore.
type Config struct {
	Driver     string
	SQLitePath string
	Redis      RedisConfig
}

// Open builds the store named by cfg.Driver.
func Open(ctx context.Context, cfg Config, opts ...Option) (ProfileStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverMemory:
		return NewMemoryStore(opts...), nil
	case DriverSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath, opts...)
	case DriverRedis:
		return NewRedisStore(ctx, cfg.Redis, opts...)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
