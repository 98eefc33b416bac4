package repository

import "time"

const (
	defaultShardCount      = 16
	defaultRedisPrefix     = "nakshatra:"
	defaultBreakerFailures = 5
	defaultBreakerReset    = 10 * time.Second
)

type options struct {
	shards          int
	prefix          string
	breakerFailures int
	breakerReset    time.Duration
	now             func() time.Time
}

func newOptions(opts []Option) options {
	o := options{
		shards:          defaultShardCount,
		prefix:          defaultRedisPrefix,
		breakerFailures: defaultBreakerFailures,
		breakerReset:    defaultBreakerReset,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithShards sets the number of lock shards of a MemoryStore.
func WithShards(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.shards = n
		}
	}
}

// WithKeyPrefix sets the key namespace of a RedisStore.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithCircuitBreaker tunes the RedisStore breaker: it opens after failures
// consecutive errors and retries one call after reset.
func WithCircuitBreaker(failures int, reset time.Duration) Option {
	return func(o *options) {
		if failures > 0 {
			o.breakerFailures = failures
		}
		if reset > 0 {
			o.breakerReset = reset
		}
	}
}

// WithClock overrides the time source used for stored timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
