package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/okian/nakshatra/internal/domain/chart"
	"github.com/okian/nakshatra/internal/domain/model"
	"github.com/okian/nakshatra/pkg/metrics"
)

const redisPingTimeout = 5 * time.Second

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps profiles and natal charts as JSON values under a key
// prefix. Writes use SETNX so both records stay write-once.
type RedisStore struct {
	client  *goredis.Client
	prefix  string
	breaker *breaker
}

var _ ProfileStore = (*RedisStore)(nil)

// NewRedisStore connects to Redis and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig, opts ...Option) (*RedisStore, error) {
	o := newOptions(opts)
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{
		client:  client,
		prefix:  o.prefix,
		breaker: newBreaker(o.breakerFailures, o.breakerReset, o.now),
	}, nil
}

func (s *RedisStore) profileKey(userID string) string { return s.prefix + "profile:" + userID }
func (s *RedisStore) chartKey(userID string) string   { return s.prefix + "natal:" + userID }
func (s *RedisStore) indexKey() string                { return s.prefix + "profiles" }

// CreateProfile implements ProfileStore.
func (s *RedisStore) CreateProfile(ctx context.Context, p model.BirthProfile) (err error) {
	defer func(start time.Time) { observe("create_profile", start, err) }(time.Now())

	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return s.breaker.execute(func() error {
		ok, err := s.client.SetNX(ctx, s.profileKey(p.UserID), doc, 0).Result()
		if err != nil {
			return fmt.Errorf("redis setnx profile: %w", err)
		}
		if !ok {
			return ErrAlreadyExists
		}
		if err := s.client.SAdd(ctx, s.indexKey(), p.UserID).Err(); err != nil {
			return fmt.Errorf("redis sadd: %w", err)
		}
		if n, err := s.client.SCard(ctx, s.indexKey()).Result(); err == nil {
			metrics.UpdateTotalProfiles(int(n))
		}
		return nil
	})
}

// GetProfile implements ProfileStore.
func (s *RedisStore) GetProfile(ctx context.Context, userID string) (p model.BirthProfile, err error) {
	defer func(start time.Time) { observe("get_profile", start, err) }(time.Now())

	err = s.breaker.execute(func() error {
		return s.getJSON(ctx, s.profileKey(userID), &p)
	})
	if err != nil {
		return model.BirthProfile{}, err
	}
	return p, nil
}

// SaveNatalChart implements ProfileStore.
func (s *RedisStore) SaveNatalChart(ctx context.Context, userID string, c chart.Chart) (err error) {
	defer func(start time.Time) { observe("save_natal_chart", start, err) }(time.Now())

	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}
	return s.breaker.execute(func() error {
		n, err := s.client.Exists(ctx, s.profileKey(userID)).Result()
		if err != nil {
			return fmt.Errorf("redis exists: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		ok, err := s.client.SetNX(ctx, s.chartKey(userID), doc, 0).Result()
		if err != nil {
			return fmt.Errorf("redis setnx chart: %w", err)
		}
		if !ok {
			return ErrChartExists
		}
		return nil
	})
}

// GetNatalChart implements ProfileStore.
func (s *RedisStore) GetNatalChart(ctx context.Context, userID string) (c chart.Chart, err error) {
	defer func(start time.Time) { observe("get_natal_chart", start, err) }(time.Now())

	err = s.breaker.execute(func() error {
		return s.getJSON(ctx, s.chartKey(userID), &c)
	})
	if err != nil {
		return chart.Chart{}, err
	}
	return c, nil
}

// Count implements ProfileStore.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	var n int64
	err := s.breaker.execute(func() error {
		var err error
		n, err = s.client.SCard(ctx, s.indexKey()).Result()
		if err != nil {
			return fmt.Errorf("redis scard: %w", err)
		}
		return nil
	})
	return int(n), err
}

// Ping implements ProfileStore.
func (s *RedisStore) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { observe("ping", start, err) }(time.Now())
	return s.breaker.execute(func() error {
		if err := s.client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("%w: redis ping: %w", ErrUnavailable, err)
		}
		return nil
	})
}

// Close implements ProfileStore.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) getJSON(ctx context.Context, key string, v any) error {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
