package repository

import (
	"context"
	"hash/fnv"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/nakshatra/internal/domain/chart"
	"github.com/okian/nakshatra/internal/domain/model"
	"github.com/okian/nakshatra/pkg/metrics"
)

type memoryShard struct {
	mu       sync.RWMutex
	profiles map[string]model.BirthProfile
	charts   map[string]chart.Chart
}

// MemoryStore keeps profiles in process memory, spread over lock shards.
type MemoryStore struct {
	shards []*memoryShard
	count  atomic.Int64
}

var _ ProfileStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := newOptions(opts)
	s := &MemoryStore{shards: make([]*memoryShard, o.shards)}
	for i := range s.shards {
		s.shards[i] = &memoryShard{
			profiles: make(map[string]model.BirthProfile),
			charts:   make(map[string]chart.Chart),
		}
	}
	return s
}

func (s *MemoryStore) shard(userID string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// CreateProfile implements ProfileStore.
func (s *MemoryStore) CreateProfile(_ context.Context, p model.BirthProfile) (err error) {
	defer func(start time.Time) { observe("create_profile", start, err) }(time.Now())

	sh := s.shard(p.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.profiles[p.UserID]; ok {
		return ErrAlreadyExists
	}
	sh.profiles[p.UserID] = p
	metrics.UpdateTotalProfiles(int(s.count.Add(1)))
	return nil
}

// GetProfile implements ProfileStore.
func (s *MemoryStore) GetProfile(_ context.Context, userID string) (p model.BirthProfile, err error) {
	defer func(start time.Time) { observe("get_profile", start, err) }(time.Now())

	sh := s.shard(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	p, ok := sh.profiles[userID]
	if !ok {
		return model.BirthProfile{}, ErrNotFound
	}
	return p, nil
}

// SaveNatalChart implements ProfileStore.
func (s *MemoryStore) SaveNatalChart(_ context.Context, userID string, c chart.Chart) (err error) {
	defer func(start time.Time) { observe("save_natal_chart", start, err) }(time.Now())

	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.profiles[userID]; !ok {
		return ErrNotFound
	}
	if _, ok := sh.charts[userID]; ok {
		return ErrChartExists
	}
	sh.charts[userID] = cloneChart(c)
	return nil
}

// GetNatalChart implements ProfileStore.
func (s *MemoryStore) GetNatalChart(_ context.Context, userID string) (c chart.Chart, err error) {
	defer func(start time.Time) { observe("get_natal_chart", start, err) }(time.Now())

	sh := s.shard(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	c, ok := sh.charts[userID]
	if !ok {
		return chart.Chart{}, ErrNotFound
	}
	return cloneChart(c), nil
}

// Count implements ProfileStore.
func (s *MemoryStore) Count(context.Context) (int, error) {
	return int(s.count.Load()), nil
}

// Ping implements ProfileStore.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close implements ProfileStore.
func (s *MemoryStore) Close() error { return nil }

// cloneChart copies the planets map so callers cannot mutate stored charts.
func cloneChart(c chart.Chart) chart.Chart {
	c.Planets = maps.Clone(c.Planets)
	return c
}
