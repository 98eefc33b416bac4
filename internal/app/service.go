// Package service wires the chart calculator, profile store and natal job
// pipeline into the operations the HTTP API depends on.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	jobqueue "github.com/okian/nakshatra/internal/adapters/mq/queue"
	workerpool "github.com/okian/nakshatra/internal/adapters/mq/worker"
	"github.com/okian/nakshatra/internal/adapters/repository"
	"github.com/okian/nakshatra/internal/domain/chart"
	"github.com/okian/nakshatra/internal/domain/ephemeris"
	"github.com/okian/nakshatra/internal/domain/model"
	"github.com/okian/nakshatra/pkg/logger"
	"github.com/okian/nakshatra/pkg/metrics"
)

// Errors returned by the service.
var (
	ErrNotStarted = errors.New("service not started")
)

// Service implements the API dependencies for the chart service.
type Service struct {
	mu sync.RWMutex

	injected   repository.ProfileStore
	store      repository.ProfileStore
	provider   ephemeris.Provider
	calculator *chart.Calculator
	queue      *jobqueue.InMemoryQueue
	pool       *workerpool.Pool

	workerCount int
	queueSize   int
	storeConfig repository.Config
	storeOpts   []repository.Option
	now         func() time.Time

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of natal chart workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the natal job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStoreConfig selects the profile store opened on Start.
func WithStoreConfig(cfg repository.Config, opts ...repository.Option) Option {
	return func(s *Service) {
		s.storeConfig = cfg
		s.storeOpts = opts
	}
}

// WithStore injects an already opened store. The caller keeps ownership and
// closes it after Shutdown.
func WithStore(store repository.ProfileStore) Option {
	return func(s *Service) {
		if store != nil {
			s.injected = store
		}
	}
}

// WithProvider replaces the built-in ephemeris provider.
func WithProvider(p ephemeris.Provider) Option {
	return func(s *Service) {
		if p != nil {
			s.provider = p
		}
	}
}

// WithClock overrides the clock used for registration times and default
// transit instants.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   10000,
		storeConfig: repository.Config{Driver: repository.DriverMemory},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store and starts the natal job workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting chart service...")

	if s.provider == nil {
		s.provider = ephemeris.NewInstrumentedProvider(ephemeris.NewBuiltinProvider())
	}
	calc, err := chart.NewCalculator(s.provider, chart.WithLogger(s.logger.Named("chart")))
	if err != nil {
		return fmt.Errorf("create calculator: %w", err)
	}
	s.calculator = calc

	s.store = s.injected
	if s.store == nil {
		store, err := repository.Open(ctx, s.storeConfig, s.storeOpts...)
		if err != nil {
			return fmt.Errorf("open %s store: %w", s.storeConfig.Driver, err)
		}
		s.store = store
	}
	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateTotalProfiles(n)
	}

	s.queue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.calculator, s.store)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "chart service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.String("store", s.storeConfig.Driver),
	)
	return nil
}

// Shutdown drains pending natal jobs, then closes the store if the service
// opened it. Requests still in flight keep their collaborators; once the store
// is closed they fail with its error.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping chart service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("worker pool: %w", err))
	}
	if s.injected == nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "chart service stopped")
	return errors.Join(errs...)
}

// engine holds the collaborators of one started run of the service.
type engine struct {
	store      repository.ProfileStore
	calculator *chart.Calculator
	queue      *jobqueue.InMemoryQueue
}

// running snapshots the collaborators so an operation never observes a
// concurrent Start or Shutdown half way.
func (s *Service) running() (engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return engine{}, ErrNotStarted
	}
	return engine{store: s.store, calculator: s.calculator, queue: s.queue}, nil
}

// Ready reports whether the service is started and its store reachable.
// Failures wrap repository.ErrUnavailable.
func (s *Service) Ready(ctx context.Context) error {
	e, err := s.running()
	if err != nil {
		return fmt.Errorf("%w: %w", repository.ErrUnavailable, err)
	}
	return e.store.Ping(ctx)
}

// Register stores a new birth profile and queues its natal chart. A full
// queue does not fail the registration.
func (s *Service) Register(ctx context.Context, p model.BirthProfile) (model.Registration, error) {
	e, err := s.running()
	if err != nil {
		return model.Registration{}, err
	}
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = s.now().UTC()
	}
	if err := p.Validate(); err != nil {
		return model.Registration{}, err
	}

	if err := e.store.CreateProfile(ctx, p); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			metrics.RecordProfileDuplicate()
		}
		return model.Registration{}, err
	}
	metrics.RecordProfileRegistered()
	if n, err := e.store.Count(ctx); err == nil {
		metrics.UpdateTotalProfiles(n)
	}

	job := model.NewNatalJob(p, s.now())
	reg := model.Registration{Profile: p, JobID: job.JobID, Queued: true}
	if err := e.queue.Enqueue(ctx, job); err != nil {
		s.logger.Warn(ctx, "natal job not queued; chart will be computed on read",
			logger.String("user_id", p.UserID),
			logger.Error(err))
		reg.JobID = ""
		reg.Queued = false
	}
	return reg, nil
}

// Profile returns the registered birth profile of userID.
func (s *Service) Profile(ctx context.Context, userID string) (model.BirthProfile, error) {
	e, err := s.running()
	if err != nil {
		return model.BirthProfile{}, err
	}
	return e.store.GetProfile(ctx, userID)
}

// NatalChart returns the stored natal chart of userID, computing and storing
// it first when no worker has done so yet.
func (s *Service) NatalChart(ctx context.Context, userID string) (chart.Chart, error) {
	e, err := s.running()
	if err != nil {
		return chart.Chart{}, err
	}
	c, err := e.store.GetNatalChart(ctx, userID)
	if err == nil {
		metrics.RecordNatalCacheHit()
		return c, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return chart.Chart{}, err
	}
	metrics.RecordNatalCacheMiss()

	p, err := e.store.GetProfile(ctx, userID)
	if err != nil {
		return chart.Chart{}, err
	}
	c, err = compute(ctx, e.calculator, metrics.KindNatal, p.BirthInstant, p.Latitude, p.Longitude)
	if err != nil {
		return chart.Chart{}, err
	}
	switch err := e.store.SaveNatalChart(ctx, userID, c); {
	case errors.Is(err, repository.ErrChartExists):
		return e.store.GetNatalChart(ctx, userID)
	case err != nil:
		s.logger.Warn(ctx, "natal chart not stored", logger.String("user_id", userID), logger.Error(err))
	}
	return c, nil
}

// AdHocChart computes a chart that is not stored.
func (s *Service) AdHocChart(ctx context.Context, instant time.Time, latitude, longitude float64) (chart.Chart, error) {
	e, err := s.running()
	if err != nil {
		return chart.Chart{}, err
	}
	if err := chart.ValidateLocation(latitude, longitude); err != nil {
		return chart.Chart{}, err
	}
	return compute(ctx, e.calculator, metrics.KindAdHoc, instant, latitude, longitude)
}

// Transits returns the transit positions at instant, or now when instant is zero.
func (s *Service) Transits(ctx context.Context, instant time.Time) (chart.Transits, error) {
	e, err := s.running()
	if err != nil {
		return nil, err
	}
	if instant.IsZero() {
		instant = s.now()
	}
	start := time.Now()
	t, err := e.calculator.ComputeTransits(ctx, instant)
	if err != nil {
		metrics.RecordChartError(metrics.KindTransit, errorType(err))
		return nil, err
	}
	metrics.RecordChartComputed(metrics.KindTransit, float64(time.Since(start).Microseconds())/1000)
	return t, nil
}

// Context renders the natal chart of userID together with the transits at
// instant as the fixed text block consumed downstream.
func (s *Service) Context(ctx context.Context, userID string, instant time.Time) (string, error) {
	natal, err := s.NatalChart(ctx, userID)
	if err != nil {
		return "", err
	}
	transits, err := s.Transits(ctx, instant)
	if err != nil {
		return "", err
	}
	return chart.Format(natal, transits), nil
}

func compute(ctx context.Context, calc *chart.Calculator, kind string, instant time.Time, latitude, longitude float64) (chart.Chart, error) {
	start := time.Now()
	c, err := calc.ComputeChart(ctx, instant, latitude, longitude)
	if err != nil {
		metrics.RecordChartError(kind, errorType(err))
		return chart.Chart{}, err
	}
	metrics.RecordChartComputed(kind, float64(time.Since(start).Microseconds())/1000)
	return c, nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, chart.ErrUnsupportedBody):
		return "unsupported_body"
	case errors.Is(err, chart.ErrInvalidLocation), errors.Is(err, chart.ErrInvalidInstant):
		return "invalid_input"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "ephemeris_failure"
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"store":       s.storeConfig.Driver,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["workers"] = s.pool.Size()
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())

		if n, err := s.store.Count(ctx); err == nil {
			stats["totalProfiles"] = n
			metrics.UpdateTotalProfiles(n)
		} else {
			stats["storeError"] = err.Error()
		}
	}
	return stats
}
