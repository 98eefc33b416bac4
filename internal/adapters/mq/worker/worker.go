// Package worker computes natal charts for queued registration jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/nakshatra/internal/adapters/mq/queue"
	"github.com/okian/nakshatra/internal/adapters/repository"
	"github.com/okian/nakshatra/internal/domain/chart"
	"github.com/okian/nakshatra/pkg/logger"
	"github.com/okian/nakshatra/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// ChartComputer computes a chart for an instant and place.
type ChartComputer interface {
	ComputeChart(ctx context.Context, instant time.Time, latitude, longitude float64) (chart.Chart, error)
}

// ChartSaver persists natal charts. Saving twice for a user fails with
// repository.ErrChartExists.
type ChartSaver interface {
	SaveNatalChart(ctx context.Context, userID string, c chart.Chart) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes natal jobs.
type Worker interface {
	// Run consumes jobs until ctx is done, the queue is drained and closed,
	// or Shutdown is called.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in progress.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	computer ChartComputer
	saver    ChartSaver
	name     string

	onProcessed func()

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(q Queue, computer ChartComputer, saver ChartSaver, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:       q,
		computer:    computer,
		saver:       saver,
		name:        "worker",
		onProcessed: func() {},
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "natal job failed",
					logger.String("job_id", job.JobID),
					logger.String("user_id", job.UserID),
					logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker and waits for it to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process computes and stores one natal chart. A chart that is already
// stored counts as success.
func (w *InMemoryWorker) process(ctx context.Context, job Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	computeStart := time.Now()
	c, err := w.computer.ComputeChart(ctx, job.BirthInstant, job.Latitude, job.Longitude)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordChartError(metrics.KindNatal, errorType(err))
		metrics.RecordErrorByComponent("worker", "compute_error")
		return fmt.Errorf("compute natal chart for %s: %w", job.UserID, err)
	}
	metrics.RecordChartComputed(metrics.KindNatal, float64(time.Since(computeStart).Microseconds())/1000)

	err = w.saver.SaveNatalChart(ctx, job.UserID, c)
	switch {
	case err == nil:
		w.logger.Debug(ctx, "natal chart stored",
			logger.String("job_id", job.JobID),
			logger.String("user_id", job.UserID),
			logger.Duration("queued_for", start.Sub(job.EnqueuedAt)))
	case errors.Is(err, repository.ErrChartExists):
		w.logger.Debug(ctx, "natal chart already stored", logger.String("user_id", job.UserID))
	default:
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		metrics.RecordErrorByType("store_error", "high")
		return fmt.Errorf("save natal chart for %s: %w", job.UserID, err)
	}

	w.onProcessed()
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, chart.ErrUnsupportedBody):
		return "unsupported_body"
	case errors.Is(err, chart.ErrEphemerisProvider):
		return "ephemeris_failure"
	default:
		return "unknown"
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdown     chan struct{}
	shutdownOnce sync.Once

	processed         atomic.Int64
	lastProcessedTime time.Time

	logger logger.Logger
}

// NewPool creates a worker pool. A non-positive count defaults to twice the CPU count.
func NewPool(workerCount int, q Queue, computer ChartComputer, saver ChartSaver) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:           make([]*InMemoryWorker, workerCount),
		queue:             q,
		shutdown:          make(chan struct{}),
		lastProcessedTime: time.Now(),
		logger:            logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewInMemoryWorker(q, computer, saver,
			WithName("worker-"+strconv.Itoa(i)),
			WithOnProcessed(p.recordProcessed),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerMessagesPerSecond(0.0)

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of jobs completed since the last metrics tick.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool) updateMetrics() {
	now := time.Now()
	if elapsed := now.Sub(p.lastProcessedTime).Seconds(); elapsed > 0 {
		metrics.UpdateWorkerMessagesPerSecond(float64(p.processed.Swap(0)) / elapsed)
	}
	p.lastProcessedTime = now
}

func (p *Pool) recordProcessed() {
	p.processed.Add(1)
}

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	p.shutdownOnce.Do(func() { close(p.shutdown) })

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut++
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not stop: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}
