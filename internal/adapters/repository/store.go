// Package repository stores birth profiles and their natal charts.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/okian/nakshatra/internal/domain/chart"
	"github.com/okian/nakshatra/internal/domain/model"
	"github.com/okian/nakshatra/pkg/metrics"
)

// ProfileStore persists birth profiles and their natal charts. Both are
// write-once: a profile is never replaced and a natal chart never mutated.
type ProfileStore interface {
	// CreateProfile stores p unless its user is already registered, in which
	// case it fails with ErrAlreadyExists.
	CreateProfile(ctx context.Context, p model.BirthProfile) error

	// GetProfile fails with ErrNotFound for unknown users.
	GetProfile(ctx context.Context, userID string) (model.BirthProfile, error)

	// SaveNatalChart stores the chart of a registered user. It fails with
	// ErrNotFound for unknown users and ErrChartExists if a chart is stored.
	SaveNatalChart(ctx context.Context, userID string, c chart.Chart) error

	// GetNatalChart fails with ErrNotFound when no chart is stored.
	GetNatalChart(ctx context.Context, userID string) (chart.Chart, error)

	// Count returns the number of registered profiles.
	Count(ctx context.Context) (int, error)

	// Ping reports whether the backend is reachable. Failures wrap
	// ErrUnavailable.
	Ping(ctx context.Context) error

	Close() error
}

// observe records latency for op and counts infrastructure failures.
// Outcome kinds such as ErrNotFound are not failures.
func observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil && !isOutcome(err) {
		metrics.RecordStoreError(op)
		metrics.RecordErrorByComponent("repository", op)
	}
}

func isOutcome(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrChartExists)
}
