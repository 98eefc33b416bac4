package ephemeris

import (
	"context"
	"errors"
	"time"

	"github.com/okian/nakshatra/pkg/metrics"
)

type instrumented struct {
	next Provider
}

// NewInstrumentedProvider wraps p so that every lookup records its latency and
// any failure in the service metrics.
func NewInstrumentedProvider(p Provider) Provider {
	return &instrumented{next: p}
}

func (i *instrumented) PositionOf(ctx context.Context, body Body, instant time.Time) (float64, error) {
	start := time.Now()
	lon, err := i.next.PositionOf(ctx, body, instant)
	latency := float64(time.Since(start).Nanoseconds()) / 1e6
	metrics.RecordEphemerisLatency(body.String(), latency)
	if err != nil {
		metrics.RecordEphemerisError(body.String(), errorType(err))
		return 0, err
	}
	return lon, nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedBody):
		return "unsupported_body"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "provider_failure"
	}
}
