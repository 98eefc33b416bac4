package ephemeris

import (
	"context"
	"time"
)

// Provider resolves the tropical geocentric ecliptic longitude of a body.
// Implementations must be safe for concurrent use; the service builds one
// per process and shares it.
type Provider interface {
	// PositionOf returns the ecliptic longitude in degrees, referenced to the
	// equinox of date. Unknown bodies fail with ErrUnsupportedBody.
	PositionOf(ctx context.Context, body Body, instant time.Time) (float64, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, body Body, instant time.Time) (float64, error)

// PositionOf calls f.
func (f ProviderFunc) PositionOf(ctx context.Context, body Body, instant time.Time) (float64, error) {
	return f(ctx, body, instant)
}
