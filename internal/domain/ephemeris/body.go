// Package ephemeris supplies tropical geocentric ecliptic longitudes for the
// bodies used in a Vedic chart.
package ephemeris

import (
	"fmt"
	"strings"
)

// Body names a chart body.
type Body string

// Chart bodies. Rahu is derived from the Moon and is never measured.
const (
	Sun     Body = "Sun"
	Moon    Body = "Moon"
	Mercury Body = "Mercury"
	Venus   Body = "Venus"
	Mars    Body = "Mars"
	Jupiter Body = "Jupiter"
	Saturn  Body = "Saturn"
	Rahu    Body = "Rahu"
)

// MeasuredBodies lists the bodies a Provider resolves, in canonical order.
var MeasuredBodies = []Body{Sun, Moon, Mercury, Venus, Mars, Jupiter, Saturn} //nolint:gochecknoglobals // fixed body table

// ChartBodies lists every body reported in a chart, in canonical order.
var ChartBodies = []Body{Sun, Moon, Mercury, Venus, Mars, Jupiter, Saturn, Rahu} //nolint:gochecknoglobals // fixed body table

// Measured reports whether b is resolved directly from the ephemeris model.
func (b Body) Measured() bool {
	for _, m := range MeasuredBodies {
		if b == m {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (b Body) String() string { return string(b) }

// ParseBody resolves a body name case-insensitively.
func ParseBody(name string) (Body, error) {
	for _, b := range ChartBodies {
		if strings.EqualFold(strings.TrimSpace(name), string(b)) {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedBody, name)
}
