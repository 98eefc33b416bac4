package chart

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Zone-less layouts accepted by ParseInstant. Values in these layouts are UTC.
var naiveLayouts = []string{ //nolint:gochecknoglobals // fixed layout table
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// NormalizeInstant returns t in UTC.
func NormalizeInstant(t time.Time) time.Time {
	return t.UTC()
}

// ParseInstant parses an RFC 3339 timestamp or a zone-less date-time. A
// zone-less value is read as UTC, never as local time.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidInstant, s)
}

// ParseBirth combines a YYYY-MM-DD date and an HH:MM[:SS] time of birth into a
// UTC instant.
func ParseBirth(dob, tob string) (time.Time, error) {
	dob, tob = strings.TrimSpace(dob), strings.TrimSpace(tob)
	if dob == "" || tob == "" {
		return time.Time{}, fmt.Errorf("%w: date and time of birth are both required", ErrInvalidInstant)
	}
	if strings.ContainsAny(dob, "T ") || strings.ContainsAny(tob, "T -") {
		return time.Time{}, fmt.Errorf("%w: %q %q", ErrInvalidInstant, dob, tob)
	}
	return ParseInstant(dob + " " + tob)
}

// ValidateLocation checks a geographic coordinate pair in degrees.
func ValidateLocation(latitude, longitude float64) error {
	switch {
	case math.IsNaN(latitude) || latitude < -90 || latitude > 90:
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidLocation, latitude)
	case math.IsNaN(longitude) || longitude < -180 || longitude > 180:
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidLocation, longitude)
	default:
		return nil
	}
}
