// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/nakshatra/internal/domain/chart"
)

// ErrInvalidProfile marks a birth profile that cannot produce a chart.
var ErrInvalidProfile = errors.New("invalid birth profile")

// BirthProfile is the registered birth data of one user. It never changes
// after registration.
type BirthProfile struct {
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Place        string    `json:"place,omitempty"`
	BirthInstant time.Time `json:"birth_instant"` // always UTC
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	RegisteredAt time.Time `json:"registered_at"`
}

// NewBirthProfile builds a profile, generating a user id when none is given.
func NewBirthProfile(userID, name, place string, birth time.Time, lat, lon float64, now time.Time) (BirthProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = uuid.NewString()
	}
	p := BirthProfile{
		UserID:       userID,
		Name:         strings.TrimSpace(name),
		Place:        strings.TrimSpace(place),
		BirthInstant: chart.NormalizeInstant(birth),
		Latitude:     lat,
		Longitude:    lon,
		RegisteredAt: now.UTC(),
	}
	if err := p.Validate(); err != nil {
		return BirthProfile{}, err
	}
	return p, nil
}

// Validate checks the fields a natal chart depends on.
func (p BirthProfile) Validate() error {
	switch {
	case p.UserID == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidProfile)
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	case p.BirthInstant.IsZero():
		return fmt.Errorf("%w: birth instant is required", ErrInvalidProfile)
	}
	if err := chart.ValidateLocation(p.Latitude, p.Longitude); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	return nil
}

// NatalJob asks a worker to compute and store the natal chart of a profile.
type NatalJob struct {
	JobID        string
	UserID       string
	BirthInstant time.Time
	Latitude     float64
	Longitude    float64
	EnqueuedAt   time.Time
}

// NewNatalJob derives the natal chart job for p.
func NewNatalJob(p BirthProfile, now time.Time) NatalJob {
	return NatalJob{
		JobID:        uuid.NewString(),
		UserID:       p.UserID,
		BirthInstant: p.BirthInstant,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		EnqueuedAt:   now.UTC(),
	}
}

// Registration is the outcome of registering a birth profile.
type Registration struct {
	Profile BirthProfile `json:"profile"`
	JobID   string       `json:"job_id,omitempty"`

	// Queued is false when the natal job hit backpressure; the chart is then
	// computed on first read.
	Queued bool `json:"queued"`
}
