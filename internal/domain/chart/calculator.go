// Package chart maps an instant and a place to a sidereal Vedic chart: body
// positions with sign, nakshatra and pada, Rahu and an approximate ascendant.
package chart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/okian/nakshatra/internal/domain/ephemeris"
	"github.com/okian/nakshatra/pkg/logger"
)

const degreesPerHour = 15.0

// BodyPosition is the placement of one body in a chart.
type BodyPosition struct {
	Longitude  float64   `json:"longitude"`
	Sign       Sign      `json:"sign"`
	SignNumber int       `json:"sign_num"`
	Degree     float64   `json:"degree"`
	Nakshatra  Nakshatra `json:"nakshatra"`
	Pada       int       `json:"pada"`
}

// Ascendant is the approximate rising degree.
type Ascendant struct {
	Longitude float64 `json:"longitude"`
	Sign      Sign    `json:"sign"`
	Degree    float64 `json:"degree"`
}

// Chart is an immutable snapshot of one instant and place.
type Chart struct {
	Instant         time.Time                       `json:"instant"`
	Latitude        float64                         `json:"latitude"`
	Longitude       float64                         `json:"longitude"`
	Ascendant       Ascendant                       `json:"ascendant"`
	Planets         map[ephemeris.Body]BodyPosition `json:"planets"`
	AyanamsaDegrees float64                         `json:"ayanamsa_degrees"`
}

// TransitPosition is the reduced placement reported for transits.
type TransitPosition struct {
	Sign   Sign    `json:"sign"`
	Degree float64 `json:"degree"`
}

// Transits maps every chart body to its current sign and degree.
type Transits map[ephemeris.Body]TransitPosition

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger sets the calculator's logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Calculator) {
		if l != nil {
			c.logger = l
		}
	}
}

// Calculator computes charts from an injected ephemeris provider. It holds no
// mutable state and is safe for concurrent use.
type Calculator struct {
	provider ephemeris.Provider
	logger   logger.Logger
}

// NewCalculator returns a calculator backed by provider.
func NewCalculator(provider ephemeris.Provider, opts ...Option) (*Calculator, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	c := &Calculator{
		provider: provider,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ComputeBodyLongitude returns the tropical longitude of a measured body in [0, 360).
func (c *Calculator) ComputeBodyLongitude(ctx context.Context, body ephemeris.Body, instant time.Time) (float64, error) {
	const op = "chart.ComputeBodyLongitude"
	if !body.Measured() {
		return 0, &Error{Op: op, Kind: ErrUnsupportedBody, Err: fmt.Errorf("%w: %q", ErrUnsupportedBody, body)}
	}
	lon, err := c.provider.PositionOf(ctx, body, NormalizeInstant(instant))
	if err != nil {
		return 0, providerError(op, err)
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return 0, &Error{Op: op, Kind: ErrEphemerisProvider, Err: fmt.Errorf("non-finite longitude for %s", body)}
	}
	return Normalize(lon), nil
}

// ComputeAscendant returns the approximate sidereal ascendant. The estimate
// advances the Sun's tropical longitude by 15° per UTC hour of day; latitude
// and longitude do not enter the arithmetic.
func (c *Calculator) ComputeAscendant(ctx context.Context, instant time.Time, latitude, longitude float64) (float64, error) {
	const op = "chart.ComputeAscendant"
	t := NormalizeInstant(instant)
	sun, err := c.ComputeBodyLongitude(ctx, ephemeris.Sun, t)
	if err != nil {
		return 0, relabel(op, err)
	}
	return ascendantFrom(sun, t), nil
}

// ComputeChart computes the full chart for an instant and place. It fails
// without a partial result if any body cannot be resolved.
func (c *Calculator) ComputeChart(ctx context.Context, instant time.Time, latitude, longitude float64) (Chart, error) {
	const op = "chart.ComputeChart"
	t := NormalizeInstant(instant)

	tropical, err := c.measure(ctx, t)
	if err != nil {
		return Chart{}, relabel(op, err)
	}
	sidereal := toSiderealAll(tropical, t.Year())

	planets := make(map[ephemeris.Body]BodyPosition, len(ephemeris.ChartBodies))
	for body, lon := range sidereal {
		planets[body] = positionOf(lon)
	}

	asc := ascendantFrom(tropical[ephemeris.Sun], t)
	ac := Classify(asc)
	ch := Chart{
		Instant:   t,
		Latitude:  latitude,
		Longitude: longitude,
		Ascendant: Ascendant{
			Longitude: asc,
			Sign:      ac.Sign,
			Degree:    ac.SignDegree,
		},
		Planets:         planets,
		AyanamsaDegrees: AyanamsaFor(t.Year()),
	}
	c.logger.Debug(ctx, "chart computed",
		logger.Time("instant", t),
		logger.String("ascendant", ac.Sign.String()),
		logger.Float64("ayanamsa", ch.AyanamsaDegrees))
	return ch, nil
}

// ComputeTransits reports sign and degree for every chart body at instant.
func (c *Calculator) ComputeTransits(ctx context.Context, instant time.Time) (Transits, error) {
	const op = "chart.ComputeTransits"
	t := NormalizeInstant(instant)

	tropical, err := c.measure(ctx, t)
	if err != nil {
		return nil, relabel(op, err)
	}

	out := make(Transits, len(ephemeris.ChartBodies))
	for body, lon := range toSiderealAll(tropical, t.Year()) {
		cl := Classify(lon)
		out[body] = TransitPosition{Sign: cl.Sign, Degree: cl.SignDegree}
	}
	return out, nil
}

// measure resolves the tropical longitude of every measured body.
func (c *Calculator) measure(ctx context.Context, t time.Time) (map[ephemeris.Body]float64, error) {
	out := make(map[ephemeris.Body]float64, len(ephemeris.MeasuredBodies))
	for _, body := range ephemeris.MeasuredBodies {
		lon, err := c.ComputeBodyLongitude(ctx, body, t)
		if err != nil {
			return nil, err
		}
		out[body] = lon
	}
	return out, nil
}

// toSiderealAll converts measured bodies and derives Rahu opposite the Moon.
func toSiderealAll(tropical map[ephemeris.Body]float64, year int) map[ephemeris.Body]float64 {
	out := make(map[ephemeris.Body]float64, len(tropical)+1)
	for body, lon := range tropical {
		out[body] = ToSidereal(lon, year)
	}
	out[ephemeris.Rahu] = RahuFromMoon(out[ephemeris.Moon])
	return out
}

// RahuFromMoon returns the lunar north node as the point opposite the Moon's
// sidereal longitude.
func RahuFromMoon(moonSidereal float64) float64 {
	return Normalize(moonSidereal + fullCircle/2)
}

func ascendantFrom(sunTropical float64, t time.Time) float64 {
	hourAngle := (float64(t.Hour()) + float64(t.Minute())/60) * degreesPerHour
	return ToSidereal(Normalize(sunTropical+hourAngle), t.Year())
}

func positionOf(sidereal float64) BodyPosition {
	cl := Classify(sidereal)
	return BodyPosition{
		Longitude:  sidereal,
		Sign:       cl.Sign,
		SignNumber: cl.Sign.Number(),
		Degree:     cl.SignDegree,
		Nakshatra:  cl.Nakshatra,
		Pada:       cl.Pada,
	}
}

// relabel re-tags a calculator error with the outer operation.
func relabel(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return &Error{Op: op, Kind: e.Kind, Err: err}
	}
	return providerError(op, err)
}
