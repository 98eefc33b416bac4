package ephemeris

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Model constants.
const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi

	// elementEpochJulianDay is day zero of the orbital element polynomials
	// (1999-12-31 00:00 UT).
	elementEpochJulianDay = 2451543.5

	maxKeplerIterations = 30
	keplerTolerance     = 1e-12
)

// elements holds mean orbital elements as linear functions of the day number d.
// Angles are degrees, distances are AU (Earth radii for the Moon).
type elements struct {
	node0, node1 float64 // longitude of ascending node
	incl0, incl1 float64 // inclination
	peri0, peri1 float64 // argument of perihelion
	axis         float64 // semi-major axis
	ecc0, ecc1   float64 // eccentricity
	anom0, anom1 float64 // mean anomaly
}

// orbit is an element set evaluated at a single instant.
type orbit struct {
	node, incl, peri, axis, ecc, anom float64
}

func (e elements) at(d float64) orbit {
	return orbit{
		node: e.node0 + e.node1*d,
		incl: e.incl0 + e.incl1*d,
		peri: e.peri0 + e.peri1*d,
		axis: e.axis,
		ecc:  e.ecc0 + e.ecc1*d,
		anom: revolution(e.anom0 + e.anom1*d),
	}
}

// Mean elements of date.
var (
	sunElements = elements{ //nolint:gochecknoglobals // constant model table
		peri0: 282.9404, peri1: 4.70935e-5,
		axis: 1.0,
		ecc0: 0.016709, ecc1: -1.151e-9,
		anom0: 356.0470, anom1: 0.9856002585,
	}
	moonElements = elements{ //nolint:gochecknoglobals // constant model table
		node0: 125.1228, node1: -0.0529538083,
		incl0: 5.1454,
		peri0: 318.0634, peri1: 0.1643573223,
		axis:  60.2666,
		ecc0:  0.054900,
		anom0: 115.3654, anom1: 13.0649929509,
	}
	planetElements = map[Body]elements{ //nolint:gochecknoglobals // constant model table
		Mercury: {
			node0: 48.3313, node1: 3.24587e-5,
			incl0: 7.0047, incl1: 5.00e-8,
			peri0: 29.1241, peri1: 1.01444e-5,
			axis: 0.387098,
			ecc0: 0.205635, ecc1: 5.59e-10,
			anom0: 168.6562, anom1: 4.0923344368,
		},
		Venus: {
			node0: 76.6799, node1: 2.46590e-5,
			incl0: 3.3946, incl1: 2.75e-8,
			peri0: 54.8910, peri1: 1.38374e-5,
			axis: 0.723330,
			ecc0: 0.006773, ecc1: -1.302e-9,
			anom0: 48.0052, anom1: 1.6021302244,
		},
		Mars: {
			node0: 49.5574, node1: 2.11081e-5,
			incl0: 1.8497, incl1: -1.78e-8,
			peri0: 286.5016, peri1: 2.92961e-5,
			axis: 1.523688,
			ecc0: 0.093405, ecc1: 2.516e-9,
			anom0: 18.6021, anom1: 0.5240207766,
		},
		Jupiter: {
			node0: 100.4542, node1: 2.76854e-5,
			incl0: 1.3030, incl1: -1.557e-7,
			peri0: 273.8777, peri1: 1.64505e-5,
			axis: 5.20256,
			ecc0: 0.048498, ecc1: 4.469e-9,
			anom0: 19.8950, anom1: 0.0830853001,
		},
		Saturn: {
			node0: 113.6634, node1: 2.38980e-5,
			incl0: 2.4886, incl1: -1.081e-7,
			peri0: 339.3939, peri1: 2.97661e-5,
			axis: 9.55475,
			ecc0: 0.055546, ecc1: -9.499e-9,
			anom0: 316.9670, anom1: 0.0334442282,
		},
	}
)

// BuiltinProvider computes positions from mean orbital elements with the
// principal periodic perturbations of the Moon, Jupiter and Saturn. Accuracy
// is on the order of a few arc-minutes for dates within a few centuries of
// 2000, which is well inside one pada (3°20′).
//
// BuiltinProvider holds no state and is safe for concurrent use.
type BuiltinProvider struct{}

// NewBuiltinProvider returns the analytic provider.
func NewBuiltinProvider() *BuiltinProvider {
	return &BuiltinProvider{}
}

// PositionOf implements Provider.
func (p *BuiltinProvider) PositionOf(ctx context.Context, body Body, instant time.Time) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}
	d := JulianDay(instant) - elementEpochJulianDay

	switch body {
	case Sun:
		lon, _ := sunPosition(d)
		return revolution(lon), nil
	case Moon:
		return revolution(moonLongitude(d)), nil
	case Mercury, Venus, Mars, Jupiter, Saturn:
		return revolution(planetLongitude(body, d)), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedBody, body)
	}
}

// sunPosition returns the Sun's geocentric ecliptic longitude (degrees) and distance (AU).
func sunPosition(d float64) (lon, dist float64) {
	o := sunElements.at(d)
	ecc := eccentricAnomaly(o.anom, o.ecc)
	xv := math.Cos(ecc) - o.ecc
	yv := math.Sqrt(1-o.ecc*o.ecc) * math.Sin(ecc)
	v := math.Atan2(yv, xv) * radToDeg
	return v + o.peri, math.Hypot(xv, yv)
}

// moonLongitude returns the Moon's geocentric ecliptic longitude in degrees.
func moonLongitude(d float64) float64 {
	o := moonElements.at(d)
	x, y, _ := orbitalPosition(o)
	lon := math.Atan2(y, x) * radToDeg

	sun := sunElements.at(d)
	ms := sun.anom
	mm := o.anom
	ls := sun.anom + sun.peri
	lm := o.anom + o.peri + o.node
	elong := lm - ls   // mean elongation D
	arg := lm - o.node // argument of latitude F

	lon += -1.274*sinDeg(mm-2*elong) + // evection
		0.658*sinDeg(2*elong) + // variation
		-0.186*sinDeg(ms) + // yearly equation
		-0.059*sinDeg(2*mm-2*elong) +
		-0.057*sinDeg(mm-2*elong+ms) +
		0.053*sinDeg(mm+2*elong) +
		0.046*sinDeg(2*elong-ms) +
		0.041*sinDeg(mm-ms) +
		-0.035*sinDeg(elong) + // parallactic equation
		-0.031*sinDeg(mm+ms) +
		-0.015*sinDeg(2*arg-2*elong) +
		0.011*sinDeg(mm-4*elong)
	return lon
}

// planetLongitude returns a planet's geocentric ecliptic longitude in degrees.
func planetLongitude(body Body, d float64) float64 {
	o := planetElements[body].at(d)
	xh, yh, zh := orbitalPosition(o)

	lon := math.Atan2(yh, xh) * radToDeg
	lat := math.Atan2(zh, math.Hypot(xh, yh)) * radToDeg
	r := math.Sqrt(xh*xh + yh*yh + zh*zh)

	if body == Jupiter || body == Saturn {
		mj := planetElements[Jupiter].at(d).anom
		ms := planetElements[Saturn].at(d).anom
		dLon, dLat := greatInequality(body, mj, ms)
		lon += dLon
		lat += dLat
	}

	xh = r * cosDeg(lon) * cosDeg(lat)
	yh = r * sinDeg(lon) * cosDeg(lat)

	sunLon, sunDist := sunPosition(d)
	xg := xh + sunDist*cosDeg(sunLon)
	yg := yh + sunDist*sinDeg(sunLon)
	return math.Atan2(yg, xg) * radToDeg
}

// greatInequality returns the Jupiter/Saturn mutual perturbations in degrees.
func greatInequality(body Body, mj, ms float64) (dLon, dLat float64) {
	if body == Jupiter {
		dLon = -0.332*sinDeg(2*mj-5*ms-67.6) +
			-0.056*sinDeg(2*mj-2*ms+21) +
			0.042*sinDeg(3*mj-5*ms+21) +
			-0.036*sinDeg(mj-2*ms) +
			0.022*cosDeg(mj-ms) +
			0.023*sinDeg(2*mj-3*ms+52) +
			-0.016*sinDeg(mj-5*ms-69)
		return dLon, 0
	}
	dLon = 0.812*sinDeg(2*mj-5*ms-67.6) +
		-0.229*cosDeg(2*mj-4*ms-2) +
		0.119*sinDeg(mj-2*ms-3) +
		0.046*sinDeg(2*mj-6*ms-69) +
		0.014*sinDeg(mj-3*ms+32)
	dLat = -0.020*cosDeg(2*mj-4*ms-2) +
		0.018*sinDeg(2*mj-6*ms-49)
	return dLon, dLat
}

// orbitalPosition projects an orbit onto ecliptic rectangular coordinates
// centred on the primary.
func orbitalPosition(o orbit) (x, y, z float64) {
	ecc := eccentricAnomaly(o.anom, o.ecc)
	xv := o.axis * (math.Cos(ecc) - o.ecc)
	yv := o.axis * math.Sqrt(1-o.ecc*o.ecc) * math.Sin(ecc)
	v := math.Atan2(yv, xv) * radToDeg
	r := math.Hypot(xv, yv)

	vw := v + o.peri
	x = r * (cosDeg(o.node)*cosDeg(vw) - sinDeg(o.node)*sinDeg(vw)*cosDeg(o.incl))
	y = r * (sinDeg(o.node)*cosDeg(vw) + cosDeg(o.node)*sinDeg(vw)*cosDeg(o.incl))
	z = r * (sinDeg(vw) * sinDeg(o.incl))
	return x, y, z
}

// eccentricAnomaly solves Kepler's equation by Newton iteration. The mean
// anomaly is in degrees; the result is in radians.
func eccentricAnomaly(meanAnomaly, ecc float64) float64 {
	m := meanAnomaly * degToRad
	e := m + ecc*math.Sin(m)*(1+ecc*math.Cos(m))
	for i := 0; i < maxKeplerIterations; i++ {
		delta := (e - ecc*math.Sin(e) - m) / (1 - ecc*math.Cos(e))
		e -= delta
		if math.Abs(delta) < keplerTolerance {
			break
		}
	}
	return e
}

func sinDeg(x float64) float64 { return math.Sin(x * degToRad) }
func cosDeg(x float64) float64 { return math.Cos(x * degToRad) }

// revolution reduces an angle to [0, 360).
func revolution(x float64) float64 {
	r := math.Mod(x, 360)
	if r < 0 {
		r += 360
	}
	if r >= 360 {
		r -= 360
	}
	return r
}
