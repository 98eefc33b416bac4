package chart

import "math"

// Lahiri ayanamsa, linear in the calendar year.
const (
	AyanamsaBase          = 23.85
	AyanamsaRatePerYear   = 0.0138889
	AyanamsaReferenceYear = 2000
)

const (
	fullCircle    = 360.0
	signWidth     = fullCircle / SignCount
	quartersCount = NakshatraCount * PadasPerNakshatra

	// PadasPerNakshatra is the number of quarters in each nakshatra.
	PadasPerNakshatra = 4

	// boundarySnap, in degrees, absorbs the rounding of boundaries such as
	// 11·360/108 that have no exact float64 representation.
	boundarySnap = 1e-9
)

// AyanamsaFor returns the precessional offset in degrees for a calendar year.
// No validity range is enforced.
func AyanamsaFor(year int) float64 {
	return AyanamsaBase + AyanamsaRatePerYear*float64(year-AyanamsaReferenceYear)
}

// ToSidereal converts a tropical longitude to the sidereal zodiac of year.
func ToSidereal(tropical float64, year int) float64 {
	return Normalize(tropical - AyanamsaFor(year))
}

// Normalize reduces an angle in degrees to [0, 360).
func Normalize(deg float64) float64 {
	r := math.Mod(deg, fullCircle)
	if r < 0 {
		r += fullCircle
	}
	if r >= fullCircle {
		r -= fullCircle
	}
	return r
}

// Classification is the symbolic placement of a sidereal longitude.
type Classification struct {
	Sign       Sign
	SignDegree float64
	Nakshatra  Nakshatra
	Pada       int
}

// Classify buckets a sidereal longitude into sign, nakshatra and pada. Every
// interval is half-open: a longitude on a boundary belongs to the sector that
// starts there. Longitudes less than boundarySnap below a boundary count as on
// it; anything further below stays in the lower sector.
func Classify(sidereal float64) Classification {
	l := Normalize(sidereal)

	sign := sector(l, SignCount)
	deg := l - float64(sign)*signWidth
	if deg < 0 {
		deg = 0
	}

	q := sector(l, quartersCount)
	return Classification{
		Sign:       Sign(sign),
		SignDegree: deg,
		Nakshatra:  Nakshatra(q / PadasPerNakshatra),
		Pada:       q%PadasPerNakshatra + 1,
	}
}

// sector returns which of n equal sectors of the circle contains l.
func sector(l float64, n int) int {
	s := int(math.Floor((l + boundarySnap) * float64(n) / fullCircle))
	if s >= n {
		s = n - 1
	}
	return s
}
