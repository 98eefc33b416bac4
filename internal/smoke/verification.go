package smoke

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Chart bodies and zodiac signs in canonical order.
var (
	chartBodies = []string{"Sun", "Moon", "Mercury", "Venus", "Mars", "Jupiter", "Saturn", "Rahu"}
	signs       = []string{"Aries", "Taurus", "Gemini", "Cancer", "Leo", "Virgo",
		"Libra", "Scorpio", "Sagittarius", "Capricorn", "Aquarius", "Pisces"}
)

const rahuTolerance = 1e-9

// verifyChart checks the invariants every natal chart must satisfy.
func verifyChart(c Chart) error {
	var errs []error
	if len(c.Planets) != len(chartBodies) {
		errs = append(errs, fmt.Errorf("chart has %d bodies, want %d", len(c.Planets), len(chartBodies)))
	}
	for _, body := range chartBodies {
		p, ok := c.Planets[body]
		if !ok {
			errs = append(errs, fmt.Errorf("%s missing", body))
			continue
		}
		if err := verifyPosition(p); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", body, err))
		}
	}
	if !slices.Contains(signs, c.Ascendant.Sign) {
		errs = append(errs, fmt.Errorf("ascendant sign %q unknown", c.Ascendant.Sign))
	}

	moon, okMoon := c.Planets["Moon"]
	rahu, okRahu := c.Planets["Rahu"]
	if okMoon && okRahu {
		want := math.Mod(moon.Longitude+180, 360)
		if d := math.Abs(want - rahu.Longitude); d > rahuTolerance && math.Abs(d-360) > rahuTolerance {
			errs = append(errs, fmt.Errorf("rahu %.9f not opposite moon %.9f", rahu.Longitude, moon.Longitude))
		}
	}
	return errors.Join(errs...)
}

func verifyPosition(p Position) error {
	switch {
	case p.Longitude < 0 || p.Longitude >= 360:
		return fmt.Errorf("longitude %v outside [0, 360)", p.Longitude)
	case p.Pada < 1 || p.Pada > 4:
		return fmt.Errorf("pada %d outside 1..4", p.Pada)
	case p.Degree < 0 || p.Degree >= 30:
		return fmt.Errorf("degree %v outside [0, 30)", p.Degree)
	case p.Nakshatra == "":
		return errors.New("nakshatra missing")
	}
	i := slices.Index(signs, p.Sign)
	if i < 0 {
		return fmt.Errorf("sign %q unknown", p.Sign)
	}
	if p.SignNum != i+1 {
		return fmt.Errorf("sign_num %d does not match %s", p.SignNum, p.Sign)
	}
	return nil
}
