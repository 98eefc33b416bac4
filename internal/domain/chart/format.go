package chart

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/nakshatra/internal/domain/ephemeris"
)

// Format renders a natal chart and current transits as the fixed text block
// consumed by the prompt builder. Bodies appear in canonical order; a body
// missing from either map is skipped.
func Format(c Chart, t Transits) string {
	var b strings.Builder

	b.WriteString("BIRTH CHART DATA:\n")
	fmt.Fprintf(&b, "Ascendant: %s %s°\n\n", c.Ascendant.Sign, FormatDegree(c.Ascendant.Degree))

	b.WriteString("PLANETARY POSITIONS:\n")
	for _, body := range ephemeris.ChartBodies {
		p, ok := c.Planets[body]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s: %s %s° (%s Pada %d)\n", body, p.Sign, FormatDegree(p.Degree), p.Nakshatra, p.Pada)
	}

	b.WriteString("\nCURRENT TRANSITS:\n")
	for _, body := range ephemeris.ChartBodies {
		p, ok := t[body]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s: %s %s°\n", body, p.Sign, FormatDegree(p.Degree))
	}

	return b.String()
}

// FormatDegree rounds to two decimals and drops trailing zeros, keeping at
// least one: 14.5 renders as "14.5", 3 as "3.0".
func FormatDegree(deg float64) string {
	s := strconv.FormatFloat(math.Round(deg*100)/100, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
