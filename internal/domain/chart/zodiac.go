package chart

import (
	"fmt"
	"strings"
)

// Sign is one of the twelve 30° sectors of the sidereal zodiac, Aries first.
type Sign int

const (
	Aries Sign = iota
	Taurus
	Gemini
	Cancer
	Leo
	Virgo
	Libra
	Scorpio
	Sagittarius
	Capricorn
	Aquarius
	Pisces
)

// SignCount is the number of zodiac signs.
const SignCount = 12

var signNames = [SignCount]string{ //nolint:gochecknoglobals // fixed name table
	"Aries", "Taurus", "Gemini", "Cancer", "Leo", "Virgo",
	"Libra", "Scorpio", "Sagittarius", "Capricorn", "Aquarius", "Pisces",
}

// Valid reports whether s is one of the twelve signs.
func (s Sign) Valid() bool { return s >= 0 && int(s) < SignCount }

func (s Sign) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Sign(%d)", int(s))
	}
	return signNames[s]
}

// Number is the 1-based position of the sign, Aries = 1.
func (s Sign) Number() int { return int(s) + 1 }

func (s Sign) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSign, int(s))
	}
	return []byte(signNames[s]), nil
}

func (s *Sign) UnmarshalText(text []byte) error {
	v, err := ParseSign(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSign resolves a sign name case-insensitively.
func ParseSign(name string) (Sign, error) {
	for i, n := range signNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Sign(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSign, name)
}

// Nakshatra is one of the 27 lunar mansions of 13°20′ each, Ashwini first.
type Nakshatra int

// NakshatraCount is the number of lunar mansions.
const NakshatraCount = 27

var nakshatraNames = [NakshatraCount]string{ //nolint:gochecknoglobals // fixed name table
	"Ashwini", "Bharani", "Krittika", "Rohini", "Mrigashira", "Ardra",
	"Punarvasu", "Pushya", "Ashlesha", "Magha", "Purva Phalguni", "Uttara Phalguni",
	"Hasta", "Chitra", "Swati", "Vishakha", "Anuradha", "Jyeshtha",
	"Mula", "Purva Ashadha", "Uttara Ashadha", "Shravana", "Dhanishta", "Shatabhisha",
	"Purva Bhadrapada", "Uttara Bhadrapada", "Revati",
}

// Valid reports whether n is one of the 27 nakshatras.
func (n Nakshatra) Valid() bool { return n >= 0 && int(n) < NakshatraCount }

func (n Nakshatra) String() string {
	if !n.Valid() {
		return fmt.Sprintf("Nakshatra(%d)", int(n))
	}
	return nakshatraNames[n]
}

func (n Nakshatra) MarshalText() ([]byte, error) {
	if !n.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNakshatra, int(n))
	}
	return []byte(nakshatraNames[n]), nil
}

func (n *Nakshatra) UnmarshalText(text []byte) error {
	v, err := ParseNakshatra(string(text))
	if err != nil {
		return err
	}
	*n = v
	return nil
}

// ParseNakshatra resolves a nakshatra name case-insensitively.
func ParseNakshatra(name string) (Nakshatra, error) {
	for i, n := range nakshatraNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Nakshatra(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownNakshatra, name)
}
