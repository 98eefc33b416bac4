package chart

import (
	"errors"

	"github.com/okian/nakshatra/internal/domain/ephemeris"
)

// Error kinds reported by the calculator.
var (
	ErrUnsupportedBody   = ephemeris.ErrUnsupportedBody
	ErrEphemerisProvider = ephemeris.ErrProviderFailure
	ErrNilProvider       = errors.New("nil ephemeris provider")
	ErrInvalidInstant    = errors.New("invalid instant")
	ErrInvalidLocation   = errors.New("invalid location")
	ErrUnknownSign       = errors.New("unknown sign")
	ErrUnknownNakshatra  = errors.New("unknown nakshatra")
)

// Error is returned by Calculator operations. Both Kind and the underlying
// cause match with errors.Is.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	if errors.Is(e.Err, e.Kind) {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// providerError classifies a provider failure. Unknown bodies keep their
// kind, everything else is a provider failure.
func providerError(op string, err error) error {
	kind := ErrEphemerisProvider
	if errors.Is(err, ErrUnsupportedBody) {
		kind = ErrUnsupportedBody
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
