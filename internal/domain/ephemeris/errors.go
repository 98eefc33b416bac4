package ephemeris

import "errors"

// Sentinel kinds for ephemeris errors.
var (
	ErrUnsupportedBody = errors.New("unsupported body")
	ErrProviderFailure = errors.New("ephemeris provider failure")
)
