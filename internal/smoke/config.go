// Package smoke drives a running chart service with generated birth profiles
// and checks the charts it returns.
package smoke

import "time"

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL     string        // Base URL of the service
	NumProfiles int           // Number of profiles to generate
	Workers     int           // Number of concurrent HTTP workers
	Timeout     time.Duration // HTTP request timeout
	Seed        uint64        // Generator seed; zero picks one from the clock
	OutputFile  string        // Where generated profiles are written; empty skips
	Verbose     bool          // Log every failure
}

// Profile is the registration body sent to POST /profiles.
type Profile struct {
	UserID    string  `json:"user_id"`
	Name      string  `json:"name"`
	Place     string  `json:"place"`
	DOB       string  `json:"dob"`
	TOB       string  `json:"tob"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Position is the subset of a chart body the checks read.
type Position struct {
	Longitude float64 `json:"longitude"`
	Sign      string  `json:"sign"`
	SignNum   int     `json:"sign_num"`
	Degree    float64 `json:"degree"`
	Nakshatra string  `json:"nakshatra"`
	Pada      int     `json:"pada"`
}

// Chart is the subset of GET /profiles/{id}/chart the checks read.
type Chart struct {
	Ascendant struct {
		Longitude float64 `json:"longitude"`
		Sign      string  `json:"sign"`
		Degree    float64 `json:"degree"`
	} `json:"ascendant"`
	Planets map[string]Position `json:"planets"`
}

// Stats holds run statistics.
type Stats struct {
	ProfilesGenerated  int
	ProfilesRegistered int
	ProfilesUnqueued   int
	ProfilesFailed     int
	ChartsFetched      int
	ChartsInvalid      int
	TransitBodies      int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
