package smoke

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

var (
	firstInstant = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	lastInstant  = time.Date(2030, 12, 31, 23, 59, 0, 0, time.UTC)

	places = []string{"Ongole", "Chennai", "Varanasi", "Pune", "Kathmandu", "Colombo", "London", "Toronto"}
)

// generateProfiles returns n profiles with uuid user ids, minute-resolution
// birth instants in 1900-2030 and coordinates in range.
func generateProfiles(n int, seed uint64) []Profile {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	span := int64(lastInstant.Sub(firstInstant) / time.Minute)

	out := make([]Profile, n)
	for i := range out {
		birth := firstInstant.Add(time.Duration(rng.Int64N(span+1)) * time.Minute)
		out[i] = Profile{
			UserID:    uuid.NewString(),
			Name:      fmt.Sprintf("smoke-%d", i),
			Place:     places[rng.IntN(len(places))],
			DOB:       birth.Format("2006-01-02"),
			TOB:       birth.Format("15:04"),
			Latitude:  rng.Float64()*180 - 90,
			Longitude: rng.Float64()*360 - 180,
		}
	}
	return out
}
