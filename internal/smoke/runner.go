package smoke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/okian/nakshatra/pkg/logger"
)

const outputFilePermission = 0o600

// ErrVerification reports that at least one chart broke an invariant or
// could not be fetched.
var ErrVerification = errors.New("chart verification failed")

// Run executes the complete smoke test and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("smoke")
	stats := &Stats{StartTime: time.Now()}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(stats.StartTime.UnixNano())
	}
	log.Info(ctx, "starting chart smoke test",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("profiles", cfg.NumProfiles),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.Any("seed", seed))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	if _, err := client.get(ctx, "/readyz", nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	profiles := generateProfiles(cfg.NumProfiles, seed)
	stats.ProfilesGenerated = len(profiles)
	if cfg.OutputFile != "" {
		if err := saveProfiles(cfg.OutputFile, profiles); err != nil {
			log.Warn(ctx, "failed to save profiles", logger.Error(err))
		}
	}

	accepted := submitProfiles(ctx, cfg, client, profiles, stats)
	fetchCharts(ctx, cfg, client, accepted, stats)

	var transits map[string]Position
	if _, err := client.get(ctx, "/transits", &transits); err != nil {
		return stats, fmt.Errorf("transits: %w", err)
	}
	stats.TransitBodies = len(transits)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "smoke test finished",
		logger.Int("generated", stats.ProfilesGenerated),
		logger.Int("registered", stats.ProfilesRegistered),
		logger.Int("unqueued", stats.ProfilesUnqueued),
		logger.Int("failed", stats.ProfilesFailed),
		logger.Int("charts", stats.ChartsFetched),
		logger.Int("invalid", stats.ChartsInvalid),
		logger.Int("transit_bodies", stats.TransitBodies),
		logger.Duration("duration", stats.Duration))

	switch {
	case stats.ProfilesFailed > 0:
		return stats, fmt.Errorf("%w: %d registrations failed", ErrVerification, stats.ProfilesFailed)
	case stats.ChartsInvalid > 0:
		return stats, fmt.Errorf("%w: %d invalid charts", ErrVerification, stats.ChartsInvalid)
	case stats.TransitBodies != len(chartBodies):
		return stats, fmt.Errorf("%w: %d transit bodies", ErrVerification, stats.TransitBodies)
	}
	return stats, nil
}

func saveProfiles(path string, profiles []Profile) error {
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, outputFilePermission)
}
