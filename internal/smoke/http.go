package smoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/nakshatra/pkg/logger"
)

// HTTPClient wraps http.Client with JSON helpers.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// get fetches path and decodes a JSON body into v when v is non-nil.
func (c *HTTPClient) get(ctx context.Context, path string, v any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, v)
}

// post sends body as JSON and decodes the response into v when v is non-nil.
func (c *HTTPClient) post(ctx context.Context, path string, body, v any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, v)
}

func (c *HTTPClient) do(req *http.Request, v any) (int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, fmt.Errorf("%s %s: %d %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if v != nil {
		if err := json.Unmarshal(data, v); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

type registration struct {
	Status string `json:"status"`
	UserID string `json:"user_id"`
	JobID  string `json:"job_id"`
	Queued bool   `json:"queued"`
}

// fanOut runs fn for every profile on workers goroutines.
func fanOut(ctx context.Context, workers int, profiles []Profile, fn func(Profile)) {
	ch := make(chan Profile, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range ch {
				if ctx.Err() != nil {
					continue
				}
				fn(p)
			}
		}()
	}
feed:
	for _, p := range profiles {
		select {
		case <-ctx.Done():
			break feed
		case ch <- p:
		}
	}
	close(ch)
	wg.Wait()
}

// submitProfiles registers every profile concurrently and returns the ones
// the service accepted.
func submitProfiles(ctx context.Context, cfg *Config, client *HTTPClient, profiles []Profile, stats *Stats) []Profile {
	log := logger.Get().Named("submit")
	var (
		mu       sync.Mutex
		accepted = make([]Profile, 0, len(profiles))
		unqueued atomic.Int64
		failed   atomic.Int64
	)

	fanOut(ctx, cfg.Workers, profiles, func(p Profile) {
		var reg registration
		status, err := client.post(ctx, "/profiles", p, &reg)
		if err != nil || status != http.StatusAccepted {
			failed.Add(1)
			if cfg.Verbose {
				log.Warn(ctx, "registration failed", logger.String("user_id", p.UserID), logger.Error(err))
			}
			return
		}
		if !reg.Queued {
			unqueued.Add(1)
		}
		mu.Lock()
		accepted = append(accepted, p)
		mu.Unlock()
	})

	stats.ProfilesRegistered = len(accepted)
	stats.ProfilesUnqueued = int(unqueued.Load())
	stats.ProfilesFailed = int(failed.Load())
	log.Info(ctx, "registration completed",
		logger.Int("registered", stats.ProfilesRegistered),
		logger.Int("unqueued", stats.ProfilesUnqueued),
		logger.Int("failed", stats.ProfilesFailed))
	return accepted
}

// fetchCharts reads and verifies the natal chart of every profile.
func fetchCharts(ctx context.Context, cfg *Config, client *HTTPClient, profiles []Profile, stats *Stats) {
	log := logger.Get().Named("charts")
	var fetched, invalid atomic.Int64

	fanOut(ctx, cfg.Workers, profiles, func(p Profile) {
		var c Chart
		if _, err := client.get(ctx, "/profiles/"+url.PathEscape(p.UserID)+"/chart", &c); err != nil {
			invalid.Add(1)
			log.Warn(ctx, "chart fetch failed", logger.String("user_id", p.UserID), logger.Error(err))
			return
		}
		fetched.Add(1)
		if err := verifyChart(c); err != nil {
			invalid.Add(1)
			log.Error(ctx, "chart invariant violated", logger.String("user_id", p.UserID), logger.Error(err))
		}
	})

	stats.ChartsFetched = int(fetched.Load())
	stats.ChartsInvalid = int(invalid.Load())
}
