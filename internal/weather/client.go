package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/yegors/flight-tracker/internal/metrics"
	"github.com/yegors/flight-tracker/pkg/logger"
)

// ErrNotFound means the API has no report for the airport
var ErrNotFound = errors.New("no weather data")

// Client handles HTTP requests to the weather API
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger

	// initial retry interval, shortened in tests
	retryInterval time.Duration
}

// NewClient creates a new weather API client
func NewClient(config Config, log *logger.Logger) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		logger:        log.Named("weather-client"),
		retryInterval: 500 * time.Millisecond,
	}
}

// FetchMETAR fetches the latest METAR for an airport
func (c *Client) FetchMETAR(ctx context.Context, icao string) (*METAR, error) {
	var result []METAR // API returns an array
	if err := c.fetchWithRetry(ctx, "metar", WeatherTypeMETAR, icao, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("no METAR for %s: %w", icao, ErrNotFound)
	}
	return &result[0], nil
}

// FetchTAF fetches the current TAF for an airport
func (c *Client) FetchTAF(ctx context.Context, icao string) (*TAF, error) {
	var result []TAF
	if err := c.fetchWithRetry(ctx, "taf", WeatherTypeTAF, icao, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("no TAF for %s: %w", icao, ErrNotFound)
	}
	return &result[0], nil
}

// fetchWithRetry performs the request with exponential backoff. Client errors
// are not retried.
func (c *Client) fetchWithRetry(ctx context.Context, endpoint string, weatherType WeatherType, icao string, target any) error {
	query := url.Values{}
	query.Set("ids", icao)
	query.Set("format", "json")
	reqURL := fmt.Sprintf("%s/%s?%s", strings.TrimRight(c.config.APIBaseURL, "/"), endpoint, query.Encode())

	attempt := 0
	operation := func() error {
		attempt++

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("error making request to weather API: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNoContent:
			// aviationweather.gov answers 204 for unknown stations
			return backoff.Permanent(fmt.Errorf("%s for %s: %w", weatherType, icao, ErrNotFound))
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(fmt.Errorf("unexpected status code: %d", resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("error decoding weather data: %w", err)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	policy.MaxElapsedTime = 0
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(max(c.config.MaxRetries, 0))), ctx)

	err := backoff.RetryNotify(operation, retry, func(err error, wait time.Duration) {
		c.logger.Warn("Weather API request failed, retrying",
			logger.String("type", string(weatherType)),
			logger.String("airport", icao),
			logger.Int("attempt", attempt),
			logger.Duration("backoff", wait),
			logger.Error(err))
	})
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("weather", "error").Inc()
		if !errors.Is(err, ErrNotFound) {
			c.logger.Error("All attempts to fetch weather data failed",
				logger.String("type", string(weatherType)),
				logger.String("airport", icao),
				logger.Int("attempts", attempt),
				logger.Error(err))
		}
		return err
	}

	metrics.UpstreamRequests.WithLabelValues("weather", "success").Inc()
	if attempt > 1 {
		c.logger.Info("Successfully fetched weather data after retries",
			logger.String("type", string(weatherType)),
			logger.String("airport", icao),
			logger.Int("attempts_needed", attempt))
	}
	return nil
}

// FetchAll fetches all enabled weather data types concurrently
func (c *Client) FetchAll(ctx context.Context, icao string) []FetchResult {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []FetchResult
	)

	collect := func(r FetchResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	if c.config.FetchMETAR {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := c.FetchMETAR(ctx, icao)
			collect(FetchResult{Type: WeatherTypeMETAR, METAR: m, Err: err})
		}()
	}

	if c.config.FetchTAF {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t, err := c.FetchTAF(ctx, icao)
			collect(FetchResult{Type: WeatherTypeTAF, TAF: t, Err: err})
		}()
	}

	wg.Wait()
	return results
}
