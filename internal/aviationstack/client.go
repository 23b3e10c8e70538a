package aviationstack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/yegors/flight-tracker/internal/flight"
	"github.com/yegors/flight-tracker/internal/metrics"
	"github.com/yegors/flight-tracker/pkg/logger"
)

// Re-exported so callers of this package don't need to import flight for errors.Is
var (
	ErrNoData        = flight.ErrNoData
	ErrMisconfigured = flight.ErrMisconfigured
	ErrUnreachable   = flight.ErrUnreachable
)

const breakerName = "aviationstack"

// Access keys that ship in sample configs and must be treated as unset
var placeholderKeys = map[string]bool{
	"":                  true,
	"your_api_key":      true,
	"your_api_key_here": true,
	"your-api-key":      true,
	"changeme":          true,
	"<api_key>":         true,
}

// Config holds the AviationStack client settings
type Config struct {
	BaseURL           string
	AccessKey         string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables client-side limiting
	Burst             int
	BreakerFailures   uint32        // consecutive failures before the breaker opens
	BreakerTimeout    time.Duration // time spent open before probing again
}

// Client fetches live flight state from an AviationStack-compatible API
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*flight.Snapshot]
	logger     *logger.Logger
}

// NewClient creates a new AviationStack client
func NewClient(config Config, log *logger.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.BreakerFailures == 0 {
		config.BreakerFailures = 5
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = time.Minute
	}

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: log.Named("aviationstack"),
	}

	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	c.breaker = gobreaker.NewCircuitBreaker[*flight.Snapshot](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerFailures
		},
		// Empty results and rejected keys are answers, not upstream outages
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoData) || errors.Is(err, ErrMisconfigured)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state transition",
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return c
}

// Configured reports whether a usable access key is set
func (c *Client) Configured() bool {
	key := strings.ToLower(strings.TrimSpace(c.config.AccessKey))
	return !placeholderKeys[key] && c.config.BaseURL != ""
}

// FetchFlight returns the current snapshot for a flight number
func (c *Client) FetchFlight(ctx context.Context, number string) (*flight.Snapshot, error) {
	number = flight.NormalizeNumber(number)
	if number == "" {
		return nil, fmt.Errorf("empty flight number: %w", ErrNoData)
	}
	if !c.Configured() {
		return nil, fmt.Errorf("access key not set: %w", ErrMisconfigured)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %v: %w", err, ErrUnreachable)
		}
	}

	snap, err := c.breaker.Execute(func() (*flight.Snapshot, error) {
		return c.fetch(ctx, number)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.UpstreamRequests.WithLabelValues(breakerName, "rejected").Inc()
			return nil, fmt.Errorf("%v: %w", err, ErrUnreachable)
		}
		return nil, err
	}
	return snap, nil
}

func (c *Client) fetch(ctx context.Context, number string) (*flight.Snapshot, error) {
	query := url.Values{}
	query.Set("access_key", c.config.AccessKey)
	query.Set("flight_iata", number)
	reqURL := strings.TrimRight(c.config.BaseURL, "/") + "/flights?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Fetching flight data", logger.String("flight", number))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(breakerName, "error").Inc()
		return nil, fmt.Errorf("failed to execute request: %v: %w", err, ErrUnreachable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(breakerName, "error").Inc()
		return nil, fmt.Errorf("failed to read response body: %v: %w", err, ErrUnreachable)
	}

	var parsed flightsResponse
	parseErr := json.Unmarshal(body, &parsed)

	// The API reports bad keys both as 401 and as 200 with an error body
	if parsed.Error != nil && isKeyError(parsed.Error.Code) {
		metrics.UpstreamRequests.WithLabelValues(breakerName, "misconfigured").Inc()
		return nil, fmt.Errorf("api rejected access key (%s): %w", parsed.Error.Code, ErrMisconfigured)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.WithLabelValues(breakerName, "error").Inc()
		return nil, fmt.Errorf("unexpected status code: %d: %w", resp.StatusCode, ErrUnreachable)
	}
	if parseErr != nil {
		metrics.UpstreamRequests.WithLabelValues(breakerName, "error").Inc()
		return nil, fmt.Errorf("failed to parse JSON: %v: %w", parseErr, ErrUnreachable)
	}
	if parsed.Error != nil {
		metrics.UpstreamRequests.WithLabelValues(breakerName, "error").Inc()
		return nil, fmt.Errorf("api error %s: %s: %w", parsed.Error.Code, parsed.Error.Message, ErrUnreachable)
	}

	metrics.UpstreamRequests.WithLabelValues(breakerName, "success").Inc()

	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("flight %s: %w", number, ErrNoData)
	}

	return parsed.Data[0].normalize(number), nil
}

func isKeyError(code string) bool {
	switch code {
	case "invalid_access_key", "missing_access_key", "inactive_user":
		return true
	default:
		return false
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
