package photos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/yegors/flight-tracker/internal/metrics"
	"github.com/yegors/flight-tracker/pkg/logger"
)

var (
	// ErrNotFound means no photo exists for the registration
	ErrNotFound = errors.New("no photo for registration")

	// ErrInvalidRegistration is returned for malformed registrations
	ErrInvalidRegistration = errors.New("invalid aircraft registration")
)

var registrationPattern = regexp.MustCompile(`^[A-Z0-9-]{2,10}$`)

const userAgent = "flight-tracker/1.0"

// Config holds photo lookup settings
type Config struct {
	APIBaseURL string
	Timeout    time.Duration
	MaxRetries int
	CacheTTL   time.Duration
}

// Photo is an aircraft picture with attribution
type Photo struct {
	Registration string `json:"registration"`
	ThumbnailURL string `json:"thumbnailUrl"`
	LargeURL     string `json:"largeUrl,omitempty"`
	Link         string `json:"link"`
	Photographer string `json:"photographer"`
}

type apiResponse struct {
	Photos []struct {
		ID        string `json:"id"`
		Thumbnail struct {
			Src string `json:"src"`
		} `json:"thumbnail"`
		ThumbnailLarge struct {
			Src string `json:"src"`
		} `json:"thumbnail_large"`
		Link         string `json:"link"`
		Photographer string `json:"photographer"`
	} `json:"photos"`
}

type cacheEntry struct {
	photo     *Photo // nil caches a miss
	expiresAt time.Time
}

// Client looks up aircraft photos by registration and caches the answers,
// misses included
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
	now        func() time.Time

	retryInterval time.Duration

	cache map[string]cacheEntry
	mu    sync.RWMutex
}

// NewClient creates a new photo client
func NewClient(config Config, log *logger.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 24 * time.Hour
	}

	return &Client{
		config:        config,
		httpClient:    &http.Client{Timeout: config.Timeout},
		logger:        log.Named("photos"),
		now:           time.Now,
		retryInterval: 500 * time.Millisecond,
		cache:         make(map[string]cacheEntry),
	}
}

// Lookup returns a photo for the registration
func (c *Client) Lookup(ctx context.Context, registration string) (*Photo, error) {
	reg := strings.ToUpper(strings.TrimSpace(registration))
	if !registrationPattern.MatchString(reg) {
		return nil, fmt.Errorf("%q: %w", registration, ErrInvalidRegistration)
	}

	c.mu.RLock()
	entry, ok := c.cache[reg]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		if entry.photo == nil {
			return nil, ErrNotFound
		}
		return entry.photo, nil
	}

	photo, err := c.fetch(ctx, reg)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	c.mu.Lock()
	c.cache[reg] = cacheEntry{photo: photo, expiresAt: c.now().Add(c.config.CacheTTL)}
	c.mu.Unlock()

	if photo == nil {
		return nil, ErrNotFound
	}
	return photo, nil
}

func (c *Client) fetch(ctx context.Context, reg string) (*Photo, error) {
	reqURL := strings.TrimRight(c.config.APIBaseURL, "/") + "/photos/reg/" + url.PathEscape(reg)

	var parsed apiResponse
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(ErrNotFound)
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("unexpected status code: %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to parse JSON: %w", err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(max(c.config.MaxRetries, 0))), ctx)

	if err := backoff.Retry(operation, retry); err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.UpstreamRequests.WithLabelValues("photos", "not_found").Inc()
			return nil, err
		}
		metrics.UpstreamRequests.WithLabelValues("photos", "error").Inc()
		c.logger.Warn("Photo lookup failed",
			logger.String("registration", reg),
			logger.Error(err))
		return nil, err
	}
	metrics.UpstreamRequests.WithLabelValues("photos", "success").Inc()

	if len(parsed.Photos) == 0 {
		return nil, ErrNotFound
	}

	p := parsed.Photos[0]
	return &Photo{
		Registration: reg,
		ThumbnailURL: p.Thumbnail.Src,
		LargeURL:     p.ThumbnailLarge.Src,
		Link:         p.Link,
		Photographer: p.Photographer,
	}, nil
}
