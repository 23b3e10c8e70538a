package weather

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/yegors/flight-tracker/pkg/logger"
)

var icaoPattern = regexp.MustCompile(`^[A-Z0-9]{4}$`)

// ErrInvalidAirport is returned for codes that are not four-character ICAO identifiers
var ErrInvalidAirport = errors.New("invalid ICAO airport code")

// Service answers weather lookups from the cache, fetching on a miss, and
// keeps the prefetch airports warm in the background
type Service struct {
	config Config
	client *Client
	cache  *Cache
	logger *logger.Logger

	// Service lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex
}

// NewService creates a new weather service
func NewService(config Config, log *logger.Logger) *Service {
	defaults := DefaultConfig()
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = defaults.RefreshInterval
	}
	if config.CacheExpiry <= 0 {
		config.CacheExpiry = defaults.CacheExpiry
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		config: config,
		client: NewClient(config, log),
		cache:  NewCache(config.CacheExpiry, log),
		logger: log.Named("weather-service"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins refreshing the prefetch airports
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil // Already started
	}
	if len(s.config.Prefetch) == 0 {
		return nil
	}

	s.logger.Info("Starting weather service",
		logger.Strings("prefetch", s.config.Prefetch),
		logger.Duration("refresh_interval", s.config.RefreshInterval))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.backgroundRefresh()
	}()

	s.started = true
	return nil
}

// Stop gracefully shuts down the weather service
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil // Already stopped
	}

	s.logger.Info("Stopping weather service")
	s.cancel()
	s.wg.Wait()

	s.started = false
	s.logger.Info("Weather service stopped")
	return nil
}

// Get returns the report for an airport. A fresh cache entry is returned as is;
// otherwise the API is queried, and when every part of that fails a stale
// entry is served if one exists.
func (s *Service) Get(ctx context.Context, icao string) (*Report, error) {
	icao = strings.ToUpper(strings.TrimSpace(icao))
	if !icaoPattern.MatchString(icao) {
		return nil, fmt.Errorf("%q: %w", icao, ErrInvalidAirport)
	}

	cached, fresh := s.cache.Get(icao)
	if fresh {
		return cached, nil
	}

	results := s.client.FetchAll(ctx, icao)
	if err := allFailed(results); err != nil {
		if cached != nil {
			s.logger.Warn("Serving stale weather data",
				logger.String("airport", icao),
				logger.Error(err))
			return cached, nil
		}
		return nil, err
	}

	return s.cache.Update(icao, results), nil
}

// IsStarted returns whether the background refresh is running
func (s *Service) IsStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func (s *Service) backgroundRefresh() {
	ticker := time.NewTicker(s.config.RefreshInterval)
	defer ticker.Stop()

	s.refreshPrefetch()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.refreshPrefetch()
		}
	}
}

func (s *Service) refreshPrefetch() {
	for _, icao := range s.config.Prefetch {
		if s.ctx.Err() != nil {
			return
		}
		results := s.client.FetchAll(s.ctx, icao)
		if err := allFailed(results); err != nil {
			s.logger.Warn("Weather prefetch failed",
				logger.String("airport", icao),
				logger.Error(err))
			continue
		}
		s.cache.Update(icao, results)
	}
}

// allFailed returns the joined errors when no fetch succeeded. Not-found
// answers are kept distinguishable with errors.Is.
func allFailed(results []FetchResult) error {
	if len(results) == 0 {
		return errors.New("no weather types enabled")
	}
	var errs []error
	for _, r := range results {
		if r.Err == nil {
			return nil
		}
		errs = append(errs, r.Err)
	}
	return errors.Join(errs...)
}
