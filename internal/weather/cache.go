package weather

import (
	"fmt"
	"sync"
	"time"

	"github.com/yegors/flight-tracker/pkg/logger"
)

type cacheEntry struct {
	report    *Report
	expiresAt time.Time
}

// Cache holds one report per airport with expiry
type Cache struct {
	entries map[string]cacheEntry
	expiry  time.Duration
	logger  *logger.Logger
	now     func() time.Time
	mu      sync.RWMutex
}

// NewCache creates a new weather cache
func NewCache(expiry time.Duration, log *logger.Logger) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		expiry:  expiry,
		logger:  log.Named("weather-cache"),
		now:     time.Now,
	}
}

// Get returns the cached report for an airport and whether it is still fresh.
// Expired reports are still returned so callers can fall back to them.
func (c *Cache) Get(icao string) (*Report, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[icao]
	if !ok {
		return nil, false
	}
	return e.report, c.now().Before(e.expiresAt)
}

// Update merges fetch results into the airport's report. A failed fetch keeps
// the previous value of that part.
func (c *Cache) Update(icao string, results []FetchResult) *Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := &Report{
		Airport:     icao,
		LastUpdated: c.now().UTC(),
	}
	if prev, ok := c.entries[icao]; ok {
		report.METAR = prev.report.METAR
		report.TAF = prev.report.TAF
	}

	for _, result := range results {
		if result.Err != nil {
			report.FetchErrors = append(report.FetchErrors, fmt.Sprintf("%s: %s", result.Type, result.Err.Error()))
			continue
		}
		switch result.Type {
		case WeatherTypeMETAR:
			report.METAR = result.METAR
		case WeatherTypeTAF:
			report.TAF = result.TAF
		}
	}

	c.entries[icao] = cacheEntry{
		report:    report,
		expiresAt: c.now().Add(c.expiry),
	}

	c.logger.Debug("Weather cache updated",
		logger.String("airport", icao),
		logger.Int("successful_fetches", len(results)-len(report.FetchErrors)),
		logger.Int("failed_fetches", len(report.FetchErrors)))

	return report
}

// Invalidate drops an airport from the cache
func (c *Cache) Invalidate(icao string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, icao)
}

// Len returns the number of cached airports
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
