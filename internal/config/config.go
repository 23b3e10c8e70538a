package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// AccessKeyEnv overrides flights.access_key when set, so the key can stay out of the file
const AccessKeyEnv = "FLIGHT_TRACKER_ACCESS_KEY"

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server  ServerConfig  `toml:"server"`  // HTTP server settings
	Logging LoggingConfig `toml:"logging"` // Application logging settings
	Flights FlightsConfig `toml:"flights"` // Flight data source and polling settings
	Queue   QueueConfig   `toml:"queue"`   // Airport security queue scraper settings
	Weather WeatherConfig `toml:"wx"`      // Weather proxy settings
	Photos  PhotosConfig  `toml:"photos"`  // Aircraft photo proxy settings
	Metrics MetricsConfig `toml:"metrics"` // Prometheus endpoint settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on (useful for multiple interfaces)
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory to serve static files from (e.g., "www")
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"` // Per-IP request limit for /api routes (0 = unlimited)
}

// LoggingConfig contains application logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // console or json
}

// FlightsConfig contains the flight status API and poller settings
type FlightsConfig struct {
	APIBaseURL            string  `toml:"api_base_url"`            // AviationStack-compatible API root
	AccessKey             string  `toml:"access_key"`              // API access key (or set FLIGHT_TRACKER_ACCESS_KEY)
	PollIntervalSeconds   int     `toml:"poll_interval_seconds"`   // How often tracked flights are re-fetched
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"` // Timeout for a single upstream request
	RequestsPerSecond     float64 `toml:"requests_per_second"`     // Client-side upstream rate limit (0 = unlimited)
	Burst                 int     `toml:"burst"`                   // Token bucket burst size
	BreakerFailures       int     `toml:"breaker_failures"`        // Consecutive upstream failures before the circuit opens
	BreakerTimeoutSeconds int     `toml:"breaker_timeout_seconds"` // How long the circuit stays open before probing
}

// QueueConfig contains the security queue scraper settings
type QueueConfig struct {
	Enabled               bool   `toml:"enabled"`                 // Enable the scraper
	URL                   string `toml:"url"`                     // Page carrying the wait time estimate
	Airport               string `toml:"airport"`                 // Airport code reported with each update
	ElementClass          string `toml:"element_class"`           // CSS class of the element holding the estimate
	IntervalSeconds       int    `toml:"interval_seconds"`        // Scrape interval
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP request timeout in seconds
}

// WeatherConfig contains weather data fetching and caching configuration
type WeatherConfig struct {
	Enabled                bool     `toml:"enabled"`                  // Enable the /api/v1/weather proxy
	APIBaseURL             string   `toml:"api_base_url"`             // Base URL for weather API (e.g., https://aviationweather.gov/api/data)
	RequestTimeoutSeconds  int      `toml:"request_timeout_seconds"`  // HTTP request timeout in seconds
	MaxRetries             int      `toml:"max_retries"`              // Maximum number of retry attempts for failed requests
	FetchMETAR             bool     `toml:"fetch_metar"`              // Whether to fetch METAR data
	FetchTAF               bool     `toml:"fetch_taf"`                // Whether to fetch TAF data
	CacheExpiryMinutes     int      `toml:"cache_expiry_minutes"`     // How long a cached report is served without refetching
	RefreshIntervalMinutes int      `toml:"refresh_interval_minutes"` // Background refresh interval for prefetch airports
	PrefetchAirports       []string `toml:"prefetch_airports"`        // ICAO codes kept warm in the background
}

// PhotosConfig contains aircraft photo lookup settings
type PhotosConfig struct {
	Enabled               bool   `toml:"enabled"`                 // Enable the /api/v1/photos proxy
	APIBaseURL            string `toml:"api_base_url"`            // Planespotters-compatible API root
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP request timeout in seconds
	MaxRetries            int    `toml:"max_retries"`             // Retry attempts for failed requests
	CacheTTLMinutes       int    `toml:"cache_ttl_minutes"`       // How long lookups (and misses) are cached
}

// MetricsConfig contains Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"` // Expose the metrics endpoint
	Path    string `toml:"path"`    // HTTP path, default /metrics
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if key := os.Getenv(AccessKeyEnv); key != "" {
		config.Flights.AccessKey = key
	}

	return &config, nil
}

// LoadWithFallback tries the preferred path, then the usual locations
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // Default location in configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			// File exists, try to load it
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	if err := c.ValidateFlights(); err != nil {
		return err
	}
	if err := c.ValidateQueue(); err != nil {
		return err
	}
	if err := c.ValidateWeather(); err != nil {
		return err
	}
	if err := c.ValidatePhotos(); err != nil {
		return err
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with '/': %s", c.Metrics.Path)
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	// Validate AdditionalPorts
	portsSeen := make(map[int]bool)
	portsSeen[c.Server.Port] = true
	for _, p := range c.Server.AdditionalPorts {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid additional server port: %d", p)
		}
		if portsSeen[p] {
			return fmt.Errorf("duplicate port configured: %d (primary or additional)", p)
		}
		portsSeen[p] = true
	}

	if len(c.Server.CORSAllowedOrigins) == 0 {
		c.Server.CORSAllowedOrigins = []string{"*"}
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate_limit_per_minute must be 0 or greater: %d", c.Server.RateLimitPerMinute)
	}

	// Set default static files directory if not specified
	if c.Server.StaticFilesDir == "" {
		c.Server.StaticFilesDir = "www"
	}

	// Validate static files directory exists
	if _, err := os.Stat(c.Server.StaticFilesDir); os.IsNotExist(err) {
		return fmt.Errorf("static files directory does not exist: %s", c.Server.StaticFilesDir)
	}

	return nil
}

// ValidateFlights validates the flight source configuration. A missing access
// key is not an error: polling then skips every flight until one is set.
func (c *Config) ValidateFlights() error {
	f := &c.Flights

	if f.APIBaseURL == "" {
		f.APIBaseURL = "http://api.aviationstack.com/v1"
	}
	if _, err := url.ParseRequestURI(f.APIBaseURL); err != nil {
		return fmt.Errorf("invalid flights api_base_url: %w", err)
	}
	if f.PollIntervalSeconds == 0 {
		f.PollIntervalSeconds = 300
	}
	if f.PollIntervalSeconds < 10 {
		return fmt.Errorf("flights poll_interval_seconds must be at least 10: %d", f.PollIntervalSeconds)
	}
	if f.RequestTimeoutSeconds == 0 {
		f.RequestTimeoutSeconds = 10
	}
	if f.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("flights request_timeout_seconds must be greater than 0: %d", f.RequestTimeoutSeconds)
	}
	if f.RequestsPerSecond < 0 {
		return fmt.Errorf("flights requests_per_second must be 0 or greater: %f", f.RequestsPerSecond)
	}
	if f.Burst < 0 {
		return fmt.Errorf("flights burst must be 0 or greater: %d", f.Burst)
	}
	if f.BreakerFailures == 0 {
		f.BreakerFailures = 5
	}
	if f.BreakerFailures < 0 {
		return fmt.Errorf("flights breaker_failures must be greater than 0: %d", f.BreakerFailures)
	}
	if f.BreakerTimeoutSeconds == 0 {
		f.BreakerTimeoutSeconds = 60
	}
	if f.BreakerTimeoutSeconds < 0 {
		return fmt.Errorf("flights breaker_timeout_seconds must be greater than 0: %d", f.BreakerTimeoutSeconds)
	}

	if strings.TrimSpace(f.AccessKey) == "" {
		fmt.Printf("WARN: No flights access_key provided - flight polling will be skipped\n")
	}

	return nil
}

// ValidateQueue validates the queue scraper configuration
func (c *Config) ValidateQueue() error {
	q := &c.Queue
	if !q.Enabled {
		return nil
	}

	if q.URL == "" {
		return fmt.Errorf("queue url is required when the scraper is enabled")
	}
	if _, err := url.ParseRequestURI(q.URL); err != nil {
		return fmt.Errorf("invalid queue url: %w", err)
	}
	if q.ElementClass == "" {
		return fmt.Errorf("queue element_class is required when the scraper is enabled")
	}
	if strings.ContainsAny(q.ElementClass, " \t.") {
		return fmt.Errorf("queue element_class must be a single class name: %q", q.ElementClass)
	}
	if q.IntervalSeconds == 0 {
		q.IntervalSeconds = 30
	}
	if q.IntervalSeconds < 5 {
		return fmt.Errorf("queue interval_seconds must be at least 5: %d", q.IntervalSeconds)
	}
	if q.RequestTimeoutSeconds <= 0 {
		q.RequestTimeoutSeconds = 10
	}

	return nil
}

// ValidateWeather validates the weather configuration
func (c *Config) ValidateWeather() error {
	w := &c.Weather
	if !w.Enabled {
		return nil
	}

	if w.APIBaseURL == "" {
		w.APIBaseURL = "https://aviationweather.gov/api/data"
	}
	if w.RequestTimeoutSeconds == 0 {
		w.RequestTimeoutSeconds = 10
	}
	if w.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("weather request_timeout_seconds must be greater than 0: %d", w.RequestTimeoutSeconds)
	}
	if w.MaxRetries < 0 {
		return fmt.Errorf("weather max_retries must be 0 or greater: %d", w.MaxRetries)
	}
	if w.CacheExpiryMinutes == 0 {
		w.CacheExpiryMinutes = 15
	}
	if w.CacheExpiryMinutes < 0 {
		return fmt.Errorf("weather cache_expiry_minutes must be greater than 0: %d", w.CacheExpiryMinutes)
	}
	if w.RefreshIntervalMinutes == 0 {
		w.RefreshIntervalMinutes = 10
	}
	if w.RefreshIntervalMinutes < 0 {
		return fmt.Errorf("weather refresh_interval_minutes must be greater than 0: %d", w.RefreshIntervalMinutes)
	}

	// At least one weather type must be enabled
	if !w.FetchMETAR && !w.FetchTAF {
		return fmt.Errorf("at least one weather type must be enabled (fetch_metar or fetch_taf)")
	}

	for i, code := range w.PrefetchAirports {
		code = strings.ToUpper(strings.TrimSpace(code))
		if len(code) != 4 {
			return fmt.Errorf("weather prefetch_airports entry is not an ICAO code: %q", code)
		}
		w.PrefetchAirports[i] = code
	}

	return nil
}

// ValidatePhotos validates the photo lookup configuration
func (c *Config) ValidatePhotos() error {
	p := &c.Photos
	if !p.Enabled {
		return nil
	}

	if p.APIBaseURL == "" {
		p.APIBaseURL = "https://api.planespotters.net/pub"
	}
	if p.RequestTimeoutSeconds <= 0 {
		p.RequestTimeoutSeconds = 10
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("photos max_retries must be 0 or greater: %d", p.MaxRetries)
	}
	if p.CacheTTLMinutes <= 0 {
		p.CacheTTLMinutes = 24 * 60
	}

	return nil
}

// PollInterval returns the poll interval as a duration
func (f FlightsConfig) PollInterval() time.Duration {
	return time.Duration(f.PollIntervalSeconds) * time.Second
}

// RequestTimeout returns the upstream request timeout as a duration
func (f FlightsConfig) RequestTimeout() time.Duration {
	return time.Duration(f.RequestTimeoutSeconds) * time.Second
}

// BreakerTimeout returns the open-circuit duration
func (f FlightsConfig) BreakerTimeout() time.Duration {
	return time.Duration(f.BreakerTimeoutSeconds) * time.Second
}

// Interval returns the scrape interval as a duration
func (q QueueConfig) Interval() time.Duration {
	return time.Duration(q.IntervalSeconds) * time.Second
}
