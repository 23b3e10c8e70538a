package weather

import (
	"encoding/json"
	"time"
)

// Report is the combined weather information for one airport
type Report struct {
	Airport     string    `json:"airport"`
	METAR       *METAR    `json:"metar,omitempty"`
	TAF         *TAF      `json:"taf,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
	FetchErrors []string  `json:"fetchErrors,omitempty"`
}

// METAR is one observation from the aviationweather.gov data API
type METAR struct {
	ICAO        string          `json:"icaoId"`
	Name        string          `json:"name,omitempty"`
	ReportTime  string          `json:"reportTime,omitempty"`
	Temp        *float64        `json:"temp,omitempty"`
	Dewpoint    *float64        `json:"dewp,omitempty"`
	WindDir     json.RawMessage `json:"wdir,omitempty"` // degrees or "VRB"
	WindSpeed   *int            `json:"wspd,omitempty"`
	WindGust    *int            `json:"wgst,omitempty"`
	Visibility  json.RawMessage `json:"visib,omitempty"` // number or "10+"
	Altimeter   *float64        `json:"altim,omitempty"`
	FlightCat   string          `json:"fltCat,omitempty"`
	Raw         string          `json:"rawOb"`
	Observation int64           `json:"obsTime,omitempty"`
}

// TAF is one terminal forecast from the aviationweather.gov data API
type TAF struct {
	ICAO      string `json:"icaoId"`
	Name      string `json:"name,omitempty"`
	IssueTime string `json:"issueTime,omitempty"`
	ValidFrom int64  `json:"validTimeFrom,omitempty"`
	ValidTo   int64  `json:"validTimeTo,omitempty"`
	Raw       string `json:"rawTAF"`
}

// Config represents the weather proxy configuration
type Config struct {
	APIBaseURL      string
	RequestTimeout  time.Duration
	MaxRetries      int
	FetchMETAR      bool
	FetchTAF        bool
	CacheExpiry     time.Duration
	RefreshInterval time.Duration
	Prefetch        []string // airports kept warm in the background
}

// WeatherType represents the type of weather data
type WeatherType string

const (
	WeatherTypeMETAR WeatherType = "metar"
	WeatherTypeTAF   WeatherType = "taf"
)

// FetchResult represents the result of fetching weather data
type FetchResult struct {
	Type  WeatherType
	METAR *METAR
	TAF   *TAF
	Err   error
}

// DefaultConfig returns the default weather configuration
func DefaultConfig() Config {
	return Config{
		APIBaseURL:      "https://aviationweather.gov/api/data",
		RequestTimeout:  10 * time.Second,
		MaxRetries:      2,
		FetchMETAR:      true,
		FetchTAF:        true,
		CacheExpiry:     15 * time.Minute,
		RefreshInterval: 10 * time.Minute,
	}
}
