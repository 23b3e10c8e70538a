package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/flight-tracker/internal/config"
	"github.com/yegors/flight-tracker/internal/flight"
	"github.com/yegors/flight-tracker/internal/photos"
	"github.com/yegors/flight-tracker/internal/queue"
	"github.com/yegors/flight-tracker/internal/tracker"
	"github.com/yegors/flight-tracker/internal/weather"
	"github.com/yegors/flight-tracker/pkg/logger"
)

// FlightLookup fetches the current state of a flight
type FlightLookup interface {
	FetchFlight(ctx context.Context, number string) (*flight.Snapshot, error)
	Configured() bool
}

// WeatherLookup returns METAR/TAF reports by ICAO code
type WeatherLookup interface {
	Get(ctx context.Context, icao string) (*weather.Report, error)
}

// PhotoLookup returns aircraft photos by registration
type PhotoLookup interface {
	Lookup(ctx context.Context, registration string) (*photos.Photo, error)
}

// QueueStatus returns the last scraped security queue estimate
type QueueStatus interface {
	Latest() (queue.Snapshot, bool)
}

// TrackerStats reports subscription and poller state
type TrackerStats interface {
	Stats() tracker.Stats
}

// ClientCounter reports connected WebSocket clients
type ClientCounter interface {
	ClientCount() int
}

// Services are the collaborators behind the HTTP API. Optional features are
// left nil when disabled.
type Services struct {
	Flights FlightLookup
	Tracker TrackerStats
	Clients ClientCounter
	Weather WeatherLookup
	Photos  PhotoLookup
	Queue   QueueStatus
}

// Handler contains the API handlers
type Handler struct {
	services Services
	config   *config.Config
	version  string
	started  time.Time
	logger   *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(services Services, cfg *config.Config, version string, log *logger.Logger) *Handler {
	return &Handler{
		services: services,
		config:   cfg,
		version:  version,
		started:  time.Now(),
		logger:   log.Named("api-handler"),
	}
}

// GetHealth returns service health
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":         "ok",
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}

	if h.services.Tracker != nil {
		stats := h.services.Tracker.Stats()
		response["tracked_flights"] = stats.TrackedFlights
		response["observers"] = stats.Observers
		response["poller_running"] = stats.PollerRunning
		if !stats.LastCycle.IsZero() {
			response["last_poll_cycle"] = stats.LastCycle.UTC().Format(time.RFC3339)
		}
	}
	if h.services.Clients != nil {
		response["websocket_clients"] = h.services.Clients.ClientCount()
	}
	if h.services.Flights != nil {
		configured := h.services.Flights.Configured()
		response["flight_source_configured"] = configured
		if !configured {
			response["status"] = "degraded"
		}
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetConfig returns the public configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	// Create a sanitized config with only public values
	publicConfig := map[string]any{
		"flights": map[string]any{
			"poll_interval_seconds": h.config.Flights.PollIntervalSeconds,
		},
		"queue": map[string]any{
			"enabled":          h.config.Queue.Enabled,
			"airport":          h.config.Queue.Airport,
			"interval_seconds": h.config.Queue.IntervalSeconds,
		},
		"weather": map[string]any{
			"enabled":     h.config.Weather.Enabled,
			"fetch_metar": h.config.Weather.FetchMETAR,
			"fetch_taf":   h.config.Weather.FetchTAF,
		},
		"photos": map[string]any{
			"enabled": h.config.Photos.Enabled,
		},
	}

	WriteJSON(w, http.StatusOK, publicConfig)
}

// GetFlight proxies a flight lookup so the browser never sees the access key
func (h *Handler) GetFlight(w http.ResponseWriter, r *http.Request) {
	number := flight.NormalizeNumber(chi.URLParam(r, "flightNumber"))
	if number == "" {
		http.Error(w, "Missing flight number", http.StatusBadRequest)
		return
	}

	snap, err := h.services.Flights.FetchFlight(r.Context(), number)
	switch {
	case errors.Is(err, flight.ErrNoData):
		http.Error(w, "Flight not found", http.StatusNotFound)
		return
	case errors.Is(err, flight.ErrMisconfigured):
		http.Error(w, "Flight data source not configured", http.StatusServiceUnavailable)
		return
	case err != nil:
		h.logger.Warn("Flight lookup failed",
			logger.String("flight", number),
			logger.Error(err))
		http.Error(w, "Flight data source unavailable", http.StatusBadGateway)
		return
	}

	WriteJSON(w, http.StatusOK, snap)
}

// GetWeather returns METAR and TAF for an airport
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	if h.services.Weather == nil {
		http.Error(w, "Weather service not available", http.StatusNotFound)
		return
	}

	report, err := h.services.Weather.Get(r.Context(), chi.URLParam(r, "icao"))
	switch {
	case errors.Is(err, weather.ErrInvalidAirport):
		http.Error(w, "Invalid ICAO airport code", http.StatusBadRequest)
		return
	case errors.Is(err, weather.ErrNotFound):
		http.Error(w, "No weather data for airport", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Warn("Weather lookup failed", logger.Error(err))
		http.Error(w, "Weather data unavailable", http.StatusBadGateway)
		return
	}

	WriteJSON(w, http.StatusOK, report)
}

// GetPhoto returns a photo of the aircraft with the given registration
func (h *Handler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	if h.services.Photos == nil {
		http.Error(w, "Photo service not available", http.StatusNotFound)
		return
	}

	photo, err := h.services.Photos.Lookup(r.Context(), chi.URLParam(r, "registration"))
	switch {
	case errors.Is(err, photos.ErrInvalidRegistration):
		http.Error(w, "Invalid registration", http.StatusBadRequest)
		return
	case errors.Is(err, photos.ErrNotFound):
		http.Error(w, "No photo found", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, "Photo service unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	WriteJSON(w, http.StatusOK, photo)
}

// GetQueue returns the last scraped security queue estimate
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	if h.services.Queue == nil {
		http.Error(w, "Queue scraper not enabled", http.StatusNotFound)
		return
	}

	snap, ok := h.services.Queue.Latest()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	WriteJSON(w, http.StatusOK, snap)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
