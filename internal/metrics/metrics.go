package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracker metrics
	TrackedFlights = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flight_tracker_tracked_flights",
			Help: "Number of flights with at least one subscribed observer",
		},
	)

	PollerRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flight_tracker_poller_running",
			Help: "1 while the flight poller timer is armed, 0 otherwise",
		},
	)

	PollCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flight_tracker_poll_cycles_total",
			Help: "Total number of completed flight poll cycles",
		},
	)

	PollResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flight_tracker_poll_results_total",
			Help: "Per-flight poll outcomes",
		},
		[]string{"outcome"}, // "changed", "unchanged", "no_data", "misconfigured", "error"
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flight_tracker_notifications_total",
			Help: "Per-observer flight update deliveries",
		},
		[]string{"result"}, // "delivered", "skipped", "failed"
	)

	// WebSocket metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flight_tracker_websocket_clients",
			Help: "Number of connected WebSocket clients",
		},
	)

	// Upstream metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flight_tracker_upstream_requests_total",
			Help: "Requests made to third-party APIs",
		},
		[]string{"upstream", "result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flight_tracker_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Queue scraper metrics
	QueueScrapes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flight_tracker_queue_scrapes_total",
			Help: "Security queue page scrapes",
		},
		[]string{"result"}, // "changed", "unchanged", "error"
	)

	QueueMinutes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flight_tracker_queue_minutes",
			Help: "Last scraped security queue estimate in minutes",
		},
	)
)
