package flight

import (
	"strings"
)

// Point is the departure or arrival side of a flight
type Point struct {
	Airport   string `json:"airport,omitempty"`
	IATA      string `json:"iata,omitempty"`
	Terminal  string `json:"terminal,omitempty"`
	Gate      string `json:"gate,omitempty"`
	Scheduled string `json:"scheduled,omitempty"`
	Estimated string `json:"estimated,omitempty"`
	Actual    string `json:"actual,omitempty"`
	Delay     *int   `json:"delay,omitempty"` // minutes, nil when unknown
}

// Snapshot is the normalized state of a flight at one point in time.
// Snapshots are shared by pointer between the registry, the poller and the
// notifier and must not be mutated after construction.
type Snapshot struct {
	FlightNumber string    `json:"flightNumber,omitempty"`
	FlightDate   string    `json:"flightDate,omitempty"`
	Status       string    `json:"status,omitempty"`
	Airline      string    `json:"airline,omitempty"`
	Aircraft     *Aircraft `json:"aircraft,omitempty"`
	Departure    Point     `json:"departure"`
	Arrival      Point     `json:"arrival"`
}

// Aircraft identifies the airframe operating a flight
type Aircraft struct {
	Registration string `json:"registration,omitempty"`
	IATA         string `json:"iata,omitempty"`
	ICAO24       string `json:"icao24,omitempty"`
}

// View is the reduced snapshot pushed to observers
type View struct {
	Status    string `json:"status,omitempty"`
	Departure Point  `json:"departure"`
	Arrival   Point  `json:"arrival"`
}

// View returns the status, departure and arrival blocks of the snapshot
func (s *Snapshot) View() View {
	return View{
		Status:    s.Status,
		Departure: s.Departure,
		Arrival:   s.Arrival,
	}
}

// DelayMinutes returns the delay or 0 when unknown
func (p Point) DelayMinutes() int {
	if p.Delay == nil {
		return 0
	}
	return *p.Delay
}

// Minutes is a helper for building delay values
func Minutes(m int) *int {
	return &m
}

// NormalizeNumber canonicalizes a flight number so lookups are case and
// whitespace insensitive ("sk 001" -> "SK001").
func NormalizeNumber(number string) string {
	return strings.ToUpper(strings.Join(strings.Fields(number), ""))
}
