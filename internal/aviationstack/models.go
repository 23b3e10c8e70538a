package aviationstack

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/yegors/flight-tracker/internal/flight"
)

// flightsResponse is the body of GET /flights
type flightsResponse struct {
	Data  []flightRecord `json:"data"`
	Error *apiError      `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type flightRecord struct {
	FlightDate   string          `json:"flight_date"`
	FlightStatus string          `json:"flight_status"`
	Departure    pointRecord     `json:"departure"`
	Arrival      pointRecord     `json:"arrival"`
	Airline      *airlineRecord  `json:"airline"`
	Flight       *flightIDRecord `json:"flight"`
	Aircraft     *aircraftRecord `json:"aircraft"`
}

type pointRecord struct {
	Airport   string    `json:"airport"`
	IATA      string    `json:"iata"`
	Terminal  flexValue `json:"terminal"`
	Gate      flexValue `json:"gate"`
	Delay     flexValue `json:"delay"`
	Scheduled string    `json:"scheduled"`
	Estimated string    `json:"estimated"`
	Actual    string    `json:"actual"`
}

type airlineRecord struct {
	Name string `json:"name"`
	IATA string `json:"iata"`
}

type flightIDRecord struct {
	Number string `json:"number"`
	IATA   string `json:"iata"`
	ICAO   string `json:"icao"`
}

type aircraftRecord struct {
	Registration string `json:"registration"`
	IATA         string `json:"iata"`
	ICAO24       string `json:"icao24"`
}

// flexValue accepts strings, numbers and null; the API is inconsistent about
// gate, terminal and delay types.
type flexValue struct {
	raw string
	set bool
}

func (f *flexValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = flexValue{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexValue{raw: strings.TrimSpace(s), set: true}
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexValue{raw: n.String(), set: true}
	return nil
}

func (f flexValue) String() string {
	return f.raw
}

// Minutes returns the value as a whole number of minutes, nil when absent or unparseable
func (f flexValue) Minutes() *int {
	if !f.set || f.raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(f.raw, 64)
	if err != nil {
		return nil
	}
	return flight.Minutes(int(v))
}

func (p pointRecord) normalize() flight.Point {
	return flight.Point{
		Airport:   p.Airport,
		IATA:      p.IATA,
		Terminal:  p.Terminal.String(),
		Gate:      p.Gate.String(),
		Scheduled: p.Scheduled,
		Estimated: p.Estimated,
		Actual:    p.Actual,
		Delay:     p.Delay.Minutes(),
	}
}

// normalize converts an API record into a snapshot
func (r flightRecord) normalize(number string) *flight.Snapshot {
	snap := &flight.Snapshot{
		FlightNumber: number,
		FlightDate:   r.FlightDate,
		Status:       r.FlightStatus,
		Departure:    r.Departure.normalize(),
		Arrival:      r.Arrival.normalize(),
	}
	if r.Flight != nil && r.Flight.IATA != "" {
		snap.FlightNumber = r.Flight.IATA
	}
	if r.Airline != nil {
		snap.Airline = r.Airline.Name
	}
	if r.Aircraft != nil {
		snap.Aircraft = &flight.Aircraft{
			Registration: r.Aircraft.Registration,
			IATA:         r.Aircraft.IATA,
			ICAO24:       r.Aircraft.ICAO24,
		}
	}
	return snap
}
