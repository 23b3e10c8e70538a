package flight

import (
	"encoding/json"
	"fmt"
	"time"
)

// WebSocket message types exchanged with the browser
const (
	MessageTypeSubscribe               = "subscribe-flight"
	MessageTypeUnsubscribe             = "unsubscribe-flight"
	MessageTypeSubscriptionConfirmed   = "subscription-confirmed"
	MessageTypeUnsubscriptionConfirmed = "unsubscription-confirmed"
	MessageTypeUpdate                  = "flight-update"
)

// TimestampLayout is the wire format of update timestamps (ISO 8601, UTC, millis)
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// SubscriptionRequest is an inbound subscribe or unsubscribe message
type SubscriptionRequest struct {
	Type         string    `json:"type"`
	FlightNumber string    `json:"flightNumber"`
	FlightData   *Snapshot `json:"flightData,omitempty"`
}

// Confirmation acknowledges a subscription request
type Confirmation struct {
	Type         string `json:"type"`
	FlightNumber string `json:"flightNumber"`
}

// Update is the push message sent when a tracked flight changes
type Update struct {
	Type         string        `json:"type"`
	FlightNumber string        `json:"flightNumber"`
	Changes      []ChangeEvent `json:"changes"`
	FlightData   View          `json:"flightData"`
	Timestamp    string        `json:"timestamp"`
}

// NewUpdate builds a flight-update message
func NewUpdate(number string, changes []ChangeEvent, fresh *Snapshot, at time.Time) Update {
	return Update{
		Type:         MessageTypeUpdate,
		FlightNumber: number,
		Changes:      changes,
		FlightData:   fresh.View(),
		Timestamp:    at.UTC().Format(TimestampLayout),
	}
}

// ParseUpdate decodes a serialized flight-update message
func ParseUpdate(data []byte) (Update, error) {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return Update{}, fmt.Errorf("failed to parse update: %w", err)
	}
	if u.Type != MessageTypeUpdate {
		return Update{}, fmt.Errorf("unexpected message type: %q", u.Type)
	}
	return u, nil
}
