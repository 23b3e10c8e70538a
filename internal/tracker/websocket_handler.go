package tracker

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yegors/flight-tracker/internal/flight"
	"github.com/yegors/flight-tracker/internal/websocket"
	"github.com/yegors/flight-tracker/pkg/logger"
)

var errMissingFlightNumber = errors.New("missing flightNumber")

// QueueFeed provides the latest serialized queue-update for new connections
type QueueFeed interface {
	LatestMessage() ([]byte, bool)
}

// WebSocketHandler maps client connections and messages onto the tracker
type WebSocketHandler struct {
	service *Service
	queue   QueueFeed
	logger  *logger.Logger
}

// NewWebSocketHandler creates a new handler. queue may be nil.
func NewWebSocketHandler(service *Service, queue QueueFeed, log *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		service: service,
		queue:   queue,
		logger:  log.Named("tracker-ws"),
	}
}

// HandleMessage implements websocket.MessageHandler
func (h *WebSocketHandler) HandleMessage(client *websocket.Client, messageType string, payload []byte) error {
	return h.handle(client, messageType, payload)
}

// OnConnect implements websocket.ConnectionHandler
func (h *WebSocketHandler) OnConnect(client *websocket.Client) {
	h.connected(client)
}

// OnDisconnect implements websocket.ConnectionHandler
func (h *WebSocketHandler) OnDisconnect(client *websocket.Client) {
	h.service.Disconnect(client)
}

func (h *WebSocketHandler) connected(o Observer) {
	if h.queue == nil {
		return
	}
	data, ok := h.queue.LatestMessage()
	if !ok {
		return
	}
	if err := o.Send(data); err != nil {
		h.logger.Warn("Failed to send queue status on connect",
			logger.String("observer", o.ID()),
			logger.Error(err))
	}
}

func (h *WebSocketHandler) handle(o Observer, messageType string, payload []byte) error {
	switch messageType {
	case flight.MessageTypeSubscribe:
		req, err := parseRequest(payload)
		if err != nil {
			return err
		}
		h.service.Subscribe(req.FlightNumber, o, req.FlightData)
		return h.confirm(o, flight.MessageTypeSubscriptionConfirmed, req.FlightNumber)

	case flight.MessageTypeUnsubscribe:
		req, err := parseRequest(payload)
		if err != nil {
			return err
		}
		h.service.Unsubscribe(req.FlightNumber, o)
		return h.confirm(o, flight.MessageTypeUnsubscriptionConfirmed, req.FlightNumber)

	default:
		h.logger.Debug("Ignoring unknown message type",
			logger.String("type", messageType),
			logger.String("observer", o.ID()))
		return nil
	}
}

func (h *WebSocketHandler) confirm(o Observer, messageType, number string) error {
	data, err := json.Marshal(flight.Confirmation{
		Type:         messageType,
		FlightNumber: number,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal confirmation: %w", err)
	}
	if err := o.Send(data); err != nil {
		return fmt.Errorf("failed to send %s: %w", messageType, err)
	}
	return nil
}

func parseRequest(payload []byte) (flight.SubscriptionRequest, error) {
	var req flight.SubscriptionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, fmt.Errorf("invalid subscription request: %w", err)
	}
	req.FlightNumber = flight.NormalizeNumber(req.FlightNumber)
	if req.FlightNumber == "" {
		return req, errMissingFlightNumber
	}
	return req, nil
}
