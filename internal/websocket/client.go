package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yegors/flight-tracker/pkg/logger"
)

var (
	// ErrClientClosed is returned when sending to a client that has gone away
	ErrClientClosed = errors.New("websocket client closed")

	// ErrSendBufferFull is returned when a client is not draining its messages
	ErrSendBufferFull = errors.New("websocket send buffer full")
)

// Client represents a WebSocket client
type Client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	server    *Server
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeChan chan struct{}
}

// ID returns the connection identifier
func (c *Client) ID() string {
	return c.id
}

// IsReady reports whether the connection is open and accepting messages
func (c *Client) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Send queues a serialized message for this client without blocking
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// SendJSON marshals v and queues it for this client
func (c *Client) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return c.Send(data)
}

// Close closes the client connection
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.closeChan)
		c.conn.Close()
	})
}

// markClosed stops further sends and closes the send channel. Called by the
// server with its lock held, exactly once per registered client.
func (c *Client) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.send == nil {
		return
	}
	c.closed = true
	close(c.send)
	c.send = nil
}

// readPump pumps messages from the WebSocket connection to the handler
func (c *Client) readPump() {
	defer func() {
		c.server.leave(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	log := c.server.logger

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error("WebSocket read error", logger.Error(err), logger.String("client_id", c.id))
			}
			return
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(messageBytes, &envelope); err != nil {
			log.Warn("Failed to parse WebSocket message",
				logger.Error(err),
				logger.String("client_id", c.id))
			continue
		}

		log.Debug("Received WebSocket message",
			logger.String("type", envelope.Type),
			logger.String("client_id", c.id))

		if handler := c.server.messageHandler; handler != nil {
			if err := handler.HandleMessage(c, envelope.Type, messageBytes); err != nil {
				log.Warn("Failed to handle WebSocket message",
					logger.Error(err),
					logger.String("type", envelope.Type),
					logger.String("client_id", c.id))
			}
		}
	}
}

// writePump pumps queued messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	c.mu.Lock()
	send := c.send
	c.mu.Unlock()

	defer func() {
		ticker.Stop()
		c.Close()
	}()

	if send == nil {
		return
	}

	for {
		select {
		case message, ok := <-send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.server.logger.Debug("WebSocket write failed",
					logger.Error(err),
					logger.String("client_id", c.id))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}
