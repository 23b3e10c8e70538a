package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yegors/flight-tracker/internal/metrics"
	"github.com/yegors/flight-tracker/pkg/logger"
)

const (
	sendBufferSize = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// MessageHandler handles incoming WebSocket messages. payload is the raw JSON frame.
type MessageHandler interface {
	HandleMessage(client *Client, messageType string, payload []byte) error
}

// ConnectionHandler is notified when clients join and leave
type ConnectionHandler interface {
	OnConnect(client *Client)
	OnDisconnect(client *Client)
}

// Server represents a WebSocket server
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *logger.Logger
	mu         sync.RWMutex

	messageHandler    MessageHandler
	connectionHandler ConnectionHandler
}

// NewServer creates a new WebSocket server
func NewServer(log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		logger: log.Named("web-socket"),
	}
}

// SetMessageHandler sets the handler for incoming WebSocket messages
func (s *Server) SetMessageHandler(handler MessageHandler) {
	s.messageHandler = handler
}

// SetConnectionHandler sets the handler for connect and disconnect events
func (s *Server) SetConnectionHandler(handler ConnectionHandler) {
	s.connectionHandler = handler
}

// Run processes registrations and broadcasts until ctx is cancelled
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("Starting WebSocket server")
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			s.logger.Info("WebSocket server stopped")
			return

		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			metrics.WebSocketClients.Set(float64(clientCount))
			s.logger.Debug("Client registered",
				logger.String("client_id", client.id),
				logger.Int("client_count", clientCount))

			if s.connectionHandler != nil {
				s.connectionHandler.OnConnect(client)
			}

		case client := <-s.unregister:
			s.drop(client)

		case message := <-s.broadcast:
			s.mu.RLock()
			clientsToRemove := make([]*Client, 0)
			for client := range s.clients {
				if err := client.Send(message); err != nil {
					clientsToRemove = append(clientsToRemove, client)
				}
			}
			s.mu.RUnlock()

			// Clean up failed clients
			for _, client := range clientsToRemove {
				s.drop(client)
			}
		}
	}
}

// drop removes a client, closes its send channel and fires OnDisconnect once
func (s *Server) drop(client *Client) {
	s.mu.Lock()
	_, ok := s.clients[client]
	if ok {
		delete(s.clients, client)
		client.markClosed()
	}
	clientCount := len(s.clients)
	s.mu.Unlock()

	if !ok {
		return
	}

	metrics.WebSocketClients.Set(float64(clientCount))
	s.logger.Debug("Client unregistered",
		logger.String("client_id", client.id),
		logger.Int("client_count", clientCount))

	if s.connectionHandler != nil {
		s.connectionHandler.OnDisconnect(client)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.Unlock()

	for _, client := range clients {
		s.drop(client)
		client.Close()
	}
}

// HandleConnection upgrades an HTTP request and starts the client pumps
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("Handling new WebSocket connection request",
		logger.String("remote_addr", r.RemoteAddr),
		logger.String("user_agent", r.UserAgent()))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		id:        uuid.NewString(),
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		server:    s,
		closeChan: make(chan struct{}),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.HandleConnection(w, r)
}

// Broadcast sends a message to every connected client
func (s *Server) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to marshal broadcast message", logger.Error(err))
		return
	}

	select {
	case s.broadcast <- data:
	case <-s.done:
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) leave(client *Client) {
	select {
	case s.unregister <- client:
	case <-s.done:
	}
}
