package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/yegors/flight-tracker/internal/metrics"
	"github.com/yegors/flight-tracker/pkg/logger"
)

// MessageType is the WebSocket message type for queue changes
const MessageType = "queue-update"

const (
	defaultInterval = 30 * time.Second
	defaultTimeout  = 10 * time.Second
	userAgent       = "flight-tracker/1.0 (+queue-status)"
)

// Config holds queue scraper settings
type Config struct {
	URL          string
	Airport      string
	ElementClass string
	Interval     time.Duration
	Timeout      time.Duration
}

// Snapshot is one scraped queue estimate
type Snapshot struct {
	Airport   string    `json:"airport"`
	Minutes   int       `json:"minutes"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is the queue-update push payload
type Message struct {
	Type string   `json:"type"`
	Data Snapshot `json:"data"`
}

// Broadcaster pushes a message to every connected client
type Broadcaster interface {
	Broadcast(v any)
}

// Service scrapes the airport security queue page on an interval and
// broadcasts changes
type Service struct {
	config      Config
	httpClient  *http.Client
	broadcaster Broadcaster
	logger      *logger.Logger
	now         func() time.Time

	latest    Snapshot
	hasLatest bool
	dataMu    sync.RWMutex

	// Service lifecycle
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewService creates a new queue scraper. broadcaster may be nil.
func NewService(config Config, broadcaster Broadcaster, log *logger.Logger) *Service {
	if config.Interval <= 0 {
		config.Interval = defaultInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	return &Service{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		broadcaster: broadcaster,
		logger:      log.Named("queue-service"),
		now:         time.Now,
	}
}

// Start begins scraping in the background
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.config.URL == "" || s.config.ElementClass == "" {
		return fmt.Errorf("queue scraper needs a url and an element class")
	}

	s.logger.Info("Starting queue scraper",
		logger.String("airport", s.config.Airport),
		logger.String("url", s.config.URL),
		logger.Duration("interval", s.config.Interval))

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.refreshLoop(ctx)
	}()

	s.started = true
	return nil
}

// Stop halts scraping and waits for the background loop to exit
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info("Stopping queue scraper")
	s.cancel()
	s.wg.Wait()
	s.started = false
	return nil
}

func (s *Service) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.refreshLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshLogged(ctx)
		}
	}
}

func (s *Service) refreshLogged(ctx context.Context) {
	if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
		metrics.QueueScrapes.WithLabelValues("error").Inc()
		s.logger.Warn("Queue scrape failed, keeping previous value", logger.Error(err))
	}
}

// Refresh scrapes the page once. It reports whether the estimate changed and
// broadcasts it when it did.
func (s *Service) Refresh(ctx context.Context) (bool, error) {
	text, err := s.scrape(ctx)
	if err != nil {
		return false, err
	}

	minutes, err := parseMinutes(text)
	if err != nil {
		return false, fmt.Errorf("%q: %w", text, err)
	}

	s.dataMu.Lock()
	changed := !s.hasLatest || s.latest.Minutes != minutes || s.latest.Text != text
	if changed {
		s.latest = Snapshot{
			Airport:   s.config.Airport,
			Minutes:   minutes,
			Text:      text,
			Source:    s.config.URL,
			UpdatedAt: s.now().UTC(),
		}
		s.hasLatest = true
	}
	snap := s.latest
	s.dataMu.Unlock()

	if !changed {
		metrics.QueueScrapes.WithLabelValues("unchanged").Inc()
		return false, nil
	}

	metrics.QueueScrapes.WithLabelValues("changed").Inc()
	metrics.QueueMinutes.Set(float64(minutes))
	s.logger.Info("Security queue changed",
		logger.String("airport", snap.Airport),
		logger.Int("minutes", minutes),
		logger.String("text", text))

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(Message{Type: MessageType, Data: snap})
	}
	return true, nil
}

func (s *Service) scrape(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch queue page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	text, err := extractText(io.LimitReader(resp.Body, 2<<20), s.config.ElementClass)
	if err != nil {
		return "", fmt.Errorf("failed to parse queue page: %w", err)
	}
	return text, nil
}

// Latest returns the last scraped estimate
func (s *Service) Latest() (Snapshot, bool) {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.latest, s.hasLatest
}

// LatestMessage returns the last estimate as a serialized queue-update
func (s *Service) LatestMessage() ([]byte, bool) {
	snap, ok := s.Latest()
	if !ok {
		return nil, false
	}
	data, err := json.Marshal(Message{Type: MessageType, Data: snap})
	if err != nil {
		return nil, false
	}
	return data, true
}
