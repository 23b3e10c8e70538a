package tracker

import (
	"time"

	"github.com/yegors/flight-tracker/internal/flight"
	"github.com/yegors/flight-tracker/pkg/logger"
)

// Config holds tracker settings
type Config struct {
	PollInterval time.Duration
}

// Stats is a point-in-time summary of tracker state
type Stats struct {
	TrackedFlights int       `json:"trackedFlights"`
	Observers      int       `json:"observers"`
	PollerRunning  bool      `json:"pollerRunning"`
	PollInterval   string    `json:"pollInterval"`
	LastCycle      time.Time `json:"lastCycle,omitzero"`
}

// Service owns the registry, poller and notifier and wires them together
type Service struct {
	config   Config
	registry *Registry
	poller   *Poller
	notifier *Notifier
	logger   *logger.Logger
}

// NewService creates a tracker for flights fetched from source
func NewService(config Config, source Source, log *logger.Logger) *Service {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}

	registry := NewRegistry(log)
	notifier := NewNotifier(log)
	poller := NewPoller(registry, source, notifier, config.PollInterval, log)
	registry.SetLifecycle(poller)

	return &Service{
		config:   config,
		registry: registry,
		poller:   poller,
		notifier: notifier,
		logger:   log.Named("tracker"),
	}
}

// Registry returns the subscription registry
func (s *Service) Registry() *Registry {
	return s.registry
}

// Poller returns the poll scheduler
func (s *Service) Poller() *Poller {
	return s.poller
}

// Subscribe adds observer to subject, seeding the baseline when the subject is new
func (s *Service) Subscribe(subject string, observer Observer, initial *flight.Snapshot) {
	s.registry.Add(subject, observer, initial)
}

// Unsubscribe removes observer from subject
func (s *Service) Unsubscribe(subject string, observer Observer) {
	s.registry.Remove(subject, observer)
}

// Disconnect drops every subscription held by observer
func (s *Service) Disconnect(observer Observer) {
	subjects := s.registry.RemoveObserver(observer)
	if len(subjects) > 0 {
		s.logger.Debug("Observer disconnected",
			logger.String("observer", observer.ID()),
			logger.Strings("flights", subjects))
	}
}

// Stats returns a summary for health reporting
func (s *Service) Stats() Stats {
	return Stats{
		TrackedFlights: s.registry.Len(),
		Observers:      s.registry.ObserverCount(),
		PollerRunning:  s.poller.Running(),
		PollInterval:   s.config.PollInterval.String(),
		LastCycle:      s.poller.LastCycle(),
	}
}

// Stop shuts down the poller
func (s *Service) Stop() {
	s.logger.Info("Stopping tracker")
	s.poller.Shutdown()
}
