package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yegors/flight-tracker/internal/flight"
	"github.com/yegors/flight-tracker/internal/metrics"
	"github.com/yegors/flight-tracker/pkg/logger"
)

// DefaultPollInterval is how often tracked flights are re-fetched
const DefaultPollInterval = 5 * time.Minute

// Source fetches the current state of a flight
type Source interface {
	FetchFlight(ctx context.Context, number string) (*flight.Snapshot, error)
}

// Poller periodically fetches every tracked flight, diffs it against the last
// known snapshot and notifies observers of changes. It implements Lifecycle so
// the registry can arm and disarm it.
type Poller struct {
	registry *Registry
	source   Source
	notifier *Notifier
	interval time.Duration
	logger   *logger.Logger

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastCycle time.Time
}

// NewPoller creates a stopped poller
func NewPoller(registry *Registry, source Source, notifier *Notifier, interval time.Duration, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		registry: registry,
		source:   source,
		notifier: notifier,
		interval: interval,
		logger:   log.Named("tracker-poller"),
	}
}

// Start runs one cycle right away and then one per interval. Calling Start on
// a running poller does nothing.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.running = true
	metrics.PollerRunning.Set(1)

	p.logger.Info("Starting flight poller", logger.Duration("interval", p.interval))

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()
}

// Stop disarms the timer and abandons any in-flight cycle. It does not wait
// for the cycle goroutine to exit; use Shutdown for that.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.cancel()
	p.cancel = nil
	p.running = false
	metrics.PollerRunning.Set(0)

	p.logger.Info("Flight poller stopped")
}

// Shutdown stops the poller and waits for its goroutine to finish
func (p *Poller) Shutdown() {
	p.Stop()
	p.wg.Wait()
}

// Running reports whether the timer is armed
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LastCycle returns the completion time of the last poll cycle
func (p *Poller) LastCycle() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastCycle
}

func (p *Poller) run(ctx context.Context) {
	p.Cycle(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Cycle(ctx)
		}
	}
}

// Cycle polls every currently tracked flight once, sequentially
func (p *Poller) Cycle(ctx context.Context) {
	subjects := p.registry.Subjects()

	p.logger.Debug("Starting poll cycle", logger.Int("flights", len(subjects)))

	for _, subject := range subjects {
		if ctx.Err() != nil {
			return
		}
		p.poll(ctx, subject)
	}

	p.mu.Lock()
	p.lastCycle = time.Now()
	p.mu.Unlock()
	metrics.PollCycles.Inc()
}

// poll fetches one flight and notifies its observers when it changed.
// Failures are logged and left for the next cycle.
func (p *Poller) poll(ctx context.Context, subject string) {
	fresh, err := p.source.FetchFlight(ctx, subject)
	switch {
	case errors.Is(err, flight.ErrMisconfigured):
		metrics.PollResults.WithLabelValues("misconfigured").Inc()
		p.logger.Debug("Flight source not configured, skipping",
			logger.String("flight", subject),
			logger.Error(err))
		return
	case errors.Is(err, flight.ErrNoData):
		metrics.PollResults.WithLabelValues("no_data").Inc()
		p.logger.Debug("No data for flight", logger.String("flight", subject))
		return
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		metrics.PollResults.WithLabelValues("error").Inc()
		p.logger.Warn("Failed to fetch flight",
			logger.String("flight", subject),
			logger.Error(err))
		return
	case fresh == nil:
		metrics.PollResults.WithLabelValues("no_data").Inc()
		return
	}

	// The subject may have been dropped while the fetch was in flight
	entry, ok := p.registry.Entry(subject)
	if !ok {
		p.logger.Debug("Flight no longer tracked, discarding result", logger.String("flight", subject))
		return
	}

	changes := flight.Diff(entry.Snapshot, fresh)
	if len(changes) == 0 {
		metrics.PollResults.WithLabelValues("unchanged").Inc()
		return
	}

	metrics.PollResults.WithLabelValues("changed").Inc()
	p.logger.Info("Flight changed",
		logger.String("flight", subject),
		logger.Int("changes", len(changes)))

	p.notifier.Notify(subject, changes, fresh, entry.Observers)
	p.registry.ReplaceSnapshot(subject, fresh)
}
