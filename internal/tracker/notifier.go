package tracker

import (
	"encoding/json"
	"time"

	"github.com/yegors/flight-tracker/internal/flight"
	"github.com/yegors/flight-tracker/internal/metrics"
	"github.com/yegors/flight-tracker/pkg/logger"
)

// Notifier fans a flight-update out to observers
type Notifier struct {
	logger *logger.Logger
	now    func() time.Time
}

// NewNotifier creates a new notifier
func NewNotifier(log *logger.Logger) *Notifier {
	return &Notifier{
		logger: log.Named("tracker-notifier"),
		now:    time.Now,
	}
}

// Notify sends one flight-update to each ready observer and returns the number
// of successful deliveries. A failed send never stops delivery to the rest.
func (n *Notifier) Notify(subject string, changes []flight.ChangeEvent, fresh *flight.Snapshot, observers []Observer) int {
	if len(changes) == 0 || fresh == nil {
		return 0
	}

	data, err := json.Marshal(flight.NewUpdate(subject, changes, fresh, n.now()))
	if err != nil {
		n.logger.Error("Failed to marshal flight update",
			logger.String("flight", subject),
			logger.Error(err))
		return 0
	}

	delivered := 0
	for _, o := range observers {
		if !o.IsReady() {
			metrics.Notifications.WithLabelValues("skipped").Inc()
			continue
		}

		if err := o.Send(data); err != nil {
			metrics.Notifications.WithLabelValues("failed").Inc()
			n.logger.Warn("Failed to deliver flight update",
				logger.String("flight", subject),
				logger.String("observer", o.ID()),
				logger.Error(err))
			continue
		}

		metrics.Notifications.WithLabelValues("delivered").Inc()
		delivered++
	}

	n.logger.Debug("Flight update sent",
		logger.String("flight", subject),
		logger.Int("changes", len(changes)),
		logger.Int("delivered", delivered),
		logger.Int("observers", len(observers)))

	return delivered
}
