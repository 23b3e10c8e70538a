package tracker

import (
	"sort"
	"sync"

	"github.com/yegors/flight-tracker/internal/flight"
	"github.com/yegors/flight-tracker/internal/metrics"
	"github.com/yegors/flight-tracker/pkg/logger"
)

// Observer is a connected party that receives flight updates
type Observer interface {
	ID() string
	IsReady() bool
	Send(data []byte) error
}

// Lifecycle is told when the registry gains its first subject and loses its last
type Lifecycle interface {
	Start()
	Stop()
}

// Entry is a copy of one subject's registry state
type Entry struct {
	Subject   string
	Snapshot  *flight.Snapshot
	Observers []Observer
}

type entry struct {
	snapshot  *flight.Snapshot
	observers map[Observer]struct{}
}

// Registry maps flight numbers to their observers and last known snapshot.
// An entry exists only while it has at least one observer.
type Registry struct {
	mu        sync.Mutex
	entries   map[string]*entry
	lifecycle Lifecycle
	logger    *logger.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		logger:  log.Named("tracker-registry"),
	}
}

// SetLifecycle sets the hooks fired on the empty/non-empty transitions
func (r *Registry) SetLifecycle(lc Lifecycle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lifecycle = lc
}

// Add subscribes observer to subject. The initial snapshot only seeds a new
// entry; an existing entry keeps its own.
func (r *Registry) Add(subject string, observer Observer, initial *flight.Snapshot) {
	subject = flight.NormalizeNumber(subject)
	if subject == "" || observer == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	wasEmpty := len(r.entries) == 0

	e, ok := r.entries[subject]
	if !ok {
		e = &entry{
			snapshot:  initial,
			observers: make(map[Observer]struct{}),
		}
		r.entries[subject] = e
		r.logger.Info("Tracking flight",
			logger.String("flight", subject),
			logger.Bool("has_baseline", initial != nil))
	}
	e.observers[observer] = struct{}{}

	r.logger.Debug("Observer subscribed",
		logger.String("flight", subject),
		logger.String("observer", observer.ID()),
		logger.Int("observers", len(e.observers)))

	metrics.TrackedFlights.Set(float64(len(r.entries)))

	if wasEmpty && r.lifecycle != nil {
		r.lifecycle.Start()
	}
}

// Remove unsubscribes observer from subject
func (r *Registry) Remove(subject string, observer Observer) {
	subject = flight.NormalizeNumber(subject)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.removeLocked(subject, observer) {
		return
	}
	r.afterRemovalLocked()
}

// RemoveObserver drops observer from every subject and returns the subjects it
// was removed from
func (r *Registry) RemoveObserver(observer Observer) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var affected []string
	for subject, e := range r.entries {
		if _, ok := e.observers[observer]; ok {
			affected = append(affected, subject)
		}
	}
	if len(affected) == 0 {
		return nil
	}

	for _, subject := range affected {
		r.removeLocked(subject, observer)
	}
	sort.Strings(affected)
	r.afterRemovalLocked()

	return affected
}

func (r *Registry) removeLocked(subject string, observer Observer) bool {
	e, ok := r.entries[subject]
	if !ok {
		return false
	}
	if _, ok := e.observers[observer]; !ok {
		return false
	}

	delete(e.observers, observer)
	if len(e.observers) == 0 {
		delete(r.entries, subject)
		r.logger.Info("Stopped tracking flight", logger.String("flight", subject))
	}
	return true
}

func (r *Registry) afterRemovalLocked() {
	metrics.TrackedFlights.Set(float64(len(r.entries)))
	if len(r.entries) == 0 && r.lifecycle != nil {
		r.lifecycle.Stop()
	}
}

// ReplaceSnapshot stores fresh as the subject's last known state. It reports
// false when the subject is no longer tracked.
func (r *Registry) ReplaceSnapshot(subject string, fresh *flight.Snapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[subject]
	if !ok {
		return false
	}
	e.snapshot = fresh
	return true
}

// Entry returns a copy of the subject's state
func (r *Registry) Entry(subject string) (Entry, bool) {
	subject = flight.NormalizeNumber(subject)

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[subject]
	if !ok {
		return Entry{}, false
	}

	observers := make([]Observer, 0, len(e.observers))
	for o := range e.observers {
		observers = append(observers, o)
	}
	sort.Slice(observers, func(i, j int) bool {
		return observers[i].ID() < observers[j].ID()
	})

	return Entry{
		Subject:   subject,
		Snapshot:  e.snapshot,
		Observers: observers,
	}, true
}

// Subjects returns the tracked flight numbers in sorted order
func (r *Registry) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	subjects := make([]string, 0, len(r.entries))
	for s := range r.entries {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects
}

// Has reports whether subject is tracked
func (r *Registry) Has(subject string) bool {
	subject = flight.NormalizeNumber(subject)

	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[subject]
	return ok
}

// Len returns the number of tracked subjects
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// ObserverCount returns the number of distinct observers across all subjects
func (r *Registry) ObserverCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[Observer]struct{})
	for _, e := range r.entries {
		for o := range e.observers {
			seen[o] = struct{}{}
		}
	}
	return len(seen)
}
