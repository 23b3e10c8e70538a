package tracker

import (
	"context"
	"errors"
	"sync"

	"github.com/yegors/flight-tracker/internal/flight"
)

type fakeObserver struct {
	id string

	mu       sync.Mutex
	notReady bool
	sendErr  error
	messages [][]byte
}

func newObserver(id string) *fakeObserver {
	return &fakeObserver{id: id}
}

func (o *fakeObserver) ID() string { return o.id }

func (o *fakeObserver) IsReady() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.notReady
}

func (o *fakeObserver) Send(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sendErr != nil {
		return o.sendErr
	}
	o.messages = append(o.messages, data)
	return nil
}

func (o *fakeObserver) received() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][]byte(nil), o.messages...)
}

type fetchResult struct {
	snap *flight.Snapshot
	err  error
}

type fakeSource struct {
	mu      sync.Mutex
	results map[string]fetchResult
	calls   map[string]int
	onFetch func(subject string)
}

func newSource() *fakeSource {
	return &fakeSource{
		results: make(map[string]fetchResult),
		calls:   make(map[string]int),
	}
}

func (s *fakeSource) set(subject string, snap *flight.Snapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[subject] = fetchResult{snap: snap, err: err}
}

func (s *fakeSource) callCount(subject string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[subject]
}

func (s *fakeSource) FetchFlight(ctx context.Context, number string) (*flight.Snapshot, error) {
	s.mu.Lock()
	s.calls[number]++
	res, ok := s.results[number]
	hook := s.onFetch
	s.mu.Unlock()

	if hook != nil {
		hook(number)
	}
	if !ok {
		return nil, flight.ErrNoData
	}
	return res.snap, res.err
}

type fakeLifecycle struct {
	mu     sync.Mutex
	starts int
	stops  int
}

func (l *fakeLifecycle) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starts++
}

func (l *fakeLifecycle) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stops++
}

func (l *fakeLifecycle) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.starts, l.stops
}

var errSendFailed = errors.New("connection reset")

func snapshot(status, depGate string) *flight.Snapshot {
	return &flight.Snapshot{
		Status: status,
		Departure: flight.Point{
			IATA:      "OSL",
			Gate:      depGate,
			Estimated: "2026-10-14T08:00:00+00:00",
		},
		Arrival: flight.Point{
			IATA:      "CPH",
			Estimated: "2026-10-14T09:10:00+00:00",
		},
	}
}
