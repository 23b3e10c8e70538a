package flight

import (
	"strconv"
	"strings"
)

// ChangeKind classifies a change event
type ChangeKind string

const (
	ChangeStatus   ChangeKind = "status"
	ChangeGate     ChangeKind = "gate"
	ChangeTerminal ChangeKind = "terminal"
	ChangeDelay    ChangeKind = "delay"
	ChangeTime     ChangeKind = "time"
)

// ChangeEvent is one field-level difference between two snapshots
type ChangeEvent struct {
	Kind     ChangeKind `json:"kind"`
	Field    string     `json:"field"`
	OldValue string     `json:"oldValue"`
	NewValue string     `json:"newValue"`
}

// textField describes one compared string field
type textField struct {
	kind  ChangeKind
	name  string
	value func(*Snapshot) string
}

// Comparison order is fixed; the delay check sits between terminals and times.
var (
	leadingFields = []textField{
		{ChangeStatus, "Status", func(s *Snapshot) string { return s.Status }},
		{ChangeGate, "Departure Gate", func(s *Snapshot) string { return s.Departure.Gate }},
		{ChangeGate, "Arrival Gate", func(s *Snapshot) string { return s.Arrival.Gate }},
		{ChangeTerminal, "Departure Terminal", func(s *Snapshot) string { return s.Departure.Terminal }},
		{ChangeTerminal, "Arrival Terminal", func(s *Snapshot) string { return s.Arrival.Terminal }},
	}
	trailingFields = []textField{
		{ChangeTime, "Departure Time", func(s *Snapshot) string { return s.Departure.Estimated }},
		{ChangeTime, "Arrival Time", func(s *Snapshot) string { return s.Arrival.Estimated }},
	}
)

var emptySnapshot = &Snapshot{}

// Diff compares two snapshots of the same flight and returns the changes in a
// deterministic order. A field only produces an event when the new value is
// present and differs from the old one; a value disappearing is never reported.
// Departure delay is reported only when it increases. A nil old snapshot is
// treated as an empty baseline, so every populated field is reported.
func Diff(old, fresh *Snapshot) []ChangeEvent {
	if fresh == nil {
		return nil
	}
	if old == nil {
		old = emptySnapshot
	}

	var changes []ChangeEvent
	changes = appendTextChanges(changes, leadingFields, old, fresh)

	oldDelay := old.Departure.DelayMinutes()
	newDelay := fresh.Departure.DelayMinutes()
	if newDelay > oldDelay {
		oldValue := ""
		if old.Departure.Delay != nil {
			oldValue = strconv.Itoa(oldDelay)
		}
		changes = append(changes, ChangeEvent{
			Kind:     ChangeDelay,
			Field:    "Departure Delay",
			OldValue: oldValue,
			NewValue: strconv.Itoa(newDelay),
		})
	}

	return appendTextChanges(changes, trailingFields, old, fresh)
}

func appendTextChanges(changes []ChangeEvent, fields []textField, old, fresh *Snapshot) []ChangeEvent {
	for _, f := range fields {
		oldValue := f.value(old)
		newValue := f.value(fresh)
		if strings.TrimSpace(newValue) == "" || newValue == oldValue {
			continue
		}
		changes = append(changes, ChangeEvent{
			Kind:     f.kind,
			Field:    f.name,
			OldValue: oldValue,
			NewValue: newValue,
		})
	}
	return changes
}
