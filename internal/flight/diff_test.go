package flight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSnapshot() *Snapshot {
	return &Snapshot{
		FlightNumber: "SK001",
		Status:       "scheduled",
		Departure: Point{
			Airport:   "Oslo Gardermoen",
			IATA:      "OSL",
			Terminal:  "1",
			Gate:      "Not assigned",
			Scheduled: "2026-10-14T08:00:00+00:00",
			Estimated: "2026-10-14T08:00:00+00:00",
			Delay:     Minutes(5),
		},
		Arrival: Point{
			Airport:   "Copenhagen Kastrup",
			IATA:      "CPH",
			Terminal:  "3",
			Gate:      "B4",
			Scheduled: "2026-10-14T09:10:00+00:00",
			Estimated: "2026-10-14T09:10:00+00:00",
		},
	}
}

func TestDiffIdenticalSnapshots(t *testing.T) {
	assert.Empty(t, Diff(baseSnapshot(), baseSnapshot()))
}

func TestDiffGateChange(t *testing.T) {
	fresh := baseSnapshot()
	fresh.Departure.Gate = "C12"

	changes := Diff(baseSnapshot(), fresh)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeEvent{
		Kind:     ChangeGate,
		Field:    "Departure Gate",
		OldValue: "Not assigned",
		NewValue: "C12",
	}, changes[0])
}

func TestDiffOrder(t *testing.T) {
	fresh := baseSnapshot()
	fresh.Status = "active"
	fresh.Departure.Gate = "C12"
	fresh.Arrival.Gate = "B6"
	fresh.Departure.Terminal = "2"
	fresh.Arrival.Terminal = "2"
	fresh.Departure.Delay = Minutes(25)
	fresh.Departure.Estimated = "2026-10-14T08:20:00+00:00"
	fresh.Arrival.Estimated = "2026-10-14T09:30:00+00:00"

	changes := Diff(baseSnapshot(), fresh)

	var fields []string
	for _, c := range changes {
		fields = append(fields, c.Field)
	}
	assert.Equal(t, []string{
		"Status",
		"Departure Gate",
		"Arrival Gate",
		"Departure Terminal",
		"Arrival Terminal",
		"Departure Delay",
		"Departure Time",
		"Arrival Time",
	}, fields)

	assert.Equal(t, Diff(baseSnapshot(), fresh), changes, "diff must be deterministic")
}

func TestDiffIgnoresClearedValues(t *testing.T) {
	fresh := baseSnapshot()
	fresh.Arrival.Gate = ""
	fresh.Departure.Terminal = "   "
	fresh.Status = ""
	fresh.Arrival.Estimated = ""

	assert.Empty(t, Diff(baseSnapshot(), fresh))
}

func TestDiffDelayOnlyIncreases(t *testing.T) {
	tests := []struct {
		name     string
		oldDelay *int
		newDelay *int
		want     bool
	}{
		{"increase", Minutes(5), Minutes(20), true},
		{"equal", Minutes(5), Minutes(5), false},
		{"decrease", Minutes(20), Minutes(5), false},
		{"missing new treated as zero", Minutes(5), nil, false},
		{"missing old treated as zero", nil, Minutes(10), true},
		{"both missing", nil, nil, false},
		{"explicit zero from missing", nil, Minutes(0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old := baseSnapshot()
			old.Departure.Delay = tt.oldDelay
			fresh := baseSnapshot()
			fresh.Departure.Delay = tt.newDelay

			changes := Diff(old, fresh)
			if !tt.want {
				assert.Empty(t, changes)
				return
			}
			require.Len(t, changes, 1)
			assert.Equal(t, ChangeDelay, changes[0].Kind)
			assert.Equal(t, "Departure Delay", changes[0].Field)
		})
	}
}

func TestDiffDelayValues(t *testing.T) {
	old := baseSnapshot()
	old.Departure.Delay = nil
	fresh := baseSnapshot()
	fresh.Departure.Delay = Minutes(15)

	changes := Diff(old, fresh)
	require.Len(t, changes, 1)
	assert.Equal(t, "", changes[0].OldValue)
	assert.Equal(t, "15", changes[0].NewValue)

	old.Departure.Delay = Minutes(3)
	changes = Diff(old, fresh)
	require.Len(t, changes, 1)
	assert.Equal(t, "3", changes[0].OldValue)
}

func TestDiffNilBaselineReportsPopulatedFields(t *testing.T) {
	fresh := &Snapshot{
		Status:    "active",
		Departure: Point{Gate: "C12", Delay: Minutes(10)},
		Arrival:   Point{Estimated: "2026-10-14T09:30:00+00:00"},
	}

	changes := Diff(nil, fresh)
	require.Len(t, changes, 4)

	assert.Equal(t, ChangeStatus, changes[0].Kind)
	assert.Equal(t, ChangeGate, changes[1].Kind)
	assert.Equal(t, ChangeDelay, changes[2].Kind)
	assert.Equal(t, ChangeTime, changes[3].Kind)
	assert.Equal(t, "Arrival Time", changes[3].Field)
	for _, c := range changes {
		assert.Empty(t, c.OldValue)
	}
}

func TestDiffNilFresh(t *testing.T) {
	assert.Nil(t, Diff(baseSnapshot(), nil))
}

func TestNormalizeNumber(t *testing.T) {
	assert.Equal(t, "SK001", NormalizeNumber(" sk 001 "))
	assert.Equal(t, "DY2", NormalizeNumber("DY2"))
	assert.Equal(t, "", NormalizeNumber("   "))
}
