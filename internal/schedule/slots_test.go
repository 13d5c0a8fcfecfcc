package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-03-10 is a Monday.
var monday = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func window(t *testing.T, weekday time.Weekday, start, end string, duration int) AvailabilityWindow {
	t.Helper()
	return AvailabilityWindow{
		ID:           uuid.New(),
		DoctorID:     uuid.New(),
		Weekday:      weekday,
		Start:        mustTime(t, start),
		End:          mustTime(t, end),
		SlotDuration: duration,
		Active:       true,
	}
}

func appointmentAt(t *testing.T, date time.Time, start string, duration int, status AppointmentStatus) Appointment {
	t.Helper()
	return Appointment{
		ID:       uuid.New(),
		Date:     date,
		Start:    mustTime(t, start),
		Duration: duration,
		Status:   status,
	}
}

func slotStarts(slots []Slot) []string {
	starts := make([]string, len(slots))
	for i, s := range slots {
		starts[i] = s.Start.String()
	}
	return starts
}

func TestFreeSlotsEmptyDay(t *testing.T) {
	w := window(t, time.Monday, "08:00", "09:00", 30)

	slots := FreeSlots(monday, []AvailabilityWindow{w}, nil)

	assert.Equal(t, []string{"08:00", "08:30"}, slotStarts(slots))
}

func TestFreeSlotsEvenlySpaced(t *testing.T) {
	// floor((end-start)/duration) slots, spaced by duration
	tests := []struct {
		name     string
		start    string
		end      string
		duration int
		want     int
	}{
		{name: "exact fit", start: "08:00", end: "12:00", duration: 30, want: 8},
		{name: "remainder dropped", start: "08:00", end: "09:50", duration: 30, want: 3},
		{name: "hour slots", start: "09:00", end: "12:00", duration: 60, want: 3},
		{name: "window shorter than slot", start: "08:00", end: "08:20", duration: 30, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := window(t, time.Monday, tt.start, tt.end, tt.duration)
			slots := FreeSlots(monday, []AvailabilityWindow{w}, nil)

			require.Len(t, slots, tt.want)
			for i := 1; i < len(slots); i++ {
				assert.Equal(t, slots[i-1].Start.Add(tt.duration), slots[i].Start)
			}
		})
	}
}

func TestFreeSlotsSkipsWrongWeekdayAndInactive(t *testing.T) {
	active := window(t, time.Monday, "08:00", "09:00", 30)
	wrongDay := window(t, time.Tuesday, "10:00", "12:00", 30)
	inactive := window(t, time.Monday, "14:00", "16:00", 30)
	inactive.Active = false

	slots := FreeSlots(monday, []AvailabilityWindow{wrongDay, inactive, active}, nil)

	assert.Equal(t, []string{"08:00", "08:30"}, slotStarts(slots))
}

func TestFreeSlotsNoWindows(t *testing.T) {
	slots := FreeSlots(monday, nil, nil)
	assert.Empty(t, slots)
}

func TestFreeSlotsBookedSlotHidden(t *testing.T) {
	w := window(t, time.Monday, "08:00", "10:00", 30)
	booked := appointmentAt(t, monday, "08:30", 30, StatusConfirmed)

	slots := FreeSlots(monday, []AvailabilityWindow{w}, []Appointment{booked})

	assert.Equal(t, []string{"08:00", "09:00", "09:30"}, slotStarts(slots))
}

func TestFreeSlotsIrregularDurationHidesEverySlotItTouches(t *testing.T) {
	// A 45-minute booking at 08:15 straddles the 08:00 and 08:30 slots;
	// the grid itself never shifts, and 09:00 starts exactly at its end.
	w := window(t, time.Monday, "08:00", "10:00", 30)
	booked := appointmentAt(t, monday, "08:15", 45, StatusConfirmed)

	slots := FreeSlots(monday, []AvailabilityWindow{w}, []Appointment{booked})

	assert.Equal(t, []string{"09:00", "09:30"}, slotStarts(slots))
}

func TestFreeSlotsCancelledAndNoShowDoNotBlock(t *testing.T) {
	w := window(t, time.Monday, "08:00", "09:00", 30)
	existing := []Appointment{
		appointmentAt(t, monday, "08:00", 30, StatusCancelled),
		appointmentAt(t, monday, "08:30", 30, StatusNoShow),
	}

	slots := FreeSlots(monday, []AvailabilityWindow{w}, existing)

	assert.Equal(t, []string{"08:00", "08:30"}, slotStarts(slots))
}

func TestFreeSlotsCompletedStillBlocks(t *testing.T) {
	w := window(t, time.Monday, "08:00", "09:00", 30)
	existing := []Appointment{
		appointmentAt(t, monday, "08:00", 30, StatusCompleted),
	}

	slots := FreeSlots(monday, []AvailabilityWindow{w}, existing)

	assert.Equal(t, []string{"08:30"}, slotStarts(slots))
}

func TestFreeSlotsOtherDateIgnored(t *testing.T) {
	w := window(t, time.Monday, "08:00", "09:00", 30)
	otherMonday := monday.AddDate(0, 0, 7)
	existing := []Appointment{
		appointmentAt(t, otherMonday, "08:00", 30, StatusConfirmed),
	}

	slots := FreeSlots(monday, []AvailabilityWindow{w}, existing)

	assert.Equal(t, []string{"08:00", "08:30"}, slotStarts(slots))
}

func TestFreeSlotsMultipleWindowsSortedAscending(t *testing.T) {
	morning := window(t, time.Monday, "08:00", "09:00", 30)
	afternoon := window(t, time.Monday, "14:00", "15:00", 30)

	// Deliberately out of order
	slots := FreeSlots(monday, []AvailabilityWindow{afternoon, morning}, nil)

	assert.Equal(t, []string{"08:00", "08:30", "14:00", "14:30"}, slotStarts(slots))
}

func TestFreeSlotsOverlappingWindowsKeepDuplicates(t *testing.T) {
	a := window(t, time.Monday, "08:00", "09:00", 30)
	b := window(t, time.Monday, "08:00", "09:00", 30)

	slots := FreeSlots(monday, []AvailabilityWindow{a, b}, nil)

	assert.Equal(t, []string{"08:00", "08:00", "08:30", "08:30"}, slotStarts(slots))
}

func TestFreeSlotsPure(t *testing.T) {
	w := window(t, time.Monday, "08:00", "12:00", 20)
	existing := []Appointment{
		appointmentAt(t, monday, "09:00", 20, StatusPending),
	}

	first := FreeSlots(monday, []AvailabilityWindow{w}, existing)
	second := FreeSlots(monday, []AvailabilityWindow{w}, existing)

	assert.Equal(t, first, second)
}
