package schedule

import (
	"sort"
	"time"
)

// Slot is a bookable unit cut from an availability window.
type Slot struct {
	Start    TimeOfDay `json:"start"`
	Duration int       `json:"duration"`
}

// FreeSlots computes the offerable slot start times for a doctor's date.
//
// Windows that are inactive or belong to a different weekday are skipped,
// as are appointments whose status no longer blocks the slot, so callers
// may pass unfiltered sets. Each matching window is walked independently
// from start to end in steps of its slot duration; a candidate slot is
// emitted when no blocking appointment interval intersects it. The step is
// fixed: an irregular-duration booking hides every slot it touches but
// never shifts the grid around itself. Overlapping windows can therefore
// produce overlapping slots, which mirrors how the schedule is defined.
//
// The result is sorted ascending. An empty result is a normal outcome, not
// an error. The function is pure: it reads nothing but its arguments.
func FreeSlots(date time.Time, windows []AvailabilityWindow, appointments []Appointment) []Slot {
	weekday := date.Weekday()

	booked := make([]Appointment, 0, len(appointments))
	for _, a := range appointments {
		if a.Status.Blocks() && SameDate(a.Date, date) {
			booked = append(booked, a)
		}
	}

	var slots []Slot
	for _, w := range windows {
		if !w.Active || w.Weekday != weekday || w.SlotDuration <= 0 {
			continue
		}
		for t := w.Start; t.Add(w.SlotDuration) <= w.End; t = t.Add(w.SlotDuration) {
			if !taken(t, t.Add(w.SlotDuration), booked) {
				slots = append(slots, Slot{Start: t, Duration: w.SlotDuration})
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Start < slots[j].Start })
	return slots
}

func taken(start, end TimeOfDay, booked []Appointment) bool {
	for _, a := range booked {
		if overlaps(start, end, a.Start, a.End()) {
			return true
		}
	}
	return false
}
