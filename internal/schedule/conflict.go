package schedule

import (
	"time"

	"github.com/google/uuid"
)

// RejectReason classifies why a booking was refused.
type RejectReason string

const (
	ReasonSlotTaken    RejectReason = "slot_taken"
	ReasonInvalidInput RejectReason = "invalid_input"
)

// BookingRequest is a candidate (doctor, date, start, duration) tuple.
// ExcludeID, when non-nil, names an appointment the check ignores so an
// in-place edit does not conflict with itself.
type BookingRequest struct {
	DoctorID  uuid.UUID
	Date      time.Time
	Start     TimeOfDay
	Duration  int
	ExcludeID *uuid.UUID
}

// Decision is the outcome of a booking validation.
type Decision struct {
	Admit    bool
	Reason   RejectReason
	Conflict *Appointment // the blocking appointment on a slot_taken reject
}

func admit() Decision {
	return Decision{Admit: true}
}

func reject(reason RejectReason, conflict *Appointment) Decision {
	return Decision{Reason: reason, Conflict: conflict}
}

// CheckBooking decides whether a candidate booking may be admitted against
// the existing appointments. It applies the same half-open overlap test as
// FreeSlots, so a walk-in booking that bypassed slot computation is held to
// the identical rule. A booking must fit within its calendar day, and
// cancelled and no-show appointments never conflict.
//
// The function is a pure decision: the caller performs the write after an
// admit, and must re-run the check at persistence time under the lock or
// uniqueness guarantee of the storage layer.
func CheckBooking(req BookingRequest, existing []Appointment) Decision {
	if req.Duration <= 0 || req.Duration > minutesPerDay || !req.Start.Valid() {
		return reject(ReasonInvalidInput, nil)
	}

	// Both operands are bounded, so the end cannot overflow.
	end := req.Start.Add(req.Duration)
	if end > minutesPerDay {
		return reject(ReasonInvalidInput, nil)
	}
	for i := range existing {
		a := existing[i]
		if a.DoctorID != req.DoctorID || !SameDate(a.Date, req.Date) {
			continue
		}
		if !a.Status.Blocks() {
			continue
		}
		if req.ExcludeID != nil && a.ID == *req.ExcludeID {
			continue
		}
		if overlaps(req.Start, end, a.Start, a.End()) {
			return reject(ReasonSlotTaken, &a)
		}
	}

	return admit()
}
