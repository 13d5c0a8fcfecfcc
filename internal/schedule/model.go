package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no_show"
)

// validTransitions is the appointment lifecycle. Cancelled, completed and
// no-show are terminal.
var validTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted, StatusNoShow},
}

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Blocks reports whether an appointment in this status occupies its time
// interval for conflict purposes. A cancelled appointment frees the slot,
// and so does a no-show: the patient never consumed it.
func (s AppointmentStatus) Blocks() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// Terminal reports whether no further status change is allowed.
func (s AppointmentStatus) Terminal() bool {
	_, ok := validTransitions[s]
	return !ok
}

func ParseStatus(s string) (AppointmentStatus, error) {
	switch AppointmentStatus(s) {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return AppointmentStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailabilityWindow is a recurring weekly time range during which a doctor
// accepts appointments, cut into fixed-duration slots. Windows are
// deactivated rather than deleted so historical appointments keep their
// reference.
type AvailabilityWindow struct {
	ID           uuid.UUID
	DoctorID     uuid.UUID
	Weekday      time.Weekday // Sunday = 0, matching the wire convention
	Start        TimeOfDay
	End          TimeOfDay
	SlotDuration int // minutes
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate enforces the window definition invariants.
func (w AvailabilityWindow) Validate() error {
	if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
		return fmt.Errorf("%w: weekday %d out of range", ErrInvalidInput, w.Weekday)
	}
	if !w.Start.Valid() || !w.End.Valid() {
		return fmt.Errorf("%w: window times out of range", ErrInvalidInput)
	}
	if w.Start >= w.End {
		return fmt.Errorf("%w: window start %s must be before end %s", ErrInvalidInput, w.Start, w.End)
	}
	if w.SlotDuration <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", ErrInvalidInput)
	}
	return nil
}

type Appointment struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      time.Time // calendar date, midnight UTC
	Start     TimeOfDay
	Duration  int // minutes
	Status    AppointmentStatus
	Reason    string // patient's stated reason for the visit
	Notes     string // free-text clinical notes
	CreatedAt time.Time
	UpdatedAt time.Time
}

// End is the exclusive end of the appointment's interval.
func (a Appointment) End() TimeOfDay {
	return a.Start.Add(a.Duration)
}
