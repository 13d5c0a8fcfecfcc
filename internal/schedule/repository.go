package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrWindowNotFound      = errors.New("availability window not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is returned both by the validator path and by repository
	// inserts that hit the uniqueness constraint, so a lost race surfaces
	// the same way as a detected conflict.
	ErrSlotTaken = errors.New("slot already taken")

	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// AppointmentFilter narrows ListAppointments. Nil fields are ignored.
type AppointmentFilter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Date      *time.Time
	Status    *AppointmentStatus
}

// Repository contains all storage interactions needed by the service.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Availability windows
	CreateWindow(ctx context.Context, w *AvailabilityWindow) error
	GetWindowByID(ctx context.Context, id uuid.UUID) (*AvailabilityWindow, error)
	ListWindowsByDoctor(ctx context.Context, doctorID uuid.UUID, activeOnly bool) ([]AvailabilityWindow, error)
	UpdateWindow(ctx context.Context, w *AvailabilityWindow) error
	DeactivateWindow(ctx context.Context, id uuid.UUID) error

	// Appointments
	InsertAppointment(ctx context.Context, a *Appointment) error
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error)
	UpdateAppointmentTime(ctx context.Context, id uuid.UUID, date time.Time, start TimeOfDay, duration int) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Sweeper
	FindStalePending(ctx context.Context, now time.Time) ([]Appointment, error)
}
