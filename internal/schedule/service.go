package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/turnomed/clinic-scheduling/internal/metrics"
	redisclient "github.com/turnomed/clinic-scheduling/internal/redis"
)

// ErrScheduleBusy is returned when another booking for the same doctor-day
// currently holds the lock. Recoverable: the caller should retry.
var ErrScheduleBusy = errors.New("schedule is being booked, please retry")

type Service struct {
	repo   Repository
	locker redisclient.Locker
	log    zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		log:    log,
	}
}

// FreeSlots returns the offerable slot start times for a doctor on a date.
// An empty result means the doctor has no availability left that day.
func (s *Service) FreeSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	windows, err := s.repo.ListWindowsByDoctor(ctx, doctorID, true)
	if err != nil {
		return nil, fmt.Errorf("load availability windows: %w", err)
	}

	existing, err := s.repo.ListAppointmentsByDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	metrics.IncSlotQuery()
	return FreeSlots(date, windows, existing), nil
}

type CreateAppointmentInput struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      time.Time
	Start     TimeOfDay
	Duration  int // 0 means: use the covering window's slot duration
	Reason    string
	Notes     string
}

// CreateAppointment books a new appointment. The conflict check and the
// insert run inside a per doctor-day lock; the repository's uniqueness
// rule backstops the lock, so a concurrent booking of the same interval
// surfaces as ErrSlotTaken either way.
func (s *Service) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (*Appointment, error) {
	if !in.Start.Valid() {
		return nil, fmt.Errorf("%w: start time out of range", ErrInvalidInput)
	}
	if in.Duration < 0 || in.Duration > minutesPerDay {
		return nil, fmt.Errorf("%w: duration out of range", ErrInvalidInput)
	}

	if _, err := s.repo.GetDoctorByID(ctx, in.DoctorID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		return nil, err
	}

	duration := in.Duration
	if duration == 0 {
		var err error
		duration, err = s.defaultDuration(ctx, in.DoctorID, in.Date, in.Start)
		if err != nil {
			return nil, err
		}
	}

	var created *Appointment

	err := s.locker.WithScheduleLock(ctx, in.DoctorID, in.Date, func(lockCtx context.Context) error {
		existing, err := s.repo.ListAppointmentsByDoctorDate(lockCtx, in.DoctorID, in.Date)
		if err != nil {
			return fmt.Errorf("load appointments: %w", err)
		}

		decision := CheckBooking(BookingRequest{
			DoctorID: in.DoctorID,
			Date:     in.Date,
			Start:    in.Start,
			Duration: duration,
		}, existing)
		if !decision.Admit {
			return rejectionError(decision)
		}

		appt := &Appointment{
			DoctorID:  in.DoctorID,
			PatientID: in.PatientID,
			Date:      in.Date,
			Start:     in.Start,
			Duration:  duration,
			Status:    StatusPending,
			Reason:    in.Reason,
			Notes:     in.Notes,
		}
		if err := s.repo.InsertAppointment(lockCtx, appt); err != nil {
			return err
		}

		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			err = ErrScheduleBusy
		}
		s.recordRejection(err)
		return nil, err
	}

	metrics.IncBookingAdmitted()
	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", in.DoctorID.String()).
		Str("date", FormatDate(in.Date)).
		Str("start", in.Start.String()).
		Int("duration_min", duration).
		Msg("booking admitted")

	return created, nil
}

// Reschedule moves an existing appointment to a new date, start time or
// duration. The conflict check excludes the appointment itself, so moving
// it onto its own current interval is allowed.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, date time.Time, start TimeOfDay, duration int) (*Appointment, error) {
	if !start.Valid() {
		return nil, fmt.Errorf("%w: start time out of range", ErrInvalidInput)
	}
	if duration <= 0 || duration > minutesPerDay {
		return nil, fmt.Errorf("%w: duration out of range", ErrInvalidInput)
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, appt.Status)
	}

	var updated *Appointment

	err = s.locker.WithScheduleLock(ctx, appt.DoctorID, date, func(lockCtx context.Context) error {
		existing, err := s.repo.ListAppointmentsByDoctorDate(lockCtx, appt.DoctorID, date)
		if err != nil {
			return fmt.Errorf("load appointments: %w", err)
		}

		decision := CheckBooking(BookingRequest{
			DoctorID:  appt.DoctorID,
			Date:      date,
			Start:     start,
			Duration:  duration,
			ExcludeID: &appt.ID,
		}, existing)
		if !decision.Admit {
			return rejectionError(decision)
		}

		updated, err = s.repo.UpdateAppointmentTime(lockCtx, id, date, start, duration)
		return err
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			err = ErrScheduleBusy
		}
		s.recordRejection(err)
		return nil, err
	}

	metrics.IncBookingAdmitted()
	s.log.Info().
		Str("appointment_id", id.String()).
		Str("date", FormatDate(date)).
		Str("start", start.String()).
		Msg("appointment rescheduled")

	return updated, nil
}

func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted)
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusNoShow)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}

	// Compare-and-set: a concurrent transition out of the source status
	// makes the update miss, which reports as an invalid transition.
	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("%w: appointment %s changed concurrently", ErrInvalidTransition, id)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	metrics.IncStatusTransition(string(to))
	s.log.Info().
		Str("appointment_id", id.String()).
		Str("from", string(appt.Status)).
		Str("to", string(to)).
		Msg("appointment status changed")

	return updated, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	return s.repo.ListAppointments(ctx, f)
}

func (s *Service) CreateWindow(ctx context.Context, w *AvailabilityWindow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if _, err := s.repo.GetDoctorByID(ctx, w.DoctorID); err != nil {
		return err
	}
	return s.repo.CreateWindow(ctx, w)
}

func (s *Service) GetWindow(ctx context.Context, id uuid.UUID) (*AvailabilityWindow, error) {
	return s.repo.GetWindowByID(ctx, id)
}

func (s *Service) UpdateWindow(ctx context.Context, w *AvailabilityWindow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	return s.repo.UpdateWindow(ctx, w)
}

// DeactivateWindow soft-deletes: the window stops producing slots but is
// kept for appointments that were booked out of it.
func (s *Service) DeactivateWindow(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeactivateWindow(ctx, id)
}

func (s *Service) ListWindows(ctx context.Context, doctorID uuid.UUID, activeOnly bool) ([]AvailabilityWindow, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.repo.ListWindowsByDoctor(ctx, doctorID, activeOnly)
}

// SweepStalePending cancels pending appointments whose scheduled start has
// passed without confirmation. Intended to be called periodically by the
// sweeper worker. Returns the number of appointments cancelled.
func (s *Service) SweepStalePending(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.repo.FindStalePending(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find stale pending appointments: %w", err)
	}

	cancelled := 0
	for _, appt := range stale {
		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusCancelled)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("sweep cancel failed")
			continue
		}
		cancelled++
		metrics.IncSweeperCancelled()
		s.log.Info().
			Str("appointment_id", appt.ID.String()).
			Str("date", FormatDate(appt.Date)).
			Str("start", appt.Start.String()).
			Msg("stale pending appointment cancelled")
	}

	return cancelled, nil
}

// defaultDuration resolves an omitted booking duration to the slot
// duration of the active window covering the start time.
func (s *Service) defaultDuration(ctx context.Context, doctorID uuid.UUID, date time.Time, start TimeOfDay) (int, error) {
	windows, err := s.repo.ListWindowsByDoctor(ctx, doctorID, true)
	if err != nil {
		return 0, fmt.Errorf("load availability windows: %w", err)
	}
	for _, w := range windows {
		if w.Weekday == date.Weekday() && start >= w.Start && start < w.End {
			return w.SlotDuration, nil
		}
	}
	return 0, fmt.Errorf("%w: duration required, no availability window covers %s", ErrInvalidInput, start)
}

func rejectionError(d Decision) error {
	switch d.Reason {
	case ReasonSlotTaken:
		return ErrSlotTaken
	case ReasonInvalidInput:
		return ErrInvalidInput
	default:
		return fmt.Errorf("booking rejected: %s", d.Reason)
	}
}

func (s *Service) recordRejection(err error) {
	switch {
	case errors.Is(err, ErrSlotTaken):
		metrics.IncBookingRejected(string(ReasonSlotTaken))
	case errors.Is(err, ErrInvalidInput):
		metrics.IncBookingRejected(string(ReasonInvalidInput))
	case errors.Is(err, ErrScheduleBusy):
		metrics.IncBookingRejected("schedule_busy")
	}
}
