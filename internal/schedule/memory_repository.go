package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded in-process Repository. It enforces
// the same no-two-blocking-appointments-at-one-start rule as the Postgres
// partial unique index, so the service behaves identically on either
// backend. Useful for tests and for running the service without Postgres.
type MemoryRepository struct {
	mu           sync.RWMutex
	doctors      map[uuid.UUID]Doctor
	patients     map[uuid.UUID]Patient
	windows      map[uuid.UUID]AvailabilityWindow
	appointments map[uuid.UUID]Appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		doctors:      make(map[uuid.UUID]Doctor),
		patients:     make(map[uuid.UUID]Patient),
		windows:      make(map[uuid.UUID]AvailabilityWindow),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

// PutDoctor and PutPatient exist for seeding; the service only reads them.

func (r *MemoryRepository) PutDoctor(d Doctor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doctors[d.ID] = d
}

func (r *MemoryRepository) PutPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

func (r *MemoryRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) CreateWindow(ctx context.Context, w *AvailabilityWindow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	now := time.Now()
	w.CreatedAt = now
	w.UpdatedAt = now
	r.windows[w.ID] = *w
	return nil
}

func (r *MemoryRepository) GetWindowByID(ctx context.Context, id uuid.UUID) (*AvailabilityWindow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.windows[id]
	if !ok {
		return nil, ErrWindowNotFound
	}
	return &w, nil
}

func (r *MemoryRepository) ListWindowsByDoctor(ctx context.Context, doctorID uuid.UUID, activeOnly bool) ([]AvailabilityWindow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []AvailabilityWindow
	for _, w := range r.windows {
		if w.DoctorID != doctorID {
			continue
		}
		if activeOnly && !w.Active {
			continue
		}
		result = append(result, w)
	}
	sortWindows(result)
	return result, nil
}

func (r *MemoryRepository) UpdateWindow(ctx context.Context, w *AvailabilityWindow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.windows[w.ID]; !ok {
		return ErrWindowNotFound
	}
	w.UpdatedAt = time.Now()
	r.windows[w.ID] = *w
	return nil
}

func (r *MemoryRepository) DeactivateWindow(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[id]
	if !ok {
		return ErrWindowNotFound
	}
	w.Active = false
	w.UpdatedAt = time.Now()
	r.windows[id] = w
	return nil
}

func (r *MemoryRepository) InsertAppointment(ctx context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.Status.Blocks() {
		for _, existing := range r.appointments {
			if existing.DoctorID == a.DoctorID &&
				SameDate(existing.Date, a.Date) &&
				existing.Start == a.Start &&
				existing.Status.Blocks() {
				return ErrSlotTaken
			}
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	r.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) ListAppointmentsByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Appointment
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && SameDate(a.Date, date) {
			result = append(result, a)
		}
	}
	sortAppointments(result)
	return result, nil
}

func (r *MemoryRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Appointment
	for _, a := range r.appointments {
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.Date != nil && !SameDate(a.Date, *f.Date) {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		result = append(result, a)
	}
	sortAppointments(result)
	return result, nil
}

func (r *MemoryRepository) UpdateAppointmentTime(ctx context.Context, id uuid.UUID, date time.Time, start TimeOfDay, duration int) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status.Blocks() {
		for _, existing := range r.appointments {
			if existing.ID != id &&
				existing.DoctorID == a.DoctorID &&
				SameDate(existing.Date, date) &&
				existing.Start == start &&
				existing.Status.Blocks() {
				return nil, ErrSlotTaken
			}
		}
	}
	a.Date = date
	a.Start = start
	a.Duration = duration
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) FindStalePending(ctx context.Context, now time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Appointment
	for _, a := range r.appointments {
		if a.Status != StatusPending {
			continue
		}
		startsAt := a.Date.Add(time.Duration(a.Start) * time.Minute)
		if startsAt.Before(now) {
			result = append(result, a)
		}
	}
	sortAppointments(result)
	return result, nil
}

func sortWindows(ws []AvailabilityWindow) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].Weekday != ws[j].Weekday {
			return ws[i].Weekday < ws[j].Weekday
		}
		return ws[i].Start < ws[j].Start
	})
}

func sortAppointments(as []Appointment) {
	sort.Slice(as, func(i, j int) bool {
		if !as[i].Date.Equal(as[j].Date) {
			return as[i].Date.Before(as[j].Date)
		}
		return as[i].Start < as[j].Start
	})
}

