package appointment

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicrx/clinicrx/pkg/pagination"
)

// MemoryRepository keeps appointments in process memory.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*Appointment
	last         time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{appointments: make(map[uuid.UUID]*Appointment)}
}

func (r *MemoryRepository) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if !now.After(r.last) {
		now = r.last.Add(time.Microsecond)
	}
	r.last = now
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	r.appointments[a.ID] = &cp
	return nil
}

func (r *MemoryRepository) owned(doctorID, id uuid.UUID) (*Appointment, bool) {
	a, ok := r.appointments[id]
	if !ok || a.DoctorID != doctorID {
		return nil, false
	}
	return a, true
}

func (r *MemoryRepository) GetByID(_ context.Context, doctorID, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.owned(doctorID, id)
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func matches(a *Appointment, params ListParams, term string) bool {
	if params.Status != "" && a.Status != params.Status {
		return false
	}
	if params.Date != "" && a.Date != params.Date {
		return false
	}
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(a.PatientName), term) ||
		strings.Contains(strings.ToLower(a.DoctorName), term)
}

func (r *MemoryRepository) List(_ context.Context, doctorID uuid.UUID, params ListParams) ([]*Appointment, int, error) {
	term := strings.ToLower(strings.TrimSpace(params.Search))

	r.mu.RLock()
	var hits []*Appointment
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && matches(a, params, term) {
			cp := *a
			hits = append(hits, &cp)
		}
	}
	r.mu.RUnlock()

	// Date and time layouts are fixed width, so string order is time order.
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	total := len(hits)
	start, end := pagination.Params{Limit: params.Limit, Offset: params.Offset}.Window(total)
	return append([]*Appointment{}, hits[start:end]...), total, nil
}

func (r *MemoryRepository) Update(_ context.Context, doctorID, id uuid.UUID, patch *Patch) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.owned(doctorID, id)
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	patch.apply(a)
	a.UpdatedAt = time.Now().UTC()
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) Delete(_ context.Context, doctorID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owned(doctorID, id); !ok {
		return ErrAppointmentNotFound
	}
	delete(r.appointments, id)
	return nil
}
