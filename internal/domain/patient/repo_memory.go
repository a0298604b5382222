package patient

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicrx/clinicrx/pkg/pagination"
)

type phoneKey struct {
	doctorID uuid.UUID
	phone    string
}

// MemoryRepository keeps patients in process memory. The phone index plays
// the role of the (doctor_id, phone) unique constraint.
type MemoryRepository struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]*Patient
	phones   map[phoneKey]uuid.UUID
	last     time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients: make(map[uuid.UUID]*Patient),
		phones:   make(map[phoneKey]uuid.UUID),
	}
}

func (r *MemoryRepository) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := phoneKey{p.DoctorID, p.Phone}
	if _, taken := r.phones[key]; taken {
		return ErrDuplicatePhone
	}
	// Keep creation times strictly increasing so newest-first is stable.
	now := time.Now().UTC()
	if !now.After(r.last) {
		now = r.last.Add(time.Microsecond)
	}
	r.last = now
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	r.patients[p.ID] = &cp
	r.phones[key] = p.ID
	return nil
}

func (r *MemoryRepository) owned(doctorID, id uuid.UUID) (*Patient, bool) {
	p, ok := r.patients[id]
	if !ok || p.DoctorID != doctorID {
		return nil, false
	}
	return p, true
}

func (r *MemoryRepository) GetByID(_ context.Context, doctorID, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.owned(doctorID, id)
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func matches(p *Patient, term string) bool {
	if term == "" {
		return true
	}
	for _, field := range []string{p.Name, p.Phone, p.Email} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) List(_ context.Context, doctorID uuid.UUID, params ListParams) ([]*Patient, int, error) {
	r.mu.RLock()
	term := strings.ToLower(strings.TrimSpace(params.Search))
	var hits []*Patient
	for _, p := range r.patients {
		if p.DoctorID == doctorID && matches(p, term) {
			cp := *p
			hits = append(hits, &cp)
		}
	}
	r.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].CreatedAt.Equal(hits[j].CreatedAt) {
			return hits[i].CreatedAt.After(hits[j].CreatedAt)
		}
		return hits[i].ID.String() < hits[j].ID.String()
	})

	total := len(hits)
	start, end := pagination.Params{Limit: params.Limit, Offset: params.Offset}.Window(total)
	return append([]*Patient{}, hits[start:end]...), total, nil
}

func (r *MemoryRepository) Update(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.owned(p.DoctorID, p.ID)
	if !ok {
		return ErrPatientNotFound
	}
	key := phoneKey{p.DoctorID, p.Phone}
	if owner, taken := r.phones[key]; taken && owner != p.ID {
		return ErrDuplicatePhone
	}
	delete(r.phones, phoneKey{existing.DoctorID, existing.Phone})
	r.phones[key] = p.ID

	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, doctorID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.owned(doctorID, id)
	if !ok {
		return ErrPatientNotFound
	}
	delete(r.phones, phoneKey{p.DoctorID, p.Phone})
	delete(r.patients, id)
	return nil
}
