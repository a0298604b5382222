package prescription

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicrx/clinicrx/pkg/pagination"
)

type symptomKey struct {
	doctorID uuid.UUID
	symptom  string
}

// MemoryRepository implements Repository and SuggestionRepository in process
// memory.
type MemoryRepository struct {
	mu            sync.RWMutex
	prescriptions map[uuid.UUID]*Prescription
	symptoms      map[symptomKey]*SavedSymptom
	last          time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		prescriptions: make(map[uuid.UUID]*Prescription),
		symptoms:      make(map[symptomKey]*SavedSymptom),
	}
}

// clone deep-copies p through its JSON form so callers never share slices
// with the store.
func clone(p *Prescription) *Prescription {
	b, _ := json.Marshal(p)
	var c Prescription
	_ = json.Unmarshal(b, &c)
	return &c
}

func (r *MemoryRepository) Create(_ context.Context, p *Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if !now.After(r.last) {
		now = r.last.Add(time.Microsecond)
	}
	r.last = now
	p.CreatedAt, p.UpdatedAt = now, now
	r.prescriptions[p.ID] = clone(p)
	return nil
}

func (r *MemoryRepository) owned(doctorID, id uuid.UUID) (*Prescription, bool) {
	p, ok := r.prescriptions[id]
	if !ok || p.DoctorID != doctorID {
		return nil, false
	}
	return p, true
}

func (r *MemoryRepository) GetByID(_ context.Context, doctorID, id uuid.UUID) (*Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.owned(doctorID, id)
	if !ok {
		return nil, ErrPrescriptionNotFound
	}
	return clone(p), nil
}

func containsFold(s, lowerTerm string) bool {
	return strings.Contains(strings.ToLower(s), lowerTerm)
}

func matches(p *Prescription, params ListParams, term string) bool {
	if params.PatientID != nil && (p.PatientID == nil || *p.PatientID != *params.PatientID) {
		return false
	}
	if term == "" {
		return true
	}
	if containsFold(p.Patient.Name, term) || containsFold(p.PrescriptionNumber, term) {
		return true
	}
	for _, d := range p.Diagnosis {
		if containsFold(d.PrimaryDiagnosis, term) {
			return true
		}
	}
	return false
}

// byNewest orders prescriptions newest first.
func byNewest(ps []*Prescription) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.After(ps[j].CreatedAt)
		}
		return ps[i].ID.String() < ps[j].ID.String()
	})
}

func (r *MemoryRepository) List(_ context.Context, doctorID uuid.UUID, params ListParams) ([]*Prescription, int, error) {
	term := strings.ToLower(strings.TrimSpace(params.Search))

	r.mu.RLock()
	var hits []*Prescription
	for _, p := range r.prescriptions {
		if p.DoctorID == doctorID && matches(p, params, term) {
			hits = append(hits, clone(p))
		}
	}
	r.mu.RUnlock()

	byNewest(hits)
	start, end := pagination.Params{Limit: params.Limit, Offset: params.Offset}.Window(len(hits))
	return append([]*Prescription{}, hits[start:end]...), len(hits), nil
}

func (r *MemoryRepository) Update(_ context.Context, p *Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.owned(p.DoctorID, p.ID)
	if !ok {
		return ErrPrescriptionNotFound
	}
	p.PrescriptionNumber = existing.PrescriptionNumber
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	r.prescriptions[p.ID] = clone(p)
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, doctorID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owned(doctorID, id); !ok {
		return ErrPrescriptionNotFound
	}
	delete(r.prescriptions, id)
	return nil
}

// occurrences lists the trimmed values of kind in p, one per occurrence.
func occurrences(p *Prescription, kind Kind) []string {
	var out []string
	switch kind {
	case KindDiagnoses:
		for _, d := range p.Diagnosis {
			out = append(out, strings.TrimSpace(d.PrimaryDiagnosis))
		}
	case KindSymptoms:
		for _, d := range p.Diagnosis {
			seen := make(map[string]bool, len(d.Symptoms))
			for _, s := range d.Symptoms {
				s = strings.TrimSpace(s)
				if !seen[s] {
					seen[s] = true
					out = append(out, s)
				}
			}
		}
	case KindTests:
		for _, t := range p.Tests.RecommendedTests {
			out = append(out, strings.TrimSpace(t))
		}
	case KindMedicines:
		for _, m := range p.Medications {
			out = append(out, strings.TrimSpace(m.Name))
		}
	}
	return out
}

func validKind(kind Kind) bool {
	switch kind {
	case KindDiagnoses, KindSymptoms, KindTests, KindMedicines:
		return true
	}
	return false
}

func (r *MemoryRepository) Suggestions(_ context.Context, doctorID uuid.UUID, kind Kind, limit int) ([]Suggestion, error) {
	if !validKind(kind) {
		return nil, ErrUnknownKind
	}

	r.mu.RLock()
	groups := make(map[string]*Suggestion)
	for _, p := range r.prescriptions {
		if p.DoctorID != doctorID {
			continue
		}
		for _, v := range occurrences(p, kind) {
			if v == "" {
				continue
			}
			g, ok := groups[v]
			if !ok {
				g = &Suggestion{Value: v}
				groups[v] = g
			}
			g.Count++
			if p.CreatedAt.After(g.LastUsed) {
				g.LastUsed = p.CreatedAt
			}
		}
	}
	r.mu.RUnlock()

	out := make([]Suggestion, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sortSuggestions(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) UpsertSavedSymptom(_ context.Context, doctorID uuid.UUID, symptom string, usedAt time.Time) (*SavedSymptom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := symptomKey{doctorID, symptom}
	s, ok := r.symptoms[key]
	if !ok {
		s = &SavedSymptom{DoctorID: doctorID, Symptom: symptom}
		r.symptoms[key] = s
	}
	s.Count++
	s.LastUsed = usedAt
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) ListSavedSymptoms(_ context.Context, doctorID uuid.UUID) ([]SavedSymptom, error) {
	r.mu.RLock()
	out := []SavedSymptom{}
	for k, s := range r.symptoms {
		if k.doctorID == doctorID {
			out = append(out, *s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return less(out[i].Count, out[j].Count, out[i].LastUsed, out[j].LastUsed, out[i].Symptom, out[j].Symptom)
	})
	return out, nil
}

// less is the suggestion order: count desc, last use desc, value asc.
func less(ci, cj int, ti, tj time.Time, vi, vj string) bool {
	if ci != cj {
		return ci > cj
	}
	if !ti.Equal(tj) {
		return ti.After(tj)
	}
	return vi < vj
}

// sortSuggestions puts s in suggestion order. Values are distinct, so the
// order is total.
func sortSuggestions(s []Suggestion) {
	sort.Slice(s, func(i, j int) bool {
		return less(s[i].Count, s[j].Count, s[i].LastUsed, s[j].LastUsed, s[i].Value, s[j].Value)
	})
}
