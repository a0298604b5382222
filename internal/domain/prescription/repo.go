package prescription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository stores prescriptions, scoped to the owning doctor.
type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, doctorID, id uuid.UUID) (*Prescription, error)
	List(ctx context.Context, doctorID uuid.UUID, params ListParams) ([]*Prescription, int, error)
	// Update replaces every section. The number and createdAt are kept.
	Update(ctx context.Context, p *Prescription) error
	Delete(ctx context.Context, doctorID, id uuid.UUID) error
}

// SuggestionRepository computes suggestion lists from a doctor's history and
// keeps the custom symptom counters. A limit of zero or less means no limit.
type SuggestionRepository interface {
	Suggestions(ctx context.Context, doctorID uuid.UUID, kind Kind, limit int) ([]Suggestion, error)
	UpsertSavedSymptom(ctx context.Context, doctorID uuid.UUID, symptom string, usedAt time.Time) (*SavedSymptom, error)
	ListSavedSymptoms(ctx context.Context, doctorID uuid.UUID) ([]SavedSymptom, error)
}
