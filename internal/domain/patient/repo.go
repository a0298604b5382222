package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores patients. Every read and write is scoped to the owning
// doctor; a patient owned by another doctor is reported as not found.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, doctorID, id uuid.UUID) (*Patient, error)
	List(ctx context.Context, doctorID uuid.UUID, params ListParams) ([]*Patient, int, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, doctorID, id uuid.UUID) error
}
