package appointment

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores appointments scoped to their owning doctor. Lists are
// in chronological order of the appointment itself.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, doctorID, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, doctorID uuid.UUID, params ListParams) ([]*Appointment, int, error)
	// Update applies patch in a single write and returns the stored result.
	Update(ctx context.Context, doctorID, id uuid.UUID, patch *Patch) (*Appointment, error)
	Delete(ctx context.Context, doctorID, id uuid.UUID) error
}
