package patient

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicrx/clinicrx/pkg/pagination"
)

type Service struct {
	patients Repository
}

func NewService(patients Repository) *Service {
	return &Service{patients: patients}
}

func normalize(in *Input) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
}

func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, in *Input) (*Patient, error) {
	normalize(in)
	p := &Patient{ID: uuid.New(), DoctorID: doctorID}
	in.apply(p)
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, doctorID, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, doctorID, id)
}

// List returns one page of the doctor's patients, newest first.
func (s *Service) List(ctx context.Context, doctorID uuid.UUID, search string, p pagination.Params) ([]*Patient, int, error) {
	return s.patients.List(ctx, doctorID, ListParams{Search: search, Limit: p.Limit, Offset: p.Offset})
}

// Update replaces every editable field of an existing patient.
func (s *Service) Update(ctx context.Context, doctorID, id uuid.UUID, in *Input) (*Patient, error) {
	normalize(in)
	p := &Patient{ID: id, DoctorID: doctorID}
	in.apply(p)
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, doctorID, id uuid.UUID) error {
	return s.patients.Delete(ctx, doctorID, id)
}
