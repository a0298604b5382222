package appointment

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicrx/clinicrx/internal/platform/validation"
	"github.com/clinicrx/clinicrx/pkg/pagination"
)

type Service struct {
	appointments Repository
}

func NewService(appointments Repository) *Service {
	return &Service{appointments: appointments}
}

// Create books an appointment. Status defaults to scheduled.
func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, in *CreateInput) (*Appointment, error) {
	a := &Appointment{
		ID:          uuid.New(),
		DoctorID:    doctorID,
		PatientName: strings.TrimSpace(in.PatientName),
		DoctorName:  strings.TrimSpace(in.DoctorName),
		Date:        in.Date,
		Time:        in.Time,
		Status:      in.Status,
		Notes:       in.Notes,
	}
	if a.PatientName == "" {
		return nil, validation.Errorf("patientName", "patientName is required")
	}
	if a.DoctorName == "" {
		return nil, validation.Errorf("doctorName", "doctorName is required")
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, doctorID, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, doctorID, id)
}

// List returns one page of the doctor's appointments in date and time order.
func (s *Service) List(ctx context.Context, doctorID uuid.UUID, params ListParams, p pagination.Params) ([]*Appointment, int, error) {
	params.Limit, params.Offset = p.Limit, p.Offset
	return s.appointments.List(ctx, doctorID, params)
}

// trimName trims a present name field; a name may be changed but not blanked.
func trimName(field string, v *string) error {
	if v == nil {
		return nil
	}
	*v = strings.TrimSpace(*v)
	if *v == "" {
		return validation.Errorf(field, "%s cannot be blank", field)
	}
	return nil
}

// Update changes only the fields present in patch.
func (s *Service) Update(ctx context.Context, doctorID, id uuid.UUID, patch *Patch) (*Appointment, error) {
	if err := trimName("patientName", patch.PatientName); err != nil {
		return nil, err
	}
	if err := trimName("doctorName", patch.DoctorName); err != nil {
		return nil, err
	}
	return s.appointments.Update(ctx, doctorID, id, patch)
}

func (s *Service) Delete(ctx context.Context, doctorID, id uuid.UUID) error {
	return s.appointments.Delete(ctx, doctorID, id)
}
