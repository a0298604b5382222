package server

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinicrx/clinicrx/internal/domain/account"
	"github.com/clinicrx/clinicrx/internal/domain/patient"
	"github.com/clinicrx/clinicrx/internal/domain/prescription"
)

// patientLookup answers prescription ownership checks from the patient
// store so the two domain packages stay independent.
type patientLookup struct {
	patients patient.Repository
}

func (l patientLookup) OwnsPatient(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	_, err := l.patients.GetByID(ctx, doctorID, patientID)
	if errors.Is(err, patient.ErrPatientNotFound) {
		return false, nil
	}
	return err == nil, err
}

// doctorDirectory builds the prescriber view joined into prescriptions.
type doctorDirectory struct {
	users account.Repository
}

func (d doctorDirectory) Doctor(ctx context.Context, id uuid.UUID) (*prescription.DoctorView, error) {
	u, err := d.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &prescription.DoctorView{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Specialization: u.Specialization,
		LicenseNumber:  u.LicenseNumber,
	}, nil
}
