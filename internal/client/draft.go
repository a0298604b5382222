package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicrx/clinicrx/internal/domain/prescription"
)

// Step is one page of the prescription wizard.
type Step string

const (
	StepPatient     Step = "patient"
	StepDiagnosis   Step = "diagnosis"
	StepLifestyle   Step = "lifestyle"
	StepVitalsTests Step = "vitals-tests"
	StepMedications Step = "medications"
)

// Steps lists the wizard steps in order.
var Steps = []Step{StepPatient, StepDiagnosis, StepLifestyle, StepVitalsTests, StepMedications}

// IncompleteError is returned by Submit when steps are missing.
type IncompleteError struct {
	Missing []Step
}

func (e *IncompleteError) Error() string {
	names := make([]string, len(e.Missing))
	for i, s := range e.Missing {
		names[i] = string(s)
	}
	return fmt.Sprintf("prescription draft is missing: %s", strings.Join(names, ", "))
}

// Draft accumulates a prescription across the wizard steps. Nothing is sent
// to the server until Submit, which makes a single create call.
type Draft struct {
	patientID   *uuid.UUID
	patient     *prescription.PatientSnapshot
	diagnosis   []prescription.Diagnosis
	lifestyle   *prescription.Lifestyle
	vitals      *prescription.Vitals
	tests       *prescription.Tests
	medications []prescription.Medication
}

func NewDraft() *Draft {
	return &Draft{}
}

// SetPatient fills the first step. patientID may be nil for a walk-in
// patient with no stored record.
func (d *Draft) SetPatient(patientID *uuid.UUID, snapshot prescription.PatientSnapshot) *Draft {
	d.patientID = patientID
	d.patient = &snapshot
	return d
}

func (d *Draft) SetDiagnosis(diagnoses ...prescription.Diagnosis) *Draft {
	d.diagnosis = diagnoses
	return d
}

func (d *Draft) SetLifestyle(l prescription.Lifestyle) *Draft {
	d.lifestyle = &l
	return d
}

func (d *Draft) SetVitalsTests(v prescription.Vitals, t prescription.Tests) *Draft {
	d.vitals = &v
	d.tests = &t
	return d
}

func (d *Draft) SetMedications(meds ...prescription.Medication) *Draft {
	d.medications = meds
	return d
}

// Missing returns the steps not yet filled, in wizard order.
func (d *Draft) Missing() []Step {
	var out []Step
	if d.patient == nil {
		out = append(out, StepPatient)
	}
	if len(d.diagnosis) == 0 {
		out = append(out, StepDiagnosis)
	}
	if d.lifestyle == nil {
		out = append(out, StepLifestyle)
	}
	if d.vitals == nil || d.tests == nil {
		out = append(out, StepVitalsTests)
	}
	if len(d.medications) == 0 {
		out = append(out, StepMedications)
	}
	return out
}

// Complete reports whether every step has been filled.
func (d *Draft) Complete() bool {
	return len(d.Missing()) == 0
}

// Input returns the create request the draft would submit.
func (d *Draft) Input() *prescription.Input {
	return &prescription.Input{
		PatientID:   d.patientID,
		Patient:     d.patient,
		Diagnosis:   d.diagnosis,
		Lifestyle:   d.lifestyle,
		Vitals:      d.vitals,
		Tests:       d.tests,
		Medications: d.medications,
	}
}

// Submit issues the prescription. An incomplete draft returns an
// *IncompleteError without contacting the server.
func (d *Draft) Submit(ctx context.Context, c *Client, s *Session) (*prescription.Prescription, error) {
	if !d.Complete() {
		return nil, &IncompleteError{Missing: d.Missing()}
	}
	return c.CreatePrescription(ctx, s, d.Input())
}
