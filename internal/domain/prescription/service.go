package prescription

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicrx/clinicrx/internal/platform/sequence"
	"github.com/clinicrx/clinicrx/internal/platform/validation"
	"github.com/clinicrx/clinicrx/pkg/pagination"
)

// PatientLookup reports whether a patient belongs to a doctor.
type PatientLookup interface {
	OwnsPatient(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
}

// DoctorDirectory resolves the prescriber summary joined into responses.
type DoctorDirectory interface {
	Doctor(ctx context.Context, id uuid.UUID) (*DoctorView, error)
}

// TxRunner runs fn as one unit of work. Stores without transactions run fn
// directly.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// NoTx is the TxRunner for stores whose writes are single-document.
func NoTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type ServiceConfig struct {
	Prescriptions Repository
	Suggestions   SuggestionRepository
	Counter       sequence.Counter
	Patients      PatientLookup
	Doctors       DoctorDirectory
	// Tx wraps numbering and insert. Defaults to NoTx.
	Tx     TxRunner
	Logger zerolog.Logger
}

type Service struct {
	prescriptions Repository
	suggestions   SuggestionRepository
	counter       sequence.Counter
	patients      PatientLookup
	doctors       DoctorDirectory
	tx            TxRunner
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	tx := cfg.Tx
	if tx == nil {
		tx = NoTx
	}
	return &Service{
		prescriptions: cfg.Prescriptions,
		suggestions:   cfg.Suggestions,
		counter:       cfg.Counter,
		patients:      cfg.Patients,
		doctors:       cfg.Doctors,
		tx:            tx,
		logger:        cfg.Logger,
		now:           time.Now,
	}
}

// build turns a validated input into a prescription owned by doctorID.
// Nil lists become empty so stored documents always hold arrays.
func build(doctorID uuid.UUID, in *Input) *Prescription {
	p := &Prescription{
		DoctorID:    doctorID,
		PatientID:   in.PatientID,
		Patient:     *in.Patient,
		Diagnosis:   in.Diagnosis,
		Lifestyle:   *in.Lifestyle,
		Vitals:      *in.Vitals,
		Tests:       *in.Tests,
		Medications: in.Medications,
	}
	for i := range p.Diagnosis {
		p.Diagnosis[i].Symptoms = nonNil(p.Diagnosis[i].Symptoms)
	}
	p.Lifestyle.DietaryRecommendations = nonNil(p.Lifestyle.DietaryRecommendations)
	p.Lifestyle.ExerciseRecommendations = nonNil(p.Lifestyle.ExerciseRecommendations)
	p.Lifestyle.LifestyleModifications = nonNil(p.Lifestyle.LifestyleModifications)
	p.Tests.RecommendedTests = nonNil(p.Tests.RecommendedTests)
	return p
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Service) checkPatient(ctx context.Context, doctorID uuid.UUID, patientID *uuid.UUID) error {
	if patientID == nil || s.patients == nil {
		return nil
	}
	ok, err := s.patients.OwnsPatient(ctx, doctorID, *patientID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPatientNotFound
	}
	return nil
}

// Create issues a prescription. The number is drawn and the row inserted in
// one unit of work, so a failed insert does not consume a number on
// transactional stores.
func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, in *Input) (*Prescription, error) {
	if err := s.checkPatient(ctx, doctorID, in.PatientID); err != nil {
		return nil, err
	}
	p := build(doctorID, in)
	p.ID = uuid.New()

	err := s.tx(ctx, func(ctx context.Context) error {
		n, err := s.counter.Next(ctx, sequence.Prescription)
		if err != nil {
			return err
		}
		p.PrescriptionNumber = sequence.FormatPrescriptionNumber(n)
		return s.prescriptions.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.joinDoctor(ctx, p)
	return p, nil
}

// joinDoctor attaches the prescriber view. A lookup failure leaves Doctor
// empty rather than failing the read.
func (s *Service) joinDoctor(ctx context.Context, ps ...*Prescription) {
	if s.doctors == nil || len(ps) == 0 {
		return
	}
	views := make(map[uuid.UUID]*DoctorView)
	for _, p := range ps {
		v, ok := views[p.DoctorID]
		if !ok {
			var err error
			v, err = s.doctors.Doctor(ctx, p.DoctorID)
			if err != nil {
				s.logger.Warn().Err(err).Str("doctor_id", p.DoctorID.String()).Msg("doctor lookup failed")
			}
			views[p.DoctorID] = v
		}
		p.Doctor = v
	}
}

func (s *Service) Get(ctx context.Context, doctorID, id uuid.UUID) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, doctorID, id)
	if err != nil {
		return nil, err
	}
	s.joinDoctor(ctx, p)
	return p, nil
}

func (s *Service) List(ctx context.Context, doctorID uuid.UUID, search string, patientID *uuid.UUID, p pagination.Params) ([]*Prescription, int, error) {
	out, total, err := s.prescriptions.List(ctx, doctorID, ListParams{
		Search:    search,
		PatientID: patientID,
		Limit:     p.Limit,
		Offset:    p.Offset,
	})
	if err != nil {
		return nil, 0, err
	}
	s.joinDoctor(ctx, out...)
	return out, total, nil
}

// Update replaces every section of a prescription. Its number never changes.
func (s *Service) Update(ctx context.Context, doctorID, id uuid.UUID, in *Input) (*Prescription, error) {
	if err := s.checkPatient(ctx, doctorID, in.PatientID); err != nil {
		return nil, err
	}
	p := build(doctorID, in)
	p.ID = id
	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, err
	}
	s.joinDoctor(ctx, p)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, doctorID, id uuid.UUID) error {
	return s.prescriptions.Delete(ctx, doctorID, id)
}

// Suggestions returns a frequency-ranked list drawn from the doctor's whole
// prescribing history. Symptoms also carry custom saved entries; see
// SavedSymptoms.
func (s *Service) Suggestions(ctx context.Context, doctorID uuid.UUID, kind Kind, limit int) ([]Suggestion, error) {
	if kind == KindSymptoms {
		return s.SavedSymptoms(ctx, doctorID, limit)
	}
	return s.suggestions.Suggestions(ctx, doctorID, kind, limit)
}

// SavedSymptoms lists symptoms from history first, then custom saved
// symptoms whose text never appears in history. limit caps the combined
// list.
func (s *Service) SavedSymptoms(ctx context.Context, doctorID uuid.UUID, limit int) ([]Suggestion, error) {
	history, err := s.suggestions.Suggestions(ctx, doctorID, KindSymptoms, 0)
	if err != nil {
		return nil, err
	}
	custom, err := s.suggestions.ListSavedSymptoms(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(history))
	out := make([]Suggestion, 0, len(history)+len(custom))
	for _, h := range history {
		seen[h.Value] = true
		h.Source = SourceHistory
		out = append(out, h)
	}
	for _, c := range custom {
		if seen[c.Symptom] {
			continue
		}
		out = append(out, Suggestion{Value: c.Symptom, Count: c.Count, LastUsed: c.LastUsed, Source: SourceCustom})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AddSavedSymptom records a custom symptom, bumping its count when the
// doctor has saved it before.
func (s *Service) AddSavedSymptom(ctx context.Context, doctorID uuid.UUID, symptom string) (*SavedSymptom, error) {
	symptom = strings.TrimSpace(symptom)
	if symptom == "" {
		return nil, validation.Errorf("symptom", "symptom is required")
	}
	return s.suggestions.UpsertSavedSymptom(ctx, doctorID, symptom, s.now().UTC())
}
