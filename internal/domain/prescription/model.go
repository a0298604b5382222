package prescription

import (
	"time"

	"github.com/google/uuid"
)

const (
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// PatientSnapshot is the copy of patient details taken when a prescription
// is issued. Later edits to the patient record do not change it.
type PatientSnapshot struct {
	Name                 string `json:"name" bson:"name" validate:"required,max=255"`
	Age                  int    `json:"age" bson:"age" validate:"gte=0,lte=150"`
	Gender               string `json:"gender" bson:"gender" validate:"omitempty,oneof=male female other"`
	Phone                string `json:"phone,omitempty" bson:"phone,omitempty"`
	Email                string `json:"email,omitempty" bson:"email,omitempty"`
	Address              string `json:"address,omitempty" bson:"address,omitempty"`
	BloodGroup           string `json:"bloodGroup,omitempty" bson:"bloodGroup,omitempty"`
	Allergies            string `json:"allergies,omitempty" bson:"allergies,omitempty"`
	Comorbidities        string `json:"comorbidities,omitempty" bson:"comorbidities,omitempty"`
	SmokingHistory       string `json:"smokingHistory,omitempty" bson:"smokingHistory,omitempty"`
	OccupationalExposure string `json:"occupationalExposure,omitempty" bson:"occupationalExposure,omitempty"`
	InsuranceID          string `json:"insuranceId,omitempty" bson:"insuranceId,omitempty"`
}

type Diagnosis struct {
	PrimaryDiagnosis   string   `json:"primaryDiagnosis" bson:"primaryDiagnosis" validate:"required,max=500"`
	SecondaryDiagnosis string   `json:"secondaryDiagnosis,omitempty" bson:"secondaryDiagnosis,omitempty"`
	Symptoms           []string `json:"symptoms" bson:"symptoms"`
	Duration           string   `json:"duration,omitempty" bson:"duration,omitempty"`
	Severity           string   `json:"severity,omitempty" bson:"severity,omitempty" validate:"omitempty,oneof=mild moderate severe"`
	Notes              string   `json:"notes,omitempty" bson:"notes,omitempty"`
}

type Lifestyle struct {
	DietaryRecommendations  []string `json:"dietaryRecommendations" bson:"dietaryRecommendations"`
	ExerciseRecommendations []string `json:"exerciseRecommendations" bson:"exerciseRecommendations"`
	LifestyleModifications  []string `json:"lifestyleModifications" bson:"lifestyleModifications"`
	FollowUp                string   `json:"followUp,omitempty" bson:"followUp,omitempty"`
}

// Vitals are free text so units stay as the doctor wrote them.
type Vitals struct {
	BloodPressure    string `json:"bloodPressure,omitempty" bson:"bloodPressure,omitempty"`
	Pulse            string `json:"pulse,omitempty" bson:"pulse,omitempty"`
	Temperature      string `json:"temperature,omitempty" bson:"temperature,omitempty"`
	RespiratoryRate  string `json:"respiratoryRate,omitempty" bson:"respiratoryRate,omitempty"`
	OxygenSaturation string `json:"oxygenSaturation,omitempty" bson:"oxygenSaturation,omitempty"`
	Weight           string `json:"weight,omitempty" bson:"weight,omitempty"`
	Height           string `json:"height,omitempty" bson:"height,omitempty"`
	BMI              string `json:"bmi,omitempty" bson:"bmi,omitempty"`
	BloodSugar       string `json:"bloodSugar,omitempty" bson:"bloodSugar,omitempty"`
}

type Tests struct {
	RecommendedTests []string `json:"recommendedTests" bson:"recommendedTests"`
	LabResults       string   `json:"labResults,omitempty" bson:"labResults,omitempty"`
	ImagingResults   string   `json:"imagingResults,omitempty" bson:"imagingResults,omitempty"`
}

type Medication struct {
	Name         string `json:"name" bson:"name" validate:"required,max=255"`
	Dosage       string `json:"dosage,omitempty" bson:"dosage,omitempty"`
	Frequency    string `json:"frequency,omitempty" bson:"frequency,omitempty"`
	Duration     string `json:"duration,omitempty" bson:"duration,omitempty"`
	Route        string `json:"route,omitempty" bson:"route,omitempty"`
	Instructions string `json:"instructions,omitempty" bson:"instructions,omitempty"`
	Notes        string `json:"notes,omitempty" bson:"notes,omitempty"`
}

// DoctorView is the read-only prescriber summary joined into responses.
type DoctorView struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Specialization string    `json:"specialization"`
	LicenseNumber  string    `json:"licenseNumber"`
}

type Prescription struct {
	ID                 uuid.UUID       `json:"id"`
	PrescriptionNumber string          `json:"prescriptionNumber"`
	DoctorID           uuid.UUID       `json:"doctorId"`
	PatientID          *uuid.UUID      `json:"patientId,omitempty"`
	Patient            PatientSnapshot `json:"patient"`
	Diagnosis          []Diagnosis     `json:"diagnosis"`
	Lifestyle          Lifestyle       `json:"lifestyle"`
	Vitals             Vitals          `json:"vitals"`
	Tests              Tests           `json:"tests"`
	Medications        []Medication    `json:"medications"`
	Doctor             *DoctorView     `json:"doctor,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Input is the body of create and update requests: every wizard section,
// each required. Update replaces all of them.
type Input struct {
	PatientID   *uuid.UUID       `json:"patientId"`
	Patient     *PatientSnapshot `json:"patient" validate:"required"`
	Diagnosis   []Diagnosis      `json:"diagnosis" validate:"required,min=1,dive"`
	Lifestyle   *Lifestyle       `json:"lifestyle" validate:"required"`
	Vitals      *Vitals          `json:"vitals" validate:"required"`
	Tests       *Tests           `json:"tests" validate:"required"`
	Medications []Medication     `json:"medications" validate:"required,min=1,dive"`
}

// ListParams filters a doctor's prescriptions. Search matches the patient
// name, the prescription number or a primary diagnosis.
type ListParams struct {
	Search    string
	PatientID *uuid.UUID
	Limit     int
	Offset    int
}

// Kind names one of the saved suggestion lists.
type Kind string

const (
	KindDiagnoses Kind = "diagnoses"
	KindSymptoms  Kind = "symptoms"
	KindTests     Kind = "tests"
	KindMedicines Kind = "medicines"
)

const (
	SourceHistory = "history"
	SourceCustom  = "custom"
)

// Suggestion is one row of a saved suggestion list.
type Suggestion struct {
	Value    string    `json:"value"`
	Count    int       `json:"count"`
	LastUsed time.Time `json:"lastUsed"`
	Source   string    `json:"source,omitempty"`
}

// SavedSymptom is a custom symptom a doctor typed outside the suggestion
// list. Count grows each time it is saved again.
type SavedSymptom struct {
	DoctorID uuid.UUID `json:"doctorId"`
	Symptom  string    `json:"symptom"`
	Count    int       `json:"count"`
	LastUsed time.Time `json:"lastUsed"`
}

type SavedSymptomRequest struct {
	Symptom string `json:"symptom" validate:"required,max=255"`
}
