package appointment

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Date and time layouts appointments are stored in.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ValidStatus reports whether s is one of the appointment statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Appointment is an entry in a doctor's appointment book. Patient and
// doctor names are plain text and do not reference other records.
type Appointment struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"doctorId"`
	PatientName string    `json:"patientName"`
	DoctorName  string    `json:"doctorName"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateInput struct {
	PatientName string `json:"patientName" validate:"required,max=255"`
	DoctorName  string `json:"doctorName" validate:"required,max=255"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string `json:"time" validate:"required,datetime=15:04"`
	Status      string `json:"status" validate:"omitempty,oneof=scheduled completed cancelled"`
	Notes       string `json:"notes"`
}

// Patch is the body of an update. Only the fields present in the request
// change; any status may move to any other.
type Patch struct {
	PatientName *string `json:"patientName" validate:"omitempty,max=255"`
	DoctorName  *string `json:"doctorName" validate:"omitempty,max=255"`
	Date        *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time        *string `json:"time" validate:"omitempty,datetime=15:04"`
	Status      *string `json:"status" validate:"omitempty,oneof=scheduled completed cancelled"`
	Notes       *string `json:"notes"`
}

// apply copies the fields present in the patch onto a.
func (p *Patch) apply(a *Appointment) {
	if p.PatientName != nil {
		a.PatientName = *p.PatientName
	}
	if p.DoctorName != nil {
		a.DoctorName = *p.DoctorName
	}
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.Time != nil {
		a.Time = *p.Time
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
}

// ListParams filters a doctor's appointments. Search matches the patient or
// doctor name; Status and Date are exact matches when set.
type ListParams struct {
	Search string
	Status string
	Date   string
	Limit  int
	Offset int
}
