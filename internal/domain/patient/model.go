package patient

import (
	"time"

	"github.com/google/uuid"
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// Patient is a record owned by a single doctor.
type Patient struct {
	ID                   uuid.UUID `json:"id"`
	DoctorID             uuid.UUID `json:"doctorId"`
	Name                 string    `json:"name"`
	Age                  int       `json:"age"`
	Gender               string    `json:"gender"`
	Phone                string    `json:"phone"`
	Email                string    `json:"email"`
	Address              string    `json:"address"`
	BloodGroup           string    `json:"bloodGroup"`
	Allergies            string    `json:"allergies"`
	Comorbidities        string    `json:"comorbidities"`
	SmokingHistory       string    `json:"smokingHistory"`
	OccupationalExposure string    `json:"occupationalExposure"`
	InsuranceID          string    `json:"insuranceId"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Input is the body of create and update requests. Update replaces every
// field.
type Input struct {
	Name                 string `json:"name" validate:"required,max=255"`
	Age                  int    `json:"age" validate:"gte=0,lte=150"`
	Gender               string `json:"gender" validate:"required,oneof=male female other"`
	Phone                string `json:"phone" validate:"required,max=50"`
	Email                string `json:"email" validate:"omitempty,email,max=255"`
	Address              string `json:"address"`
	BloodGroup           string `json:"bloodGroup" validate:"max=10"`
	Allergies            string `json:"allergies"`
	Comorbidities        string `json:"comorbidities"`
	SmokingHistory       string `json:"smokingHistory"`
	OccupationalExposure string `json:"occupationalExposure"`
	InsuranceID          string `json:"insuranceId" validate:"max=100"`
}

// apply copies the input onto p, replacing every editable field.
func (in *Input) apply(p *Patient) {
	p.Name = in.Name
	p.Age = in.Age
	p.Gender = in.Gender
	p.Phone = in.Phone
	p.Email = in.Email
	p.Address = in.Address
	p.BloodGroup = in.BloodGroup
	p.Allergies = in.Allergies
	p.Comorbidities = in.Comorbidities
	p.SmokingHistory = in.SmokingHistory
	p.OccupationalExposure = in.OccupationalExposure
	p.InsuranceID = in.InsuranceID
}

// ListParams filters a doctor's patients. Search matches name, phone or
// email case-insensitively.
type ListParams struct {
	Search string
	Limit  int
	Offset int
}
