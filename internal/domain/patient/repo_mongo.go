package patient

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clinicrx/clinicrx/internal/platform/mongostore"
)

type patientDoc struct {
	ID                   string    `bson:"_id"`
	DoctorID             string    `bson:"doctorId"`
	Name                 string    `bson:"name"`
	Age                  int       `bson:"age"`
	Gender               string    `bson:"gender"`
	Phone                string    `bson:"phone"`
	Email                string    `bson:"email"`
	Address              string    `bson:"address"`
	BloodGroup           string    `bson:"bloodGroup"`
	Allergies            string    `bson:"allergies"`
	Comorbidities        string    `bson:"comorbidities"`
	SmokingHistory       string    `bson:"smokingHistory"`
	OccupationalExposure string    `bson:"occupationalExposure"`
	InsuranceID          string    `bson:"insuranceId"`
	CreatedAt            time.Time `bson:"createdAt"`
	UpdatedAt            time.Time `bson:"updatedAt"`
}

func toPatientDoc(p *Patient) patientDoc {
	return patientDoc{
		ID:                   p.ID.String(),
		DoctorID:             p.DoctorID.String(),
		Name:                 p.Name,
		Age:                  p.Age,
		Gender:               p.Gender,
		Phone:                p.Phone,
		Email:                p.Email,
		Address:              p.Address,
		BloodGroup:           p.BloodGroup,
		Allergies:            p.Allergies,
		Comorbidities:        p.Comorbidities,
		SmokingHistory:       p.SmokingHistory,
		OccupationalExposure: p.OccupationalExposure,
		InsuranceID:          p.InsuranceID,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

func (d patientDoc) toPatient() (*Patient, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("stored patient id %q: %w", d.ID, err)
	}
	doctorID, err := uuid.Parse(d.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("stored patient doctor id %q: %w", d.DoctorID, err)
	}
	return &Patient{
		ID:                   id,
		DoctorID:             doctorID,
		Name:                 d.Name,
		Age:                  d.Age,
		Gender:               d.Gender,
		Phone:                d.Phone,
		Email:                d.Email,
		Address:              d.Address,
		BloodGroup:           d.BloodGroup,
		Allergies:            d.Allergies,
		Comorbidities:        d.Comorbidities,
		SmokingHistory:       d.SmokingHistory,
		OccupationalExposure: d.OccupationalExposure,
		InsuranceID:          d.InsuranceID,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}, nil
}

type patientRepoMongo struct{ coll *mongo.Collection }

func NewPatientRepoMongo(store *mongostore.Store) Repository {
	return &patientRepoMongo{coll: store.Collection(mongostore.Patients)}
}

func ownedBy(doctorID, id uuid.UUID) bson.M {
	return bson.M{"_id": id.String(), "doctorId": doctorID.String()}
}

func (r *patientRepoMongo) Create(ctx context.Context, p *Patient) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if _, err := r.coll.InsertOne(ctx, toPatientDoc(p)); err != nil {
		if mongostore.IsDuplicateKey(err, mongostore.IndexPatientDoctorPhone) {
			return ErrDuplicatePhone
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoMongo) GetByID(ctx context.Context, doctorID, id uuid.UUID) (*Patient, error) {
	var d patientDoc
	if err := r.coll.FindOne(ctx, ownedBy(doctorID, id)).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("find patient: %w", err)
	}
	return d.toPatient()
}

// listFilter scopes to the doctor and, for a non-blank search, matches the
// term literally and case-insensitively in name, phone or email.
func listFilter(doctorID uuid.UUID, search string) bson.M {
	filter := bson.M{"doctorId": doctorID.String()}
	if term := strings.TrimSpace(search); term != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": re},
			bson.M{"phone": re},
			bson.M{"email": re},
		}
	}
	return filter
}

func (r *patientRepoMongo) List(ctx context.Context, doctorID uuid.UUID, params ListParams) ([]*Patient, int, error) {
	filter := listFilter(doctorID, params.Search)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(params.Offset)).
		SetLimit(int64(params.Limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer cur.Close(ctx)

	patients := []*Patient{}
	for cur.Next(ctx) {
		var d patientDoc
		if err := cur.Decode(&d); err != nil {
			return nil, 0, err
		}
		p, err := d.toPatient()
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, int(total), cur.Err()
}

func (r *patientRepoMongo) Update(ctx context.Context, p *Patient) error {
	p.UpdatedAt = time.Now().UTC()
	d := toPatientDoc(p)
	update := bson.M{"$set": bson.M{
		"name":                 d.Name,
		"age":                  d.Age,
		"gender":               d.Gender,
		"phone":                d.Phone,
		"email":                d.Email,
		"address":              d.Address,
		"bloodGroup":           d.BloodGroup,
		"allergies":            d.Allergies,
		"comorbidities":        d.Comorbidities,
		"smokingHistory":       d.SmokingHistory,
		"occupationalExposure": d.OccupationalExposure,
		"insuranceId":          d.InsuranceID,
		"updatedAt":            d.UpdatedAt,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var out patientDoc
	if err := r.coll.FindOneAndUpdate(ctx, ownedBy(p.DoctorID, p.ID), update, opts).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrPatientNotFound
		}
		if mongostore.IsDuplicateKey(err, mongostore.IndexPatientDoctorPhone) {
			return ErrDuplicatePhone
		}
		return fmt.Errorf("update patient: %w", err)
	}
	p.CreatedAt = out.CreatedAt
	return nil
}

func (r *patientRepoMongo) Delete(ctx context.Context, doctorID, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, ownedBy(doctorID, id))
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrPatientNotFound
	}
	return nil
}
