package appointment

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

type appointmentDoc struct {
	ID          string    `bson:"_id"`
	DoctorID    string    `bson:"doctorId"`
	PatientName string    `bson:"patientName"`
	DoctorName  string    `bson:"doctorName"`
	Date        string    `bson:"date"`
	Time        string    `bson:"time"`
	Status      string    `bson:"status"`
	Notes       string    `bson:"notes"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func toAppointmentDoc(a *Appointment) appointmentDoc {
	return appointmentDoc{
		ID:          a.ID.String(),
		DoctorID:    a.DoctorID.String(),
		PatientName: a.PatientName,
		DoctorName:  a.DoctorName,
		Date:        a.Date,
		Time:        a.Time,
		Status:      a.Status,
		Notes:       a.Notes,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (d appointmentDoc) toAppointment() (*Appointment, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("stored appointment id %q: %w", d.ID, err)
	}
	doctorID, err := uuid.Parse(d.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("stored appointment doctor id %q: %w", d.DoctorID, err)
	}
	return &Appointment{
		ID:          id,
		DoctorID:    doctorID,
		PatientName: d.PatientName,
		DoctorName:  d.DoctorName,
		Date:        d.Date,
		Time:        d.Time,
		Status:      d.Status,
		Notes:       d.Notes,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

type appointmentRepoMongo struct{ coll *mongo.Collection }

func NewAppointmentRepoMongo(store *mongostore.Store) Repository {
	return &appointmentRepoMongo{coll: store.Collection(mongostore.Appointments)}
}

func ownedBy(doctorID, id uuid.UUID) bson.M {
	return bson.M{"_id": id.String(), "doctorId": doctorID.String()}
}

func (r *appointmentRepoMongo) Create(ctx context.Context, a *Appointment) error {
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	if _, err := r.coll.InsertOne(ctx, toAppointmentDoc(a)); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoMongo) GetByID(ctx context.Context, doctorID, id uuid.UUID) (*Appointment, error) {
	var d appointmentDoc
	if err := r.coll.FindOne(ctx, ownedBy(doctorID, id)).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return d.toAppointment()
}

func listFilter(doctorID uuid.UUID, params ListParams) bson.M {
	filter := bson.M{"doctorId": doctorID.String()}
	if params.Status != "" {
		filter["status"] = params.Status
	}
	if params.Date != "" {
		filter["date"] = params.Date
	}
	if term := strings.TrimSpace(params.Search); term != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"patientName": re},
			bson.M{"doctorName": re},
		}
	}
	return filter
}

// listSort orders by appointment slot, then by creation for equal slots.
var listSort = bson.D{
	{Key: "date", Value: 1},
	{Key: "time", Value: 1},
	{Key: "createdAt", Value: 1},
	{Key: "_id", Value: 1},
}

func (r *appointmentRepoMongo) List(ctx context.Context, doctorID uuid.UUID, params ListParams) ([]*Appointment, int, error) {
	filter := listFilter(doctorID, params)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	opts := options.Find().
		SetSort(listSort).
		SetSkip(int64(params.Offset)).
		SetLimit(int64(params.Limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer cur.Close(ctx)

	out := []*Appointment{}
	for cur.Next(ctx) {
		var d appointmentDoc
		if err := cur.Decode(&d); err != nil {
			return nil, 0, err
		}
		a, err := d.toAppointment()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, int(total), cur.Err()
}

// patchSet lists the fields present in patch as a $set document.
func patchSet(patch *Patch, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	for field, v := range map[string]*string{
		"patientName": patch.PatientName,
		"doctorName":  patch.DoctorName,
		"date":        patch.Date,
		"time":        patch.Time,
		"status":      patch.Status,
		"notes":       patch.Notes,
	} {
		if v != nil {
			set[field] = *v
		}
	}
	return set
}

func (r *appointmentRepoMongo) Update(ctx context.Context, doctorID, id uuid.UUID, patch *Patch) (*Appointment, error) {
	update := bson.M{"$set": patchSet(patch, time.Now().UTC())}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var d appointmentDoc
	if err := r.coll.FindOneAndUpdate(ctx, ownedBy(doctorID, id), update, opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	return d.toAppointment()
}

func (r *appointmentRepoMongo) Delete(ctx context.Context, doctorID, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, ownedBy(doctorID, id))
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}
