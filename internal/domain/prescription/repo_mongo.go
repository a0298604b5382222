package prescription

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

type prescriptionDoc struct {
	ID                 string          `bson:"_id"`
	PrescriptionNumber string          `bson:"prescriptionNumber"`
	DoctorID           string          `bson:"doctorId"`
	PatientID          *string         `bson:"patientId,omitempty"`
	Patient            PatientSnapshot `bson:"patient"`
	Diagnosis          []Diagnosis     `bson:"diagnosis"`
	Lifestyle          Lifestyle       `bson:"lifestyle"`
	Vitals             Vitals          `bson:"vitals"`
	Tests              Tests           `bson:"tests"`
	Medications        []Medication    `bson:"medications"`
	CreatedAt          time.Time       `bson:"createdAt"`
	UpdatedAt          time.Time       `bson:"updatedAt"`
}

func toPrescriptionDoc(p *Prescription) prescriptionDoc {
	d := prescriptionDoc{
		ID:                 p.ID.String(),
		PrescriptionNumber: p.PrescriptionNumber,
		DoctorID:           p.DoctorID.String(),
		Patient:            p.Patient,
		Diagnosis:          p.Diagnosis,
		Lifestyle:          p.Lifestyle,
		Vitals:             p.Vitals,
		Tests:              p.Tests,
		Medications:        p.Medications,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	if p.PatientID != nil {
		s := p.PatientID.String()
		d.PatientID = &s
	}
	return d
}

func (d prescriptionDoc) toPrescription() (*Prescription, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("stored prescription id %q: %w", d.ID, err)
	}
	doctorID, err := uuid.Parse(d.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("stored prescription doctor id %q: %w", d.DoctorID, err)
	}
	p := &Prescription{
		ID:                 id,
		PrescriptionNumber: d.PrescriptionNumber,
		DoctorID:           doctorID,
		Patient:            d.Patient,
		Diagnosis:          d.Diagnosis,
		Lifestyle:          d.Lifestyle,
		Vitals:             d.Vitals,
		Tests:              d.Tests,
		Medications:        d.Medications,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	if d.PatientID != nil {
		pid, err := uuid.Parse(*d.PatientID)
		if err != nil {
			return nil, fmt.Errorf("stored prescription patient id %q: %w", *d.PatientID, err)
		}
		p.PatientID = &pid
	}
	return p, nil
}

type prescriptionRepoMongo struct{ coll *mongo.Collection }

func NewPrescriptionRepoMongo(store *mongostore.Store) Repository {
	return &prescriptionRepoMongo{coll: store.Collection(mongostore.Prescriptions)}
}

func ownedBy(doctorID, id uuid.UUID) bson.M {
	return bson.M{"_id": id.String(), "doctorId": doctorID.String()}
}

func (r *prescriptionRepoMongo) Create(ctx context.Context, p *Prescription) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if _, err := r.coll.InsertOne(ctx, toPrescriptionDoc(p)); err != nil {
		return fmt.Errorf("insert prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepoMongo) GetByID(ctx context.Context, doctorID, id uuid.UUID) (*Prescription, error) {
	var d prescriptionDoc
	if err := r.coll.FindOne(ctx, ownedBy(doctorID, id)).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, fmt.Errorf("find prescription: %w", err)
	}
	return d.toPrescription()
}

func listFilter(doctorID uuid.UUID, params ListParams) bson.M {
	filter := bson.M{"doctorId": doctorID.String()}
	if params.PatientID != nil {
		filter["patientId"] = params.PatientID.String()
	}
	if term := strings.TrimSpace(params.Search); term != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"patient.name": re},
			bson.M{"prescriptionNumber": re},
			bson.M{"diagnosis.primaryDiagnosis": re},
		}
	}
	return filter
}

func (r *prescriptionRepoMongo) List(ctx context.Context, doctorID uuid.UUID, params ListParams) ([]*Prescription, int, error) {
	filter := listFilter(doctorID, params)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count prescriptions: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(params.Offset)).
		SetLimit(int64(params.Limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list prescriptions: %w", err)
	}
	defer cur.Close(ctx)

	out := []*Prescription{}
	for cur.Next(ctx) {
		var d prescriptionDoc
		if err := cur.Decode(&d); err != nil {
			return nil, 0, err
		}
		p, err := d.toPrescription()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, int(total), cur.Err()
}

func (r *prescriptionRepoMongo) Update(ctx context.Context, p *Prescription) error {
	p.UpdatedAt = time.Now().UTC()
	d := toPrescriptionDoc(p)
	set := bson.M{
		"patient":     d.Patient,
		"diagnosis":   d.Diagnosis,
		"lifestyle":   d.Lifestyle,
		"vitals":      d.Vitals,
		"tests":       d.Tests,
		"medications": d.Medications,
		"updatedAt":   d.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if d.PatientID != nil {
		set["patientId"] = *d.PatientID
	} else {
		update["$unset"] = bson.M{"patientId": ""}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var out prescriptionDoc
	if err := r.coll.FindOneAndUpdate(ctx, ownedBy(p.DoctorID, p.ID), update, opts).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrPrescriptionNotFound
		}
		return fmt.Errorf("update prescription: %w", err)
	}
	p.PrescriptionNumber = out.PrescriptionNumber
	p.CreatedAt = out.CreatedAt
	return nil
}

func (r *prescriptionRepoMongo) Delete(ctx context.Context, doctorID, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, ownedBy(doctorID, id))
	if err != nil {
		return fmt.Errorf("delete prescription: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrPrescriptionNotFound
	}
	return nil
}

// -- Suggestions --

type suggestionRepoMongo struct {
	prescriptions *mongo.Collection
	symptoms      *mongo.Collection
}

func NewSuggestionRepoMongo(store *mongostore.Store) SuggestionRepository {
	return &suggestionRepoMongo{
		prescriptions: store.Collection(mongostore.Prescriptions),
		symptoms:      store.Collection(mongostore.SavedSymptoms),
	}
}

func trimmed(expr interface{}) bson.M {
	return bson.M{"$trim": bson.M{"input": bson.M{"$ifNull": bson.A{expr, ""}}}}
}

// unwindStages produce one {v, createdAt} document per occurrence of kind.
func unwindStages(kind Kind) (mongo.Pipeline, error) {
	switch kind {
	case KindDiagnoses:
		return mongo.Pipeline{
			{{Key: "$unwind", Value: "$diagnosis"}},
			{{Key: "$project", Value: bson.M{"v": trimmed("$diagnosis.primaryDiagnosis"), "createdAt": 1}}},
		}, nil
	case KindSymptoms:
		// $setUnion drops repeats of a symptom inside one diagnosis entry.
		distinct := bson.M{"$setUnion": bson.A{
			bson.M{"$map": bson.M{
				"input": bson.M{"$ifNull": bson.A{"$diagnosis.symptoms", bson.A{}}},
				"as":    "s",
				"in":    trimmed("$$s"),
			}},
			bson.A{},
		}}
		return mongo.Pipeline{
			{{Key: "$unwind", Value: "$diagnosis"}},
			{{Key: "$project", Value: bson.M{"symptoms": distinct, "createdAt": 1}}},
			{{Key: "$unwind", Value: "$symptoms"}},
			{{Key: "$project", Value: bson.M{"v": "$symptoms", "createdAt": 1}}},
		}, nil
	case KindTests:
		return mongo.Pipeline{
			{{Key: "$unwind", Value: "$tests.recommendedTests"}},
			{{Key: "$project", Value: bson.M{"v": trimmed("$tests.recommendedTests"), "createdAt": 1}}},
		}, nil
	case KindMedicines:
		return mongo.Pipeline{
			{{Key: "$unwind", Value: "$medications"}},
			{{Key: "$project", Value: bson.M{"v": trimmed("$medications.name"), "createdAt": 1}}},
		}, nil
	}
	return nil, ErrUnknownKind
}

// suggestionPipeline is the aggregation behind a saved suggestion list.
func suggestionPipeline(doctorID uuid.UUID, kind Kind, limit int) (mongo.Pipeline, error) {
	unwind, err := unwindStages(kind)
	if err != nil {
		return nil, err
	}
	p := mongo.Pipeline{{{Key: "$match", Value: bson.M{"doctorId": doctorID.String()}}}}
	p = append(p, unwind...)
	p = append(p,
		bson.D{{Key: "$match", Value: bson.M{"v": bson.M{"$ne": ""}}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":      "$v",
			"count":    bson.M{"$sum": 1},
			"lastUsed": bson.M{"$max": "$createdAt"},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "count", Value: -1},
			{Key: "lastUsed", Value: -1},
			{Key: "_id", Value: 1},
		}}},
	)
	if limit > 0 {
		p = append(p, bson.D{{Key: "$limit", Value: limit}})
	}
	return p, nil
}

type suggestionDoc struct {
	Value    string    `bson:"_id"`
	Count    int       `bson:"count"`
	LastUsed time.Time `bson:"lastUsed"`
}

func (r *suggestionRepoMongo) Suggestions(ctx context.Context, doctorID uuid.UUID, kind Kind, limit int) ([]Suggestion, error) {
	pipeline, err := suggestionPipeline(doctorID, kind, limit)
	if err != nil {
		return nil, err
	}
	cur, err := r.prescriptions.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("saved %s: %w", kind, err)
	}
	defer cur.Close(ctx)

	out := []Suggestion{}
	for cur.Next(ctx) {
		var d suggestionDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, Suggestion{Value: d.Value, Count: d.Count, LastUsed: d.LastUsed.UTC()})
	}
	return out, cur.Err()
}

type savedSymptomDoc struct {
	DoctorID string    `bson:"doctorId"`
	Symptom  string    `bson:"symptom"`
	Count    int       `bson:"count"`
	LastUsed time.Time `bson:"lastUsed"`
}

func (d savedSymptomDoc) toSavedSymptom() (SavedSymptom, error) {
	doctorID, err := uuid.Parse(d.DoctorID)
	if err != nil {
		return SavedSymptom{}, fmt.Errorf("stored saved symptom doctor id %q: %w", d.DoctorID, err)
	}
	return SavedSymptom{DoctorID: doctorID, Symptom: d.Symptom, Count: d.Count, LastUsed: d.LastUsed.UTC()}, nil
}

func (r *suggestionRepoMongo) UpsertSavedSymptom(ctx context.Context, doctorID uuid.UUID, symptom string, usedAt time.Time) (*SavedSymptom, error) {
	filter := bson.M{"doctorId": doctorID.String(), "symptom": symptom}
	update := bson.M{
		"$inc": bson.M{"count": 1},
		"$set": bson.M{"lastUsed": usedAt},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var d savedSymptomDoc
	err := mongostore.RetryOnDuplicateKey(mongostore.IndexSavedSymptom, func() error {
		return r.symptoms.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d)
	})
	if err != nil {
		return nil, fmt.Errorf("upsert saved symptom: %w", err)
	}
	s, err := d.toSavedSymptom()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *suggestionRepoMongo) ListSavedSymptoms(ctx context.Context, doctorID uuid.UUID) ([]SavedSymptom, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "count", Value: -1},
		{Key: "lastUsed", Value: -1},
		{Key: "symptom", Value: 1},
	})
	cur, err := r.symptoms.Find(ctx, bson.M{"doctorId": doctorID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("list saved symptoms: %w", err)
	}
	defer cur.Close(ctx)

	out := []SavedSymptom{}
	for cur.Next(ctx) {
		var d savedSymptomDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		s, err := d.toSavedSymptom()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, cur.Err()
}
