// Package mongostore connects to MongoDB and owns the collection names and
// indexes shared by the Mongo repositories.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	Users         = "users"
	Patients      = "patients"
	Prescriptions = "prescriptions"
	Appointments  = "appointments"
	Counters      = "counters"
	SavedSymptoms = "saved_symptoms"
)

// Index names referenced by repositories when translating duplicate key errors.
const (
	IndexUserEmail          = "users_email_key"
	IndexPatientDoctorPhone = "patients_doctor_phone_key"
	IndexSavedSymptom       = "saved_symptoms_doctor_symptom_key"
	IndexID                 = "_id_"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri, verifies the primary is reachable and returns a Store
// bound to database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	s := &Store{client: client, db: client.Database(database)}
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return s, nil
}

// Database returns the bound database.
func (s *Store) Database() *mongo.Database {
	return s.db
}

func (s *Store) Collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// Ping checks the primary. It satisfies db.Pinger for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Indexes returns the index models each collection needs. Uniqueness of
// email, (doctor, phone) and (doctor, symptom) is enforced here.
func Indexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		Users: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName(IndexUserEmail)},
			{Keys: bson.D{{Key: "verificationToken", Value: 1}}, Options: options.Index().SetSparse(true).SetName("users_verification_token")},
		},
		Patients: {
			{
				Keys:    bson.D{{Key: "doctorId", Value: 1}, {Key: "phone", Value: 1}},
				Options: options.Index().SetUnique(true).SetName(IndexPatientDoctorPhone),
			},
			{Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("patients_doctor_created")},
		},
		Prescriptions: {
			{Keys: bson.D{{Key: "prescriptionNumber", Value: 1}}, Options: options.Index().SetUnique(true).SetName("prescriptions_number_key")},
			{Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("prescriptions_doctor_created")},
		},
		Appointments: {
			{Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "date", Value: 1}, {Key: "time", Value: 1}}, Options: options.Index().SetName("appointments_doctor_date")},
		},
		SavedSymptoms: {
			{
				Keys:    bson.D{{Key: "doctorId", Value: 1}, {Key: "symptom", Value: 1}},
				Options: options.Index().SetUnique(true).SetName(IndexSavedSymptom),
			},
		},
	}
}

// EnsureIndexes creates every index from Indexes. Creating an index that
// already exists with the same spec is a no-op in MongoDB.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for coll, models := range Indexes() {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// RetryOnDuplicateKey runs op and, if it fails on the named unique index,
// runs it once more. Concurrent upserts on the same key can race to insert;
// the second attempt matches the document the winner created.
func RetryOnDuplicateKey(index string, op func() error) error {
	err := op()
	if IsDuplicateKey(err, index) {
		err = op()
	}
	return err
}

// IsDuplicateKey reports whether err is a duplicate key error raised by the
// named index. An empty index matches any duplicate key error.
func IsDuplicateKey(err error, index string) bool {
	if !mongo.IsDuplicateKeyError(err) {
		return false
	}
	if index == "" {
		return true
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if containsIndex(e.Message, index) {
				return true
			}
		}
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return containsIndex(ce.Message, index)
	}
	return containsIndex(err.Error(), index)
}

// containsIndex matches the "index: <name> dup key" fragment MongoDB puts in
// duplicate key messages.
func containsIndex(msg, index string) bool {
	return strings.Contains(msg, "index: "+index+" ")
}
