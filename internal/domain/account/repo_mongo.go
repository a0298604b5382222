package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clinicrx/clinicrx/internal/platform/mongostore"
)

// userDoc is the stored shape of a User. Ids are kept as strings.
type userDoc struct {
	ID                       string     `bson:"_id"`
	Name                     string     `bson:"name"`
	Email                    string     `bson:"email"`
	PasswordHash             string     `bson:"passwordHash"`
	Role                     string     `bson:"role"`
	Specialization           string     `bson:"specialization"`
	LicenseNumber            string     `bson:"licenseNumber"`
	Phone                    string     `bson:"phone"`
	IsVerified               bool       `bson:"isVerified"`
	VerificationToken        *string    `bson:"verificationToken,omitempty"`
	VerificationTokenExpires *time.Time `bson:"verificationTokenExpires,omitempty"`
	CreatedAt                time.Time  `bson:"createdAt"`
	UpdatedAt                time.Time  `bson:"updatedAt"`
}

func toUserDoc(u *User) userDoc {
	return userDoc{
		ID:                       u.ID.String(),
		Name:                     u.Name,
		Email:                    u.Email,
		PasswordHash:             u.PasswordHash,
		Role:                     u.Role,
		Specialization:           u.Specialization,
		LicenseNumber:            u.LicenseNumber,
		Phone:                    u.Phone,
		IsVerified:               u.IsVerified,
		VerificationToken:        u.VerificationToken,
		VerificationTokenExpires: u.VerificationTokenExpires,
		CreatedAt:                u.CreatedAt,
		UpdatedAt:                u.UpdatedAt,
	}
}

func (d userDoc) toUser() (*User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("stored user id %q: %w", d.ID, err)
	}
	return &User{
		ID:                       id,
		Name:                     d.Name,
		Email:                    d.Email,
		PasswordHash:             d.PasswordHash,
		Role:                     d.Role,
		Specialization:           d.Specialization,
		LicenseNumber:            d.LicenseNumber,
		Phone:                    d.Phone,
		IsVerified:               d.IsVerified,
		VerificationToken:        d.VerificationToken,
		VerificationTokenExpires: d.VerificationTokenExpires,
		CreatedAt:                d.CreatedAt,
		UpdatedAt:                d.UpdatedAt,
	}, nil
}

type userRepoMongo struct{ coll *mongo.Collection }

func NewUserRepoMongo(store *mongostore.Store) Repository {
	return &userRepoMongo{coll: store.Collection(mongostore.Users)}
}

func (r *userRepoMongo) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var d userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return d.toUser()
}

func (r *userRepoMongo) Create(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	if _, err := r.coll.InsertOne(ctx, toUserDoc(u)); err != nil {
		if mongostore.IsDuplicateKey(err, mongostore.IndexUserEmail) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepoMongo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *userRepoMongo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *userRepoMongo) SetVerificationToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error {
	res, err := r.coll.UpdateByID(ctx, id.String(), bson.M{"$set": bson.M{
		"verificationToken":        token,
		"verificationTokenExpires": expires,
		"updatedAt":                time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("set verification token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

var clearToken = bson.M{"verificationToken": "", "verificationTokenExpires": ""}

func (r *userRepoMongo) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*User, error) {
	filter := bson.M{
		"verificationToken":        token,
		"verificationTokenExpires": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set":   bson.M{"isVerified": true, "updatedAt": time.Now().UTC()},
		"$unset": clearToken,
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var d userDoc
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidVerificationToken
		}
		return nil, fmt.Errorf("consume verification token: %w", err)
	}
	return d.toUser()
}

func (r *userRepoMongo) MarkVerified(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.UpdateByID(ctx, id.String(), bson.M{
		"$set":   bson.M{"isVerified": true, "updatedAt": time.Now().UTC()},
		"$unset": clearToken,
	})
	if err != nil {
		return fmt.Errorf("mark user verified: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}
