package account

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicrx/clinicrx/internal/platform/db"
)

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) Repository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, name, email, password_hash, role, specialization, license_number,
	phone, is_verified, verification_token, verification_token_expires, created_at, updated_at`

const emailConstraint = "users_email_key"

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.Specialization, &u.LicenseNumber, &u.Phone, &u.IsVerified,
		&u.VerificationToken, &u.VerificationTokenExpires, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, specialization,
			license_number, phone, is_verified, verification_token, verification_token_expires)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Specialization,
		u.LicenseNumber, u.Phone, u.IsVerified, u.VerificationToken, u.VerificationTokenExpires,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, emailConstraint) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email))
}

func (r *userRepoPG) SetVerificationToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET verification_token = $2, verification_token_expires = $3, updated_at = NOW()
		WHERE id = $1`, id, token, expires)
	if err != nil {
		return fmt.Errorf("set verification token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepoPG) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `
		UPDATE users SET is_verified = TRUE, verification_token = NULL,
			verification_token_expires = NULL, updated_at = NOW()
		WHERE verification_token = $1 AND verification_token_expires > $2
		RETURNING `+userCols, token, now))
	if err == ErrUserNotFound {
		return nil, ErrInvalidVerificationToken
	}
	return u, err
}

func (r *userRepoPG) MarkVerified(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET is_verified = TRUE, verification_token = NULL,
			verification_token_expires = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark user verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
