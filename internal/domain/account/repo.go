package account

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists users. Implementations return ErrUserNotFound for a
// missing user and ErrEmailTaken when the email unique index rejects a write.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// SetVerificationToken replaces the pending token and its expiry.
	SetVerificationToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error
	// ConsumeVerificationToken marks the owner of an unexpired token verified
	// and clears the token in one atomic step, so a token works only once.
	// Unknown or expired tokens yield ErrInvalidVerificationToken.
	ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*User, error)
	// MarkVerified verifies a user directly and clears any pending token.
	MarkVerified(ctx context.Context, id uuid.UUID) error
}
