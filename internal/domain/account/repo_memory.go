package account

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps users in process memory. It backs the memory store
// driver and the tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*User
	byEmail map[string]uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[uuid.UUID]*User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func cloneUser(u *User) *User {
	c := *u
	if u.VerificationToken != nil {
		tok := *u.VerificationToken
		c.VerificationToken = &tok
	}
	if u.VerificationTokenExpires != nil {
		exp := *u.VerificationTokenExpires
		c.VerificationTokenExpires = &exp
	}
	return &c
}

func (r *MemoryRepository) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[u.Email]; taken {
		return ErrEmailTaken
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	r.byID[u.ID] = cloneUser(u)
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[email]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryRepository) SetVerificationToken(_ context.Context, id uuid.UUID, token string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.VerificationToken = &token
	u.VerificationTokenExpires = &expires
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) ConsumeVerificationToken(_ context.Context, token string, now time.Time) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.VerificationToken == nil || *u.VerificationToken != token {
			continue
		}
		if u.VerificationTokenExpires == nil || !u.VerificationTokenExpires.After(now) {
			return nil, ErrInvalidVerificationToken
		}
		verify(u)
		return cloneUser(u), nil
	}
	return nil, ErrInvalidVerificationToken
}

func (r *MemoryRepository) MarkVerified(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	verify(u)
	return nil
}

func verify(u *User) {
	u.IsVerified = true
	u.VerificationToken = nil
	u.VerificationTokenExpires = nil
	u.UpdatedAt = time.Now().UTC()
}
