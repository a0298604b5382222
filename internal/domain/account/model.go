package account

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleDoctor = "doctor"
	RoleAdmin  = "admin"
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 8

// User is a registered doctor or administrator. Users are never hard-deleted.
type User struct {
	ID                       uuid.UUID  `json:"id"`
	Name                     string     `json:"name"`
	Email                    string     `json:"email"`
	PasswordHash             string     `json:"-"`
	Role                     string     `json:"role"`
	Specialization           string     `json:"specialization"`
	LicenseNumber            string     `json:"licenseNumber"`
	Phone                    string     `json:"phone,omitempty"`
	IsVerified               bool       `json:"isVerified"`
	VerificationToken        *string    `json:"-"`
	VerificationTokenExpires *time.Time `json:"-"`
	CreatedAt                time.Time  `json:"createdAt"`
	UpdatedAt                time.Time  `json:"updatedAt"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Name           string `json:"name" validate:"required,max=255"`
	Email          string `json:"email" validate:"required,email,max=255"`
	Password       string `json:"password" validate:"required,min=8,max=72"`
	Role           string `json:"role" validate:"omitempty,oneof=doctor"`
	Specialization string `json:"specialization" validate:"max=255"`
	LicenseNumber  string `json:"licenseNumber" validate:"max=100"`
	Phone          string `json:"phone" validate:"max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}
