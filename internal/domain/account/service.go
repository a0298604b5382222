package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicrx/clinicrx/internal/platform/auth"
	"github.com/clinicrx/clinicrx/internal/platform/notification"
	"github.com/clinicrx/clinicrx/internal/platform/validation"
)

const verificationTokenBytes = 32

// NewVerificationToken returns a random hex token for email verification.
func NewVerificationToken() (string, error) {
	b := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

type ServiceConfig struct {
	Issuer          *auth.TokenIssuer
	Revocations     auth.RevocationStore
	Mailer          *notification.Mailer
	VerificationTTL time.Duration
	Logger          zerolog.Logger
}

type Service struct {
	users           Repository
	issuer          *auth.TokenIssuer
	revocations     auth.RevocationStore
	mailer          *notification.Mailer
	verificationTTL time.Duration
	logger          zerolog.Logger

	now      func() time.Time
	newToken func() (string, error)
}

func NewService(users Repository, cfg ServiceConfig) *Service {
	return &Service{
		users:           users,
		issuer:          cfg.Issuer,
		revocations:     cfg.Revocations,
		mailer:          cfg.Mailer,
		verificationTTL: cfg.VerificationTTL,
		logger:          cfg.Logger,
		now:             time.Now,
		newToken:        NewVerificationToken,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified doctor account and mails its verification
// link. A mail failure is logged and does not undo the registration. Admin
// accounts are only created by operators through CreateAdmin.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	if req.Role != "" && req.Role != RoleDoctor {
		return nil, validation.Errorf("role", "role must be doctor")
	}
	if strings.TrimSpace(req.Specialization) == "" {
		return nil, validation.Errorf("specialization", "specialization is required")
	}
	if strings.TrimSpace(req.LicenseNumber) == "" {
		return nil, validation.Errorf("licenseNumber", "licenseNumber is required")
	}

	token, err := s.newToken()
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(s.verificationTTL).UTC()

	u, err := newUser(req, RoleDoctor)
	if err != nil {
		return nil, err
	}
	u.VerificationToken = &token
	u.VerificationTokenExpires = &expires
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.sendVerification(ctx, u, token)
	return u, nil
}

// CreateAdmin creates an already verified admin account. No mail is sent.
func (s *Service) CreateAdmin(ctx context.Context, req *RegisterRequest) (*User, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, validation.Errorf("name", "name is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		return nil, validation.Errorf("email", "email is required")
	}
	if len(req.Password) < 8 {
		return nil, validation.Errorf("password", "password must be at least 8 characters")
	}

	u, err := newUser(req, RoleAdmin)
	if err != nil {
		return nil, err
	}
	u.IsVerified = true
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func newUser(req *RegisterRequest, role string) (*User, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(req.Name),
		Email:          normalizeEmail(req.Email),
		PasswordHash:   hash,
		Role:           role,
		Specialization: strings.TrimSpace(req.Specialization),
		LicenseNumber:  strings.TrimSpace(req.LicenseNumber),
		Phone:          strings.TrimSpace(req.Phone),
	}, nil
}

func (s *Service) sendVerification(ctx context.Context, u *User, token string) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendVerification(ctx, u.Email, u.Name, token, s.verificationTTL.String()); err != nil {
		s.logger.Error().Err(err).Str("user_id", u.ID.String()).Msg("verification email not sent")
	}
}

// Login checks credentials and issues an access token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsVerified {
		return nil, ErrEmailNotVerified
	}

	token, expiresAt, err := s.issuer.Issue(u.ID.String(), u.Role, u.Email)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

// VerifyEmail consumes a verification token. A token verifies at most once.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidVerificationToken
	}
	return s.users.ConsumeVerificationToken(ctx, token, s.now().UTC())
}

// ResendVerification issues a fresh token to an unverified account.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if u.IsVerified {
		return ErrAlreadyVerified
	}

	token, err := s.newToken()
	if err != nil {
		return err
	}
	if err := s.users.SetVerificationToken(ctx, u.ID, token, s.now().Add(s.verificationTTL).UTC()); err != nil {
		return err
	}
	s.sendVerification(ctx, u, token)
	return nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// Logout revokes the token described by claims until it would have expired.
func (s *Service) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" {
		return auth.ErrInvalidToken
	}
	if s.revocations == nil {
		return nil
	}
	expiresAt := s.now().Add(s.issuer.TTL())
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.revocations.Revoke(ctx, claims.ID, expiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// VerifyByEmail marks an account verified without a token. It backs the
// operator command for users whose verification mail never arrived.
func (s *Service) VerifyByEmail(ctx context.Context, email string) (*User, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u.IsVerified {
		return u, nil
	}
	if err := s.users.MarkVerified(ctx, u.ID); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, u.ID)
}
