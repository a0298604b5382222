package account

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicrx/clinicrx/internal/platform/auth"
	"github.com/clinicrx/clinicrx/internal/platform/notification"
	"github.com/clinicrx/clinicrx/internal/platform/validation"
)

const testSecret = "account-test-secret-0123456789abcdef"

type testEnv struct {
	svc     *Service
	repo    *MemoryRepository
	sender  *notification.MockEmailSender
	revoked *auth.TokenRevocationStore
	issuer  *auth.TokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := NewMemoryRepository()
	sender := &notification.MockEmailSender{}
	revoked := auth.NewTokenRevocationStore()
	t.Cleanup(revoked.Close)
	issuer := auth.NewTokenIssuer([]byte(testSecret), time.Hour)

	svc := NewService(repo, ServiceConfig{
		Issuer:          issuer,
		Revocations:     revoked,
		Mailer:          notification.NewMailer(sender, notification.NewTemplateEngine(), "http://client.test"),
		VerificationTTL: 24 * time.Hour,
		Logger:          zerolog.Nop(),
	})
	return &testEnv{svc: svc, repo: repo, sender: sender, revoked: revoked, issuer: issuer}
}

func doctorRequest() *RegisterRequest {
	return &RegisterRequest{
		Name:           "Dr. Grey",
		Email:          "  Grey@Example.com ",
		Password:       "correct-horse",
		Specialization: "Neurology",
		LicenseNumber:  "LIC-1",
	}
}

func (env *testEnv) register(t *testing.T) *User {
	t.Helper()
	u, err := env.svc.Register(context.Background(), doctorRequest())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return u
}

func tokenOf(t *testing.T, repo *MemoryRepository, email string) string {
	t.Helper()
	u, err := repo.GetByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("lookup %s: %v", email, err)
	}
	if u.VerificationToken == nil {
		t.Fatal("expected a verification token")
	}
	return *u.VerificationToken
}

func TestRegister_CreatesUnverifiedDoctor(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t)

	if u.Email != "grey@example.com" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
	if u.Role != RoleDoctor {
		t.Errorf("expected default role doctor, got %q", u.Role)
	}
	if u.IsVerified {
		t.Error("new user should not be verified")
	}
	if u.PasswordHash == "" || u.PasswordHash == "correct-horse" {
		t.Error("password should be stored hashed")
	}
	tok := tokenOf(t, env.repo, u.Email)
	if len(tok) != 2*verificationTokenBytes {
		t.Errorf("expected %d hex chars, got %d", 2*verificationTokenBytes, len(tok))
	}
}

func TestRegister_SendsVerificationEmail(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t)

	calls := env.sender.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 email, got %d", len(calls))
	}
	if calls[0].To != u.Email {
		t.Errorf("expected mail to %s, got %s", u.Email, calls[0].To)
	}
	if !strings.Contains(calls[0].Body, tokenOf(t, env.repo, u.Email)) {
		t.Error("expected the verification token in the body")
	}
}

func TestRegister_EmailFailureDoesNotFail(t *testing.T) {
	env := newTestEnv(t)
	env.sender.ShouldFail = true
	env.sender.FailError = "smtp down"

	if _, err := env.svc.Register(context.Background(), doctorRequest()); err != nil {
		t.Fatalf("registration should survive mail failure: %v", err)
	}
	if _, err := env.repo.GetByEmail(context.Background(), "grey@example.com"); err != nil {
		t.Fatalf("user should be persisted: %v", err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)

	req := doctorRequest()
	req.Email = "GREY@example.com"
	_, err := env.svc.Register(context.Background(), req)
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegister_DoctorNeedsLicense(t *testing.T) {
	env := newTestEnv(t)
	req := doctorRequest()
	req.LicenseNumber = " "

	_, err := env.svc.Register(context.Background(), req)
	ve, ok := validation.As(err)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != "licenseNumber" {
		t.Errorf("expected licenseNumber, got %s", ve.Field)
	}
}

func TestRegister_AdminRoleRejected(t *testing.T) {
	env := newTestEnv(t)
	req := &RegisterRequest{Name: "Root", Email: "root@example.com", Password: "long-password", Role: RoleAdmin}

	_, err := env.svc.Register(context.Background(), req)
	ve, ok := validation.As(err)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != "role" {
		t.Errorf("expected role, got %s", ve.Field)
	}
	if _, err := env.repo.GetByEmail(context.Background(), "root@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected no account to be stored, got %v", err)
	}
}

func TestCreateAdmin(t *testing.T) {
	env := newTestEnv(t)
	req := &RegisterRequest{Name: "Root", Email: "Root@Example.com", Password: "long-password"}

	u, err := env.svc.CreateAdmin(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != RoleAdmin || !u.IsVerified || u.VerificationToken != nil {
		t.Errorf("unexpected admin %+v", u)
	}

	res, err := env.svc.Login(context.Background(), &LoginRequest{Email: "root@example.com", Password: "long-password"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.User.Role != RoleAdmin {
		t.Errorf("expected admin login, got %s", res.User.Role)
	}

	if _, err := env.svc.CreateAdmin(context.Background(), &RegisterRequest{Name: "x", Email: "x@example.com", Password: "short"}); err == nil {
		t.Error("expected short password to be rejected")
	}
}

func TestLogin_UnverifiedRejected(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)

	_, err := env.svc.Login(context.Background(), &LoginRequest{Email: "grey@example.com", Password: "correct-horse"})
	if !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified, got %v", err)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)

	cases := []LoginRequest{
		{Email: "grey@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "correct-horse"},
	}
	for _, req := range cases {
		req := req
		_, err := env.svc.Login(context.Background(), &req)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("%s: expected ErrInvalidCredentials, got %v", req.Email, err)
		}
	}
}

func TestVerifyThenLogin(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t)
	tok := tokenOf(t, env.repo, u.Email)

	verified, err := env.svc.VerifyEmail(context.Background(), tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !verified.IsVerified || verified.VerificationToken != nil || verified.VerificationTokenExpires != nil {
		t.Error("expected verified user with cleared token fields")
	}

	res, err := env.svc.Login(context.Background(), &LoginRequest{Email: "GREY@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := env.issuer.Parse(res.Token)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.Subject != u.ID.String() || claims.Role != RoleDoctor || claims.Email != u.Email {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestVerifyEmail_OneTime(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t)
	tok := tokenOf(t, env.repo, u.Email)

	if _, err := env.svc.VerifyEmail(context.Background(), tok); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	_, err := env.svc.VerifyEmail(context.Background(), tok)
	if !errors.Is(err, ErrInvalidVerificationToken) {
		t.Fatalf("expected second use to fail, got %v", err)
	}
}

func TestVerifyEmail_Expired(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t)
	tok := tokenOf(t, env.repo, u.Email)

	env.svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err := env.svc.VerifyEmail(context.Background(), tok)
	if !errors.Is(err, ErrInvalidVerificationToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestVerifyEmail_Unknown(t *testing.T) {
	env := newTestEnv(t)
	for _, tok := range []string{"", "deadbeef"} {
		if _, err := env.svc.VerifyEmail(context.Background(), tok); !errors.Is(err, ErrInvalidVerificationToken) {
			t.Errorf("token %q: expected ErrInvalidVerificationToken, got %v", tok, err)
		}
	}
}

func TestResendVerification(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t)
	old := tokenOf(t, env.repo, u.Email)

	if err := env.svc.ResendVerification(context.Background(), "grey@example.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	fresh := tokenOf(t, env.repo, u.Email)
	if fresh == old {
		t.Error("expected a new token")
	}
	if len(env.sender.Calls()) != 2 {
		t.Errorf("expected 2 emails, got %d", len(env.sender.Calls()))
	}
	if _, err := env.svc.VerifyEmail(context.Background(), old); !errors.Is(err, ErrInvalidVerificationToken) {
		t.Errorf("old token should no longer verify, got %v", err)
	}
}

func TestResendVerification_Errors(t *testing.T) {
	env := newTestEnv(t)
	if err := env.svc.ResendVerification(context.Background(), "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}

	u := env.register(t)
	if _, err := env.svc.VerifyEmail(context.Background(), tokenOf(t, env.repo, u.Email)); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := env.svc.ResendVerification(context.Background(), u.Email); !errors.Is(err, ErrAlreadyVerified) {
		t.Errorf("expected ErrAlreadyVerified, got %v", err)
	}
}

func TestLogout_RevokesJTI(t *testing.T) {
	env := newTestEnv(t)
	tok, _, err := env.issuer.Issue("u-1", RoleDoctor, "a@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, _ := env.issuer.Parse(tok)

	if err := env.svc.Logout(context.Background(), claims); err != nil {
		t.Fatalf("logout: %v", err)
	}
	revoked, _ := env.revoked.IsRevoked(context.Background(), claims.ID)
	if !revoked {
		t.Error("expected jti to be revoked")
	}
	if err := env.svc.Logout(context.Background(), nil); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for missing claims, got %v", err)
	}
}

func TestVerifyByEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t)

	u, err := env.svc.VerifyByEmail(context.Background(), "Grey@example.com")
	if err != nil {
		t.Fatalf("verify by email: %v", err)
	}
	if !u.IsVerified || u.VerificationToken != nil {
		t.Error("expected verified user with cleared token")
	}
	if _, err := env.svc.VerifyByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
