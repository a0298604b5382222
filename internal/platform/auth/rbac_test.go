package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func contextWithRole(role string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}, Role: role}
	req = req.WithContext(WithClaims(req.Context(), claims))
	return e.NewContext(req, httptest.NewRecorder())
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRequireRole_Allowed(t *testing.T) {
	c := contextWithRole(RoleDoctor)
	if err := RequireRole(RoleDoctor)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c := contextWithRole(RoleDoctor)
	err := RequireRole(RoleAdmin)(okHandler)(c)
	if err == nil {
		t.Fatal("expected forbidden")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	c := contextWithRole(RoleAdmin)
	if err := RequireRole(RoleDoctor)(okHandler)(c); err != nil {
		t.Fatalf("expected admin to pass: %v", err)
	}
}

func TestRequireRole_NoIdentity(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if err := RequireRole(RoleDoctor)(okHandler)(c); err == nil {
		t.Fatal("expected forbidden without identity")
	}
}
