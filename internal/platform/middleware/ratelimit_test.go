package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func rateLimitedRequest(t *testing.T, mw echo.MiddlewareFunc, ip string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := mw(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })(c)
	return rec, err
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 5})

	for i := 0; i < 5; i++ {
		if _, err := rateLimitedRequest(t, mw, "10.0.0.1"); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})

	rateLimitedRequest(t, mw, "10.0.0.2")
	rateLimitedRequest(t, mw, "10.0.0.2")
	rec, err := rateLimitedRequest(t, mw, "10.0.0.2")

	if err == nil {
		t.Fatal("expected rate limit error")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After 1, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_PerKeyIsolation(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})

	if _, err := rateLimitedRequest(t, mw, "10.0.0.3"); err != nil {
		t.Fatalf("first client: %v", err)
	}
	if _, err := rateLimitedRequest(t, mw, "10.0.0.4"); err != nil {
		t.Fatalf("second client should have its own bucket: %v", err)
	}
	if _, err := rateLimitedRequest(t, mw, "10.0.0.3"); err == nil {
		t.Fatal("expected first client to be limited")
	}
}

func TestRateLimiterStore_SweepsIdleVisitors(t *testing.T) {
	store := newRateLimiterStore(DefaultRateLimitConfig())
	start := time.Now()

	store.limiter("idle", start)
	store.limiter("active", start.Add(visitorTTL))

	store.limiter("active", start.Add(visitorTTL+2*time.Minute))

	if _, ok := store.visitors["idle"]; ok {
		t.Error("expected idle visitor to be swept")
	}
	if _, ok := store.visitors["active"]; !ok {
		t.Error("expected active visitor to remain")
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		rps  float64
		want int
	}{
		{0, 1},
		{20, 1},
		{0.5, 2},
		{0.1, 10},
	}
	for _, tt := range tests {
		if got := retryAfterSeconds(tt.rps); got != tt.want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", tt.rps, got, tt.want)
		}
	}
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 20 || cfg.BurstSize != 40 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestWindowKey(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	a := windowKey("rl:", "10.0.0.1", now, time.Minute)
	b := windowKey("rl:", "10.0.0.1", now.Add(20*time.Second), time.Minute)
	c := windowKey("rl:", "10.0.0.1", now.Add(40*time.Second), time.Minute)

	if a != b {
		t.Errorf("expected same window key, got %q and %q", a, b)
	}
	if a == c {
		t.Errorf("expected next window to get a new key, got %q", c)
	}
	if a[:12] != "rl:10.0.0.1:" {
		t.Errorf("unexpected key shape %q", a)
	}
}
