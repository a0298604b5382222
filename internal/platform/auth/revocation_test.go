package auth

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRevoke_and_IsRevoked(t *testing.T) {
	store := NewTokenRevocationStore()
	defer store.Close()
	ctx := context.Background()

	jti := "token-abc-123"
	if err := store.Revoke(ctx, jti, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke() error: %v", err)
	}

	revoked, err := store.IsRevoked(ctx, jti)
	if err != nil {
		t.Fatalf("IsRevoked() error: %v", err)
	}
	if !revoked {
		t.Errorf("expected JTI %q to be revoked", jti)
	}
}

func TestIsRevoked_NotRevoked(t *testing.T) {
	store := NewTokenRevocationStore()
	defer store.Close()

	if revoked, _ := store.IsRevoked(context.Background(), "unknown-jti"); revoked {
		t.Error("expected unknown JTI to not be revoked")
	}
}

func TestCleanup_RemovesExpiredEntries(t *testing.T) {
	store := NewTokenRevocationStore()
	defer store.Close()
	ctx := context.Background()

	now := time.Now()
	store.Revoke(ctx, "expired", now.Add(-time.Minute))
	store.Revoke(ctx, "live", now.Add(time.Hour))

	store.cleanup(now)

	if revoked, _ := store.IsRevoked(ctx, "expired"); revoked {
		t.Error("expected expired entry to be cleaned up")
	}
	if revoked, _ := store.IsRevoked(ctx, "live"); !revoked {
		t.Error("expected live entry to remain")
	}
	if store.Count() != 1 {
		t.Errorf("expected count 1, got %d", store.Count())
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewTokenRevocationStore()
	defer store.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			store.Revoke(ctx, string(rune('a'+i%26))+time.Now().String(), time.Now().Add(time.Hour))
		}(i)
		go func() {
			defer wg.Done()
			store.IsRevoked(ctx, "whatever")
		}()
	}
	wg.Wait()

	if store.Count() == 0 {
		t.Error("expected entries after concurrent revokes")
	}
}

func TestClose_Idempotent(t *testing.T) {
	store := NewTokenRevocationStore()
	store.Close()
	store.Close()
}

func TestRevocationKey(t *testing.T) {
	if got := revocationKey("abc"); got != "revoked:abc" {
		t.Errorf("expected revoked:abc, got %q", got)
	}
}

func TestRedisRevocationStore_SkipsExpired(t *testing.T) {
	// A nil client would panic if used; an already expired token never reaches Redis.
	store := NewRedisRevocationStore(nil)
	if err := store.Revoke(context.Background(), "old", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("expected no error for expired token, got %v", err)
	}
}
