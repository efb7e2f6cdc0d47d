package auth_test

import (
	"errors"
	"testing"
	"time"

	"trustlabel/internal/auth"
	"trustlabel/internal/queue"
)

const secret = "test-secret"

func TestSignAndVerifyRoundTrip(t *testing.T) {
	token, err := auth.Sign(secret, auth.Identity{UserID: "user-1", Role: queue.RoleAdmin}, 0)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	identity, err := auth.Verify(secret, token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if identity.UserID != "user-1" || identity.Role != queue.RoleAdmin {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := auth.Sign(secret, auth.Identity{UserID: "user-1", Role: queue.RoleBrand}, 0)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if _, err := auth.Verify("other-secret", token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	token, err := auth.Sign(secret, auth.Identity{UserID: "user-1", Role: queue.RoleBrand}, time.Nanosecond)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := auth.Verify(secret, token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	if _, err := auth.Verify(secret, "not.a.token"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := auth.Verify(secret, ""); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestVerifyUnknownRoleFallsBackToConsumer(t *testing.T) {
	token, err := auth.Sign(secret, auth.Identity{UserID: "user-1", Role: queue.Role("SUPERUSER")}, 0)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	identity, err := auth.Verify(secret, token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if identity.Role != queue.RoleConsumer {
		t.Fatalf("expected consumer fallback, got %s", identity.Role)
	}
}

func TestSignRequiresSecret(t *testing.T) {
	if _, err := auth.Sign("  ", auth.Identity{UserID: "user-1"}, 0); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestFromAuthorizationHeader(t *testing.T) {
	if token, ok := auth.FromAuthorizationHeader("Bearer abc123"); !ok || token != "abc123" {
		t.Fatalf("unexpected result %q, %v", token, ok)
	}
	if _, ok := auth.FromAuthorizationHeader("Basic abc123"); ok {
		t.Fatal("expected non-bearer header to be rejected")
	}
	if _, ok := auth.FromAuthorizationHeader("Bearer "); ok {
		t.Fatal("expected empty bearer token to be rejected")
	}
}
