package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService(TokenConfig{Secret: "unit-test-signing-secret"})
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	return svc
}

func testCollaborator() Collaborator {
	return Collaborator{
		ID:             "collab-1",
		EmployeeNumber: "C001",
		Email:          "alice@example.com",
		Role:           RoleCommercial,
	}
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc := newTestTokenService(t)

	token, err := svc.Issue(testCollaborator())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "collab-1" {
		t.Errorf("expected user id collab-1, got %q", claims.UserID)
	}
	if claims.Role != RoleCommercial {
		t.Errorf("expected role %s, got %s", RoleCommercial, claims.Role)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("expected email to survive the round trip, got %q", claims.Email)
	}
	if !claims.ExpiresAt.After(claims.IssuedAt) {
		t.Errorf("expected expiry after issuance, got iat=%v exp=%v", claims.IssuedAt, claims.ExpiresAt)
	}
}

func TestTokenService_Expired(t *testing.T) {
	svc := newTestTokenService(t)

	issuedAt := time.Now()
	svc.WithClock(func() time.Time { return issuedAt })
	token, err := svc.Issue(testCollaborator())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Past the 60 minute default TTL; expiry must never surface as
	// ErrTokenInvalid.
	svc.WithClock(func() time.Time { return issuedAt.Add(61 * time.Minute) })
	if _, err := svc.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenService_Tampered(t *testing.T) {
	svc := newTestTokenService(t)

	token, err := svc.Issue(testCollaborator())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected compact three-part token, got %d parts", len(parts))
	}
	sig := []byte(parts[2])
	if sig[len(sig)-1] == 'A' {
		sig[len(sig)-1] = 'B'
	} else {
		sig[len(sig)-1] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := svc.Validate(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for tampered signature, got %v", err)
	}

	if _, err := svc.Validate("not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage input, got %v", err)
	}
}

func TestTokenService_WrongSecret(t *testing.T) {
	svc := newTestTokenService(t)
	token, err := svc.Issue(testCollaborator())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other, err := NewTokenService(TokenConfig{Secret: "a-different-secret"})
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	if _, err := other.Validate(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid across secrets, got %v", err)
	}
}

func TestTokenService_Authorize(t *testing.T) {
	svc := newTestTokenService(t)
	token, err := svc.Issue(testCollaborator())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	ok, err := svc.Authorize(token, RoleCommercial)
	if err != nil || !ok {
		t.Fatalf("expected commercial token to pass commercial check, got ok=%t err=%v", ok, err)
	}

	ok, err = svc.Authorize(token, RoleGestion, RoleSupport)
	if err != nil {
		t.Fatalf("role mismatch must not be an error, got %v", err)
	}
	if ok {
		t.Fatal("expected commercial token to fail gestion/support check")
	}

	if _, err := svc.Authorize("garbage", RoleCommercial); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected validation error to propagate, got %v", err)
	}
}

func TestNewTokenService_Config(t *testing.T) {
	if _, err := NewTokenService(TokenConfig{}); err == nil {
		t.Fatal("expected empty secret to be rejected")
	}

	if _, err := NewTokenService(TokenConfig{Secret: "changeme", Production: true}); err == nil {
		t.Fatal("expected placeholder secret to be rejected in production")
	}

	svc, err := NewTokenService(TokenConfig{Secret: "changeme"})
	if err != nil {
		t.Fatalf("placeholder secret outside production should warn, not fail: %v", err)
	}
	if len(svc.Warnings()) == 0 {
		t.Fatal("expected a configuration warning for the placeholder secret")
	}

	if _, err := NewTokenService(TokenConfig{Secret: "ok-secret", Algorithm: "RS256"}); err == nil {
		t.Fatal("expected non-HMAC algorithm to be rejected")
	}

	if _, err := NewTokenService(TokenConfig{Secret: "ok-secret", ExpirationMinutes: -5}); err == nil {
		t.Fatal("expected negative expiration to be rejected")
	}
}
