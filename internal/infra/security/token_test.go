package security

import (
	"errors"
	"testing"
	"time"

	"autoparc/internal/app/services/auth"
)

func TestJWTIssuerRoundTrip(t *testing.T) {
	issuer, err := NewJWTIssuer("0123456789abcdef-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token, err := issuer.Issue("user-1", "buyer", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	subject, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject != "user-1" {
		t.Fatalf("expected subject user-1, got %q", subject)
	}
}

func TestJWTIssuerRejectsExpiredAndForeignTokens(t *testing.T) {
	issuer, _ := NewJWTIssuer("0123456789abcdef-secret")
	expired, err := issuer.Issue("user-1", "buyer", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Verify(expired); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	other, _ := NewJWTIssuer("another-secret-of-16-bytes")
	foreign, _ := other.Issue("user-1", "buyer", time.Now().Add(time.Hour))
	if _, err := issuer.Verify(foreign); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign token, got %v", err)
	}
}

func TestJWTIssuerTokensAreUnique(t *testing.T) {
	issuer, _ := NewJWTIssuer("0123456789abcdef-secret")
	exp := time.Now().Add(time.Hour)
	a, _ := issuer.Issue("user-1", "buyer", exp)
	b, _ := issuer.Issue("user-1", "buyer", exp)
	if a == b {
		t.Fatalf("expected distinct tokens")
	}
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: 4}
	hash, err := h.Hash("secret-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := h.Compare(hash, "secret-password"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := h.Compare(hash, "wrong"); err == nil {
		t.Fatalf("expected mismatch error")
	}
}
