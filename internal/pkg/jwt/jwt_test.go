package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRoundTrip(t *testing.T) {
	svc := NewService("secret", time.Hour)
	id := uuid.New()

	token, exp, err := svc.GenerateAccessToken(id, "finance_admin", "fin@mwork.test")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiry in the past: %v", exp)
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.AdminID != id || claims.Role != "finance_admin" || claims.Email != "fin@mwork.test" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestExpiredToken(t *testing.T) {
	svc := NewService("secret", time.Minute)
	past := time.Now().Add(-time.Hour)
	svc.now = func() time.Time { return past }
	token, _, err := svc.GenerateAccessToken(uuid.New(), "support_admin", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	svc.now = time.Now
	if _, err := svc.ValidateAccessToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestWrongSecret(t *testing.T) {
	token, _, _ := NewService("one", time.Hour).GenerateAccessToken(uuid.New(), "moderator", "")
	if _, err := NewService("two", time.Hour).ValidateAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
