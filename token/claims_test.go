package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mintToken(t *testing.T, claims Claims) string {
	t.Helper()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return raw
}

func TestPeekReadsClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := mintToken(t, Claims{
		Role:  "consultant",
		Email: "agent@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	claims, err := Peek(raw)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if claims.UserID() != "user-42" {
		t.Fatalf("UserID = %q, want user-42", claims.UserID())
	}
	if claims.Role != "consultant" {
		t.Fatalf("Role = %q, want consultant", claims.Role)
	}
	if claims.Email != "agent@example.com" {
		t.Fatalf("Email = %q", claims.Email)
	}
	if !claims.Expiry().Equal(exp) {
		t.Fatalf("Expiry = %v, want %v", claims.Expiry(), exp)
	}
}

func TestPeekIgnoresSignature(t *testing.T) {
	raw := mintToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-42"},
	})

	// Corrupt the signature segment. Peek must still decode the claims.
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d segments", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + ".AAAA"

	claims, err := Peek(tampered)
	if err != nil {
		t.Fatalf("Peek on tampered signature: %v", err)
	}
	if claims.UserID() != "user-42" {
		t.Fatalf("UserID = %q, want user-42", claims.UserID())
	}
}

func TestPeekRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not-a-token", "a.b", "!!.!!.!!"} {
		if _, err := Peek(raw); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("Peek(%q) error = %v, want ErrTokenMalformed", raw, err)
		}
	}
}

func TestExpiryHelpersWithoutExpClaim(t *testing.T) {
	raw := mintToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-42"},
	})

	claims, err := Peek(raw)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if !claims.Expiry().IsZero() {
		t.Fatalf("Expiry = %v, want zero", claims.Expiry())
	}
	if d := claims.ExpiresIn(time.Now()); d != 0 {
		t.Fatalf("ExpiresIn = %v, want 0", d)
	}
}

func TestExpiresInNeverNegative(t *testing.T) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		},
	}
	if d := claims.ExpiresIn(now); d != 0 {
		t.Fatalf("ExpiresIn on expired token = %v, want 0", d)
	}

	var nilClaims *Claims
	if nilClaims.UserID() != "" {
		t.Fatal("nil claims returned a user ID")
	}
	if d := nilClaims.ExpiresIn(now); d != 0 {
		t.Fatalf("nil claims ExpiresIn = %v, want 0", d)
	}
}
