package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func issue(t *testing.T, userID any, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"token_type": "access",
		"user_id":    userID,
		"exp":        exp.Unix(),
		"jti":        "jti-1",
	})
	signed, err := token.SignedString([]byte("server-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestInspect(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	claims, err := Inspect(issue(t, 12, exp))
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if claims.UserID != "12" || claims.TokenType != "access" || claims.ID != "jti-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.ExpiresAt.Time.Equal(exp) {
		t.Fatalf("exp = %v, want %v", claims.ExpiresAt.Time, exp)
	}
}

func TestInspectRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "abc", "a.b.c"} {
		if _, err := Inspect(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Inspect(%q) error = %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestExpiresWithin(t *testing.T) {
	now := time.Now()
	soon := issue(t, 1, now.Add(10*time.Second))
	later := issue(t, 1, now.Add(10*time.Minute))

	if !ExpiresWithin(soon, 30*time.Second, now) {
		t.Error("token expiring in 10s should be within 30s")
	}
	if ExpiresWithin(later, 30*time.Second, now) {
		t.Error("token expiring in 10m should not be within 30s")
	}
	if ExpiresWithin("not-a-token", 30*time.Second, now) {
		t.Error("unreadable token should report false")
	}
}

func TestCheckRejectsExpired(t *testing.T) {
	now := time.Now()
	if _, err := Check(issue(t, 1, now.Add(-time.Minute)), now); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("Check() error = %v, want ErrExpiredToken", err)
	}
	if _, err := Check(issue(t, 1, now.Add(time.Minute)), now); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
}
