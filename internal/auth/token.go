// Package auth reads the claims of access and refresh tokens issued by the
// document service. Signatures are checked by the service, never here.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"notespace/client/internal/content"
)

type Claims struct {
	UserID    content.ID `json:"user_id"`
	TokenType string     `json:"token_type"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

var parser = jwt.NewParser()

// Inspect decodes token without verifying its signature.
func Inspect(token string) (Claims, error) {
	var claims Claims
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// ExpiresAt returns the expiry of token.
func ExpiresAt(token string) (time.Time, error) {
	claims, err := Inspect(token)
	if err != nil {
		return time.Time{}, err
	}
	return claims.ExpiresAt.Time, nil
}

// ExpiresWithin reports whether token expires before now+window. Tokens that
// cannot be read report false; the service answers 401 for those.
func ExpiresWithin(token string, window time.Duration, now time.Time) bool {
	exp, err := ExpiresAt(token)
	if err != nil {
		return false
	}
	return !now.Add(window).Before(exp)
}

// Check returns the claims of a token that is still valid at now.
func Check(token string, now time.Time) (Claims, error) {
	claims, err := Inspect(token)
	if err != nil {
		return Claims{}, err
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return Claims{}, ErrExpiredToken
	}
	return claims, nil
}
