package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), "work")
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func refreshToken(t *testing.T, exp time.Time) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"token_type": "refresh",
		"exp":        exp.Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://"+s.Addr(), "")
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
	if store.key() != "session:default" {
		t.Errorf("unexpected key %q", store.key())
	}
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	if _, err := NewRedisStore("redis://"+addr, ""); err == nil {
		t.Fatal("expected a connection error")
	}
}

func TestSaveLoadClear(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoTokens) {
		t.Fatalf("Load on empty store: %v", err)
	}

	tokens := Tokens{Access: "a", Refresh: refreshToken(t, time.Now().Add(2*time.Hour))}
	if err := store.Save(ctx, tokens); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != tokens {
		t.Errorf("expected %+v, got %+v", tokens, got)
	}

	ttl := s.TTL("session:work")
	if ttl <= time.Hour || ttl > 2*time.Hour {
		t.Errorf("ttl = %v, want close to the refresh expiry", ttl)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoTokens) {
		t.Fatalf("expected ErrNoTokens after Clear, got %v", err)
	}
}

func TestOpaqueRefreshGetsDefaultTTL(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()

	if err := store.Save(context.Background(), Tokens{Access: "a", Refresh: "opaque"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if ttl := s.TTL("session:work"); ttl != 30*24*time.Hour {
		t.Fatalf("ttl = %v", ttl)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(Tokens{})
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoTokens) {
		t.Fatalf("expected ErrNoTokens, got %v", err)
	}
	_ = store.Save(ctx, Tokens{Access: "x", Refresh: "y"})
	got, err := store.Load(ctx)
	if err != nil || got.Access != "x" {
		t.Fatalf("Load = %+v, %v", got, err)
	}
	_ = store.Clear(ctx)
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoTokens) {
		t.Fatal("Clear did not drop tokens")
	}
}
