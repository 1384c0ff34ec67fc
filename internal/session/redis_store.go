// Package session persists the token pair of the signed-in user.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"notespace/client/internal/auth"
)

var ErrNoTokens = errors.New("no stored tokens")

// Tokens is the access/refresh pair returned by the token endpoints.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Store keeps one token pair. Implementations are safe for concurrent use.
type Store interface {
	Load(ctx context.Context) (Tokens, error)
	Save(ctx context.Context, tokens Tokens) error
	Clear(ctx context.Context) error
}

// MemoryStore holds tokens for the life of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens Tokens
}

func NewMemoryStore(initial Tokens) *MemoryStore {
	return &MemoryStore{tokens: initial}
}

func (m *MemoryStore) Load(_ context.Context) (Tokens, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tokens.Access == "" && m.tokens.Refresh == "" {
		return Tokens{}, ErrNoTokens
	}
	return m.tokens, nil
}

func (m *MemoryStore) Save(_ context.Context, tokens Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = tokens
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = Tokens{}
	return nil
}

// RedisStore keeps the token pair in redis under a per-profile key so that
// several CLI invocations share one sign-in.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	profile string
}

// NewRedisStore creates a new Redis-backed token store
func NewRedisStore(redisURL, profile string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, profile), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, profile string) *RedisStore {
	if profile == "" {
		profile = "default"
	}
	return &RedisStore{
		client:  client,
		prefix:  "session:",
		profile: profile,
	}
}

func (s *RedisStore) key() string {
	return s.prefix + s.profile
}

// Save stores the pair until the refresh token expires.
func (s *RedisStore) Save(ctx context.Context, tokens Tokens) error {
	jsonData, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}

	ttl := 30 * 24 * time.Hour
	if exp, err := auth.ExpiresAt(tokens.Refresh); err == nil {
		if until := time.Until(exp); until > 0 {
			ttl = until
		}
	}

	if err := s.client.Set(ctx, s.key(), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (Tokens, error) {
	jsonData, err := s.client.Get(ctx, s.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Tokens{}, ErrNoTokens
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("load tokens: %w", err)
	}

	var tokens Tokens
	if err := json.Unmarshal(jsonData, &tokens); err != nil {
		return Tokens{}, fmt.Errorf("unmarshal tokens: %w", err)
	}
	return tokens, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
