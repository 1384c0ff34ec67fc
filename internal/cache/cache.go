// Package cache keeps the most recent content snapshot of each document on
// the local side so unsaved edits survive a reload or a failed write.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"notespace/client/internal/content"
	"notespace/client/internal/metrics"
)

// DefaultLifetime is how long a cached snapshot stays usable.
const DefaultLifetime = 24 * time.Hour

const keyPrefix = "document_cache_"

var ErrNotFound = errors.New("cache entry not found")

// Backend stores opaque values under string keys. Implementations must be
// safe for concurrent use; concurrent writers to one key race and the last
// write wins.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Entry is the persisted form of a snapshot. Timestamp is in milliseconds
// since the epoch.
type Entry struct {
	Content   json.RawMessage `json:"content"`
	Timestamp int64           `json:"timestamp"`
}

func (e Entry) StoredAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

type Option func(*Cache)

// WithLifetime overrides DefaultLifetime.
func WithLifetime(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.lifetime = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// Cache is the local snapshot cache. A nil *Cache caches nothing.
type Cache struct {
	backend  Backend
	lifetime time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		backend:  backend,
		lifetime: DefaultLifetime,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func Key(docID content.ID) string {
	return keyPrefix + docID.String()
}

// Get returns the cached entry for docID. Entries older than the lifetime
// are deleted and reported as missing.
func (c *Cache) Get(ctx context.Context, docID content.ID) (Entry, bool, error) {
	if c == nil {
		return Entry{}, false, nil
	}
	raw, err := c.backend.Load(ctx, Key(docID))
	if errors.Is(err, ErrNotFound) {
		c.metrics.CacheOp("get", true)
		return Entry{}, false, nil
	}
	if err != nil {
		c.metrics.CacheOp("get", false)
		return Entry{}, false, fmt.Errorf("load cache entry %s: %w", docID, err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.metrics.CacheOp("get", false)
		c.logger.Warn("dropping unreadable cache entry", "document", docID, "error", err)
		_ = c.backend.Remove(ctx, Key(docID))
		return Entry{}, false, nil
	}
	if c.now().Sub(entry.StoredAt()) >= c.lifetime {
		c.metrics.CacheOp("expire", true)
		if err := c.backend.Remove(ctx, Key(docID)); err != nil {
			c.logger.Warn("remove expired cache entry", "document", docID, "error", err)
		}
		return Entry{}, false, nil
	}
	c.metrics.CacheOp("get", true)
	return entry, true, nil
}

// Put stores snapshot as the newest cached content of docID.
func (c *Cache) Put(ctx context.Context, docID content.ID, snapshot content.Content) error {
	if c == nil {
		return nil
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	raw, err := json.Marshal(Entry{Content: body, Timestamp: c.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.backend.Store(ctx, Key(docID), raw, c.lifetime); err != nil {
		c.metrics.CacheOp("put", false)
		return fmt.Errorf("store cache entry %s: %w", docID, err)
	}
	c.metrics.CacheOp("put", true)
	return nil
}

func (c *Cache) Delete(ctx context.Context, docID content.ID) error {
	if c == nil {
		return nil
	}
	if err := c.backend.Remove(ctx, Key(docID)); err != nil {
		c.metrics.CacheOp("delete", false)
		return fmt.Errorf("remove cache entry %s: %w", docID, err)
	}
	c.metrics.CacheOp("delete", true)
	return nil
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.backend.Close()
}
