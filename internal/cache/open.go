package cache

import (
	"fmt"
	"log/slog"
	"strings"
)

// OpenBackend builds the backend named by kind: "memory", "badger" or
// "redis".
func OpenBackend(kind, dir, redisURL string, logger *slog.Logger) (Backend, error) {
	switch strings.ToLower(kind) {
	case "", "badger":
		return OpenBadger(BadgerConfig{Path: dir, Logger: logger})
	case "memory":
		return NewMemoryBackend(), nil
	case "redis":
		return NewRedisBackend(redisURL)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", kind)
	}
}
