// Package cache provides the key/TTL stores used by the model caching overlay
// and the codec that serialises model values into them.
package cache

import (
	"context"
	"strings"
	"time"
)

// Store defines the interface for all cache backends
type Store interface {
	// Get retrieves a value; the bool reports a hit
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a TTL. A zero TTL uses the store default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value
	Delete(ctx context.Context, key string) error
}

// Config holds common configuration for cache backends
type Config struct {
	// DefaultTTL is the time-to-live used when Set is called with zero
	DefaultTTL time.Duration
	// Prefix is prepended to all cache keys
	Prefix string
	// CleanupInterval controls how often the memory store evicts expired items
	CleanupInterval time.Duration
}

// DefaultTTL is the lifetime of cached model values
const DefaultTTL = 24 * time.Hour

// DefaultConfig returns a default cache configuration
func DefaultConfig() Config {
	return Config{
		DefaultTTL:      DefaultTTL,
		Prefix:          "activerecord:",
		CleanupInterval: time.Minute,
	}
}

// ModelKey builds the cache key of a model record
func ModelKey(modelType, id string) string {
	return "models/" + strings.ToLower(modelType) + "/" + id
}
