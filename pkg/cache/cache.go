// Package cache provides byte-level caching for feature queries.
//
// Queries against the feature database are the slowest part of a run and
// their result only changes when the underlying Cassini layers do, so the
// node lists they return are cached between invocations. Three backends are
// available:
//
//   - [FileCache] stores entries as JSON files under a directory (CLI default)
//   - [RedisCache] shares entries through a Redis server
//   - [NullCache] never stores anything (caching disabled)
//
// Keys are produced by a [Keyer] so that every backend agrees on them.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-level key/value store with optional expiry.
type Cache interface {
	// Get returns the value stored under key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources.
	Close() error
}

// Clearer is implemented by caches that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Default time-to-live values.
const (
	FeatureTTL = 7 * 24 * time.Hour
	CellTTL    = 30 * 24 * time.Hour
)
