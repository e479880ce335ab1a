// Package cache stores sampled layer arrays between runs.
//
// Sampling a dataset is the expensive step of building a composition, and the
// same (dataset, selection, field) triple is often requested again: when a
// description is re-run, when a scene gains a layer, or when a server handles
// repeated requests. The [Cache] interface is a plain byte store with TTLs;
// [Keyer] derives stable keys from what was sampled.
//
// Implementations:
//   - [NullCache]: never stores anything (--no-cache)
//   - [FileCache]: JSON entry files under the user cache directory
//   - [RedisCache]: a shared Redis instance for the HTTP server
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with optional expiry.
type Cache interface {
	// Get returns the stored value and whether it was found. A missing or
	// expired entry is a miss, not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any held connections.
	Close() error
}

// Default TTLs per entry kind.
const (
	// TTLSample covers sampled arrays. Dataset keys include a content hash,
	// so a changed dataset never reads a stale entry.
	TTLSample = 7 * 24 * time.Hour

	// TTLComposition covers placement exports served over HTTP.
	TTLComposition = 24 * time.Hour
)
