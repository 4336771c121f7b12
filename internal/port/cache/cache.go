// Package cache defines the port interface for the forward message payload
// cache.
package cache

import (
	"context"
	"time"
)

// Cache is the key-value store backing message deduplication. Payloads are
// already msgpack-encoded; keys are content hashes.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
