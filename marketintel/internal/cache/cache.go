// CLAUDE:SUMMARY Cache client contract shared by the fetcher and price alerts, with Redis and in-process implementations.
// Package cache provides the key/value cache injected into the fetcher and the
// alert checker. Concurrent writers to the same key resolve last-write-wins.
package cache

import (
	"context"
	"time"
)

// Cache is a string key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value and true, or "" and false on a miss.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key. ttl <= 0 keeps the entry until overwritten.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}
