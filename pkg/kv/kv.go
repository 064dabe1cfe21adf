// Package kv provides the key-value storage area the portal persists into.
package kv

import (
	"context"
	"errors"
	"fmt"
)

// ErrQuotaExceeded is returned when a write would exceed the storage quota.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Storage is a flat string key-value area.
type Storage interface {
	// Get returns the value under key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// checkQuota rejects an entry larger than the remaining quota bytes.
func checkQuota(key, value string, quota int64) error {
	if size := int64(len(key) + len(value)); size > quota {
		return fmt.Errorf("set %q (%d bytes, quota %d): %w", key, size, quota, ErrQuotaExceeded)
	}
	return nil
}
