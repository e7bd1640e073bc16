package cache

import (
	"context"
	"errors"
	"time"
)

// Store is one backing tier behind the layer: the shared tier honors TTLs
// natively, the durable tier persists raw bytes until deleted.
// Implementations must be thread-safe.
type Store interface {
	// Get returns the value for key, or found=false if absent or expired.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key beginning with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

var (
	// ErrSharedStoreRequired is returned when a shared-tier store is not provided.
	ErrSharedStoreRequired = errors.New("shared cache store required")

	// ErrDurableStoreRequired is returned when a durable-tier store is not provided.
	ErrDurableStoreRequired = errors.New("durable cache store required")
)
