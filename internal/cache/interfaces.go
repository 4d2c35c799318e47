package cache

import (
	"context"
	"time"

	"wpcom-shopping-cart/internal/model"
)

// CartCache holds server-computed cart snapshots keyed by cart key.
// The memory implementation suits development and single-instance
// deployments; Redis lets several cartd instances share snapshots.
type CartCache interface {
	// Get returns a cached cart. Returns ErrCacheMiss if not found.
	Get(ctx context.Context, key model.CartKey) (*model.ResponseCart, error)

	// Set stores a cart under its CartKey with the given TTL.
	Set(ctx context.Context, cart *model.ResponseCart, ttl time.Duration) error

	// Delete removes a cart.
	Delete(ctx context.Context, keys ...model.CartKey) error

	// GetOrLoad returns a cached cart or loads and stores it if missing.
	GetOrLoad(ctx context.Context, key model.CartKey, ttl time.Duration, fn func() (*model.ResponseCart, error)) (*model.ResponseCart, error)

	// Stats reports the cache backend and counters.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// Stats describes cache usage for the admin endpoint.
type Stats struct {
	Type    string `json:"type"`
	Entries int64  `json:"entries"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
}

// Common cache errors
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"
)
