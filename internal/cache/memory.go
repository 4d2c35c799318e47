package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"wpcom-shopping-cart/internal/model"
)

// cacheEntry is an encoded cart with its expiration.
type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e *cacheEntry) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryCache is an in-memory implementation of CartCache.
// Carts are stored encoded so callers never share slices with the cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[model.CartKey]*cacheEntry
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewMemoryCache creates a new in-memory cache with automatic cleanup.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		entries:         make(map[model.CartKey]*cacheEntry),
		now:             time.Now,
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go c.cleanup()

	return c
}

// Get returns a cached cart.
func (c *MemoryCache) Get(ctx context.Context, key model.CartKey) (*model.ResponseCart, error) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists || entry.isExpired(c.now()) {
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}
	c.hits.Add(1)

	var cart model.ResponseCart
	if err := json.Unmarshal(entry.value, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cached cart: %w", err)
	}
	return &cart, nil
}

// Set stores a cart with the given TTL.
func (c *MemoryCache) Set(ctx context.Context, cart *model.ResponseCart, ttl time.Duration) error {
	value, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cart.CartKey] = &cacheEntry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Delete removes carts by key.
func (c *MemoryCache) Delete(ctx context.Context, keys ...model.CartKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

// GetOrLoad returns a cached cart or loads and stores it if missing.
func (c *MemoryCache) GetOrLoad(ctx context.Context, key model.CartKey, ttl time.Duration, fn func() (*model.ResponseCart, error)) (*model.ResponseCart, error) {
	if cart, err := c.Get(ctx, key); err == nil {
		return cart, nil
	}

	cart, err := fn()
	if err != nil {
		return nil, err
	}

	if err := c.Set(ctx, cart, ttl); err != nil {
		return nil, err
	}

	return cart, nil
}

// Stats reports live entries and hit counters.
func (c *MemoryCache) Stats(ctx context.Context) (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	var live int64
	for _, entry := range c.entries {
		if !entry.isExpired(now) {
			live++
		}
	}
	return Stats{
		Type:    "memory",
		Entries: live,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Close stops the background cleanup goroutine.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopCleanup)
	})
	return nil
}

// cleanup periodically removes expired entries.
func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *MemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if entry.isExpired(now) {
			delete(c.entries, key)
		}
	}
}

var _ CartCache = (*MemoryCache)(nil)
