package repository

import (
	"context"
	"time"

	"wpcom-shopping-cart/internal/model"
)

// CartRepository persists server-computed carts.
type CartRepository interface {
	// Get returns the stored cart, or nil if the key has never been saved.
	Get(ctx context.Context, key model.CartKey) (*model.ResponseCart, error)

	// Save inserts or replaces the cart stored under cart.CartKey.
	Save(ctx context.Context, cart *model.ResponseCart) error

	// DeleteInactive removes up to limit carts last saved before the cutoff
	// and returns their keys.
	DeleteInactive(ctx context.Context, before time.Time, limit int) ([]model.CartKey, error)

	// GetStats returns statistics about the cart store.
	GetStats(ctx context.Context) (*CartStats, error)

	// Close closes the repository connection.
	Close() error
}

// CartStats summarises the cart store for the admin endpoint.
type CartStats struct {
	Type         string `json:"type" db:"-"`
	Total        int64  `json:"total" db:"total"`
	WithProducts int64  `json:"with_products" db:"with_products"`
	OldestUnix   int64  `json:"oldest_updated_at" db:"oldest"`
	NewestUnix   int64  `json:"newest_updated_at" db:"newest"`
}
