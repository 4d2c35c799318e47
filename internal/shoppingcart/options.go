package shoppingcart

import (
	"context"
	"time"

	"wpcom-shopping-cart/internal/model"
)

// CartClient is the REST collaborator a session syncs against.
type CartClient interface {
	GetCart(ctx context.Context, key model.CartKey) (*model.ResponseCart, error)
	SetCart(ctx context.Context, key model.CartKey, cart *model.RequestCart) (*model.ResponseCart, error)
}

// GetCartFunc fetches a cart. Used to override CartClient.GetCart in tests.
type GetCartFunc func(ctx context.Context, key model.CartKey) (*model.ResponseCart, error)

// Environment reports host conditions that gate background refetches.
type Environment interface {
	Online() bool
}

// OnlineFunc adapts a function to Environment.
type OnlineFunc func() bool

// Online implements Environment.
func (f OnlineFunc) Online() bool { return f() }

type alwaysOnline struct{}

func (alwaysOnline) Online() bool { return true }

const (
	// DefaultFreshnessThreshold is the minimum cart age before a focus refetch.
	DefaultFreshnessThreshold = 5 * time.Second

	// DefaultRequestTimeout bounds a single cart round trip.
	DefaultRequestTimeout = 30 * time.Second
)

// Options configures a Manager. Start from DefaultOptions; zero durations
// and nil hooks fall back to defaults.
type Options struct {
	// DisableRefetchOnWindowFocus turns off background reloads on
	// WindowFocused. Refetching on focus is on by default.
	DisableRefetchOnWindowFocus bool

	// FreshnessThreshold is compared against the cart's generated timestamp.
	FreshnessThreshold time.Duration

	RequestTimeout time.Duration

	// GetCartOverride replaces CartClient.GetCart when set.
	GetCartOverride GetCartFunc

	Environment Environment

	Clock func() time.Time
}

// DefaultOptions returns the default manager configuration.
func DefaultOptions() Options {
	return Options{
		FreshnessThreshold: DefaultFreshnessThreshold,
		RequestTimeout:     DefaultRequestTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.FreshnessThreshold <= 0 {
		o.FreshnessThreshold = DefaultFreshnessThreshold
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.Environment == nil {
		o.Environment = alwaysOnline{}
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}
