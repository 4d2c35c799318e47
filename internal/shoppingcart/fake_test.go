package shoppingcart_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"wpcom-shopping-cart/internal/model"
	"wpcom-shopping-cart/internal/shoppingcart"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeCartAPI is an in-memory cart endpoint. Calls are counted before they
// block on the gate, so a blocked request still shows up in the counters.
type fakeCartAPI struct {
	clock *fakeClock

	mu       sync.Mutex
	carts    map[model.CartKey]*model.ResponseCart
	coupons  map[string]bool
	nextUUID int
	getCalls int
	setCalls int
	requests []*model.RequestCart
	gate     chan struct{}
	failWith error
}

func newFakeCartAPI(clock *fakeClock) *fakeCartAPI {
	return &fakeCartAPI{
		clock:   clock,
		carts:   make(map[model.CartKey]*model.ResponseCart),
		coupons: map[string]bool{"ABCD": true},
	}
}

// block holds every request until release is called.
func (f *fakeCartAPI) block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
}

func (f *fakeCartAPI) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

func (f *fakeCartAPI) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

func (f *fakeCartAPI) calls() (get, set int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls, f.setCalls
}

func (f *fakeCartAPI) lastRequest() *model.RequestCart {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeCartAPI) wait(ctx context.Context) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeCartAPI) GetCart(ctx context.Context, key model.CartKey) (*model.ResponseCart, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()

	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	cart, ok := f.carts[key]
	if !ok {
		cart = model.EmptyResponseCart(key)
	}
	out := *cart
	out.GeneratedAtTimestamp = f.clock.Now().Unix()
	return &out, nil
}

func (f *fakeCartAPI) SetCart(ctx context.Context, key model.CartKey, req *model.RequestCart) (*model.ResponseCart, error) {
	f.mu.Lock()
	f.setCalls++
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}

	cart := model.EmptyResponseCart(key)
	for _, p := range req.Products {
		uuid := p.UUID
		if uuid == "" {
			f.nextUUID++
			uuid = fmt.Sprintf("uuid-%d", f.nextUUID)
		}
		cart.Products = append(cart.Products, model.ResponseCartProduct{
			UUID:        uuid,
			ProductID:   p.ProductID,
			ProductSlug: p.ProductSlug,
			ProductName: p.ProductSlug,
			Meta:        p.Meta,
			Volume:      p.Volume,
			Currency:    "USD",
			Extra:       p.Extra,
		})
	}
	cart.Coupon = req.Coupon
	if req.Coupon != "" {
		cart.IsCouponApplied = f.coupons[req.Coupon]
		if !cart.IsCouponApplied {
			cart.Messages.Errors = append(cart.Messages.Errors, model.CartMessage{
				Code:    "invalid-coupon",
				Message: fmt.Sprintf("Coupon code %q is not valid.", req.Coupon),
			})
		}
	}
	cart.Tax.Location = req.Tax.Location
	cart.GeneratedAtTimestamp = f.clock.Now().Unix()
	f.carts[key] = cart

	out := *cart
	return &out, nil
}

var _ shoppingcart.CartClient = (*fakeCartAPI)(nil)

func newTestManager(t *testing.T, api *fakeCartAPI, clock *fakeClock, configure func(*shoppingcart.Options)) *shoppingcart.Manager {
	t.Helper()
	opts := shoppingcart.DefaultOptions()
	opts.Clock = clock.Now
	if configure != nil {
		configure(&opts)
	}
	m := shoppingcart.NewManager(api, opts)
	t.Cleanup(func() {
		api.release()
		m.Close()
	})
	return m
}

func waitSettled(t *testing.T, c *shoppingcart.Completion) error {
	t.Helper()
	select {
	case <-c.Done():
		return c.Err()
	case <-time.After(2 * time.Second):
		t.Fatal("completion did not settle")
		return nil
	}
}

func waitForState(t *testing.T, sub *shoppingcart.Subscription, ok func(*shoppingcart.State) bool) *shoppingcart.State {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if st := sub.State(); ok(st) {
			return st
		}
		select {
		case <-sub.Updates():
		case <-deadline:
			t.Fatalf("state never matched, last status %q", sub.State().Status)
			return nil
		}
	}
}

func waitForStatus(t *testing.T, sub *shoppingcart.Subscription, status shoppingcart.Status) *shoppingcart.State {
	t.Helper()
	return waitForState(t, sub, func(st *shoppingcart.State) bool { return st.Status == status })
}

func slugs(cart *model.ResponseCart) []string {
	out := make([]string, 0, len(cart.Products))
	for _, p := range cart.Products {
		out = append(out, p.ProductSlug)
	}
	return out
}

var errServerDown = errors.New("server down")

func product(id int, slug string) model.RequestCartProduct {
	return model.RequestCartProduct{ProductID: id, ProductSlug: slug, Volume: 1}
}

func renewal(id int, slug string) model.RequestCartProduct {
	p := product(id, slug)
	p.Extra = model.ProductExtra{PurchaseType: model.PurchaseTypeRenewal, PurchaseID: "12345"}
	return p
}
