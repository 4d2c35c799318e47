package shoppingcart

import (
	"sync"
	"sync/atomic"

	"wpcom-shopping-cart/internal/model"
)

// Subscription is one consumer's handle on a cart session. All
// subscriptions of a cart key share the same session and observe the
// same *State values.
type Subscription struct {
	session *session
	id      uint64
	updates chan *State
	release func(*Subscription)

	once   sync.Once
	closed atomic.Bool
}

func newSubscription(s *session, id uint64, release func(*Subscription)) *Subscription {
	return &Subscription{
		session: s,
		id:      id,
		updates: make(chan *State, 1),
		release: release,
	}
}

// push replaces any undelivered state with st. Called with the session lock held.
func (sub *Subscription) push(st *State) {
	select {
	case <-sub.updates:
	default:
	}
	sub.updates <- st
}

// Updates delivers the latest state after each transition. Slow readers
// only see the newest value. The channel is closed by Close.
func (sub *Subscription) Updates() <-chan *State {
	return sub.updates
}

// Key returns the cart key this subscription is bound to.
func (sub *Subscription) Key() model.CartKey {
	return sub.session.key
}

// State returns the current session snapshot.
func (sub *Subscription) State() *State {
	return sub.session.snapshot()
}

// ResponseCart returns the last server-confirmed cart.
func (sub *Subscription) ResponseCart() *model.ResponseCart {
	return sub.State().Cart
}

// IsLoading reports whether the initial load is still running.
func (sub *Subscription) IsLoading() bool {
	return sub.State().IsLoading()
}

// IsPendingUpdate reports whether a mutation or reload has not settled yet.
func (sub *Subscription) IsPendingUpdate() bool {
	return sub.State().IsPendingUpdate()
}

// AddProductsToCart adds line items. Renewals and new purchases are not
// mixed: a batch of the other kind replaces the existing products.
func (sub *Subscription) AddProductsToCart(products ...model.RequestCartProduct) *Completion {
	return sub.enqueue(addProductsAction{products: cloneProducts(products)})
}

// RemoveProductFromCart removes the line item with the given uuid.
func (sub *Subscription) RemoveProductFromCart(uuid string) *Completion {
	return sub.enqueue(removeProductAction{uuid: uuid})
}

// ReplaceProductsInCart replaces all line items.
func (sub *Subscription) ReplaceProductsInCart(products ...model.RequestCartProduct) *Completion {
	return sub.enqueue(replaceProductsAction{products: cloneProducts(products)})
}

// ReplaceProductInCart swaps the line item with the given uuid, keeping its uuid.
func (sub *Subscription) ReplaceProductInCart(uuid string, product model.RequestCartProduct) *Completion {
	return sub.enqueue(replaceProductAction{uuid: uuid, product: product})
}

// ApplyCoupon sets the cart coupon. The completion fails with
// ErrCouponNotApplied if the server does not accept it.
func (sub *Subscription) ApplyCoupon(code string) *Completion {
	return sub.enqueue(applyCouponAction{code: code})
}

// RemoveCoupon clears the cart coupon.
func (sub *Subscription) RemoveCoupon() *Completion {
	return sub.enqueue(removeCouponAction{})
}

// UpdateLocation sets the tax location.
func (sub *Subscription) UpdateLocation(location model.CartLocation) *Completion {
	return sub.enqueue(updateLocationAction{location: location})
}

// ReloadFromServer fetches the cart again. It is the only way out of StatusError.
func (sub *Subscription) ReloadFromServer() *Completion {
	if sub.closed.Load() {
		return settled(ErrSessionClosed)
	}
	return sub.session.reload()
}

func (sub *Subscription) enqueue(a action) *Completion {
	if sub.closed.Load() {
		return settled(ErrSessionClosed)
	}
	return sub.session.enqueue(a)
}

// Close detaches the subscription. Closing the last subscription of a cart
// key ends the session and rejects its queued actions.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		sub.closed.Store(true)
		sub.release(sub)
	})
}
