package shoppingcart

import "errors"

// Validation errors are returned before any request is issued.
var (
	ErrMissingProductID = errors.New("shoppingcart: product is missing a product_id")
	ErrEmptyCouponCode  = errors.New("shoppingcart: coupon code is empty")
	ErrInvalidLocation  = errors.New("shoppingcart: location requires a country code")
)

var (
	// ErrProductNotFound is returned when a line item uuid is not in the cart.
	ErrProductNotFound = errors.New("shoppingcart: product not found in cart")

	// ErrCouponNotApplied is returned when the server did not accept a coupon.
	ErrCouponNotApplied = errors.New("shoppingcart: coupon was not applied")

	// ErrCartInError is returned for mutations attempted while the cart is in
	// the error state. ReloadFromServer leaves that state.
	ErrCartInError = errors.New("shoppingcart: cart is in an error state")

	// ErrSessionClosed is returned for actions on a closed subscription or
	// actions still queued when the last subscription closed.
	ErrSessionClosed = errors.New("shoppingcart: cart session closed")

	// ErrEmptyResponse is returned when the client produced neither a cart nor an error.
	ErrEmptyResponse = errors.New("shoppingcart: empty cart response")
)
