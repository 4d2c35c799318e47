package shoppingcart

import (
	"fmt"

	"wpcom-shopping-cart/internal/model"
)

// action is a single cart operation queued against a session.
type action interface {
	name() string
	// validate runs synchronously before the action is queued.
	validate() error
	// apply changes the working request cart for the next batch.
	apply(cart *model.RequestCart) error
	// verify checks the server response for this action's effect.
	verify(resp *model.ResponseCart) error
}

func validateProducts(products []model.RequestCartProduct) error {
	for _, p := range products {
		if p.ProductID == 0 {
			return fmt.Errorf("%w (product_slug %q)", ErrMissingProductID, p.ProductSlug)
		}
	}
	return nil
}

type addProductsAction struct {
	products []model.RequestCartProduct
}

func (a addProductsAction) name() string { return "addProductsToCart" }
func (a addProductsAction) validate() error { return validateProducts(a.products) }

func (a addProductsAction) apply(cart *model.RequestCart) error {
	cart.Products = combineProducts(cart.Products, a.products)
	return nil
}

func (a addProductsAction) verify(*model.ResponseCart) error { return nil }

type removeProductAction struct {
	uuid string
}

func (a removeProductAction) name() string { return "removeProductFromCart" }
func (a removeProductAction) validate() error { return nil }

// apply drops the matching line item. An unknown uuid leaves the cart unchanged.
func (a removeProductAction) apply(cart *model.RequestCart) error {
	kept := make([]model.RequestCartProduct, 0, len(cart.Products))
	for _, p := range cart.Products {
		if p.UUID != "" && p.UUID == a.uuid {
			continue
		}
		kept = append(kept, p)
	}
	cart.Products = kept
	return nil
}

func (a removeProductAction) verify(*model.ResponseCart) error { return nil }

type replaceProductsAction struct {
	products []model.RequestCartProduct
}

func (a replaceProductsAction) name() string { return "replaceProductsInCart" }
func (a replaceProductsAction) validate() error { return validateProducts(a.products) }

func (a replaceProductsAction) apply(cart *model.RequestCart) error {
	cart.Products = cloneProducts(a.products)
	return nil
}

func (a replaceProductsAction) verify(*model.ResponseCart) error { return nil }

type replaceProductAction struct {
	uuid    string
	product model.RequestCartProduct
}

func (a replaceProductAction) name() string { return "replaceProductInCart" }

func (a replaceProductAction) validate() error {
	return validateProducts([]model.RequestCartProduct{a.product})
}

func (a replaceProductAction) apply(cart *model.RequestCart) error {
	for i, p := range cart.Products {
		if p.UUID == "" || p.UUID != a.uuid {
			continue
		}
		replaced := cloneProducts(cart.Products)
		next := a.product
		next.UUID = a.uuid
		replaced[i] = next
		cart.Products = replaced
		return nil
	}
	return fmt.Errorf("%w: %s", ErrProductNotFound, a.uuid)
}

func (a replaceProductAction) verify(*model.ResponseCart) error { return nil }

type applyCouponAction struct {
	code string
}

func (a applyCouponAction) name() string { return "applyCoupon" }

func (a applyCouponAction) validate() error {
	if a.code == "" {
		return ErrEmptyCouponCode
	}
	return nil
}

func (a applyCouponAction) apply(cart *model.RequestCart) error {
	cart.Coupon = a.code
	return nil
}

func (a applyCouponAction) verify(resp *model.ResponseCart) error {
	if resp.Coupon == a.code && resp.IsCouponApplied {
		return nil
	}
	if len(resp.Messages.Errors) > 0 {
		return fmt.Errorf("%w: %s", ErrCouponNotApplied, resp.Messages.Errors[0].Message)
	}
	return fmt.Errorf("%w: %s", ErrCouponNotApplied, a.code)
}

type removeCouponAction struct{}

func (removeCouponAction) name() string { return "removeCoupon" }
func (removeCouponAction) validate() error { return nil }

func (removeCouponAction) apply(cart *model.RequestCart) error {
	cart.Coupon = ""
	return nil
}

func (removeCouponAction) verify(*model.ResponseCart) error { return nil }

type updateLocationAction struct {
	location model.CartLocation
}

func (a updateLocationAction) name() string { return "updateLocation" }

func (a updateLocationAction) validate() error {
	if a.location.CountryCode == "" && (a.location.PostalCode != "" || a.location.SubdivisionCode != "") {
		return ErrInvalidLocation
	}
	return nil
}

func (a updateLocationAction) apply(cart *model.RequestCart) error {
	cart.Tax.Location = a.location
	return nil
}

func (a updateLocationAction) verify(*model.ResponseCart) error { return nil }

// reloadAction is never applied; a batch holding only reloads becomes a fetch.
type reloadAction struct{}

func (reloadAction) name() string { return "reloadFromServer" }
func (reloadAction) validate() error { return nil }
func (reloadAction) apply(*model.RequestCart) error { return nil }
func (reloadAction) verify(*model.ResponseCart) error { return nil }

func isReload(a action) bool {
	_, ok := a.(reloadAction)
	return ok
}
