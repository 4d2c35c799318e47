package shoppingcart

import "wpcom-shopping-cart/internal/model"

// combineProducts adds incoming to existing. Renewals and new purchases never
// share a cart: when the two sides differ in renewal-ness the incoming batch
// replaces the existing products.
func combineProducts(existing, incoming []model.RequestCartProduct) []model.RequestCartProduct {
	if !canAppend(existing, incoming) {
		return cloneProducts(incoming)
	}
	out := make([]model.RequestCartProduct, 0, len(existing)+len(incoming))
	out = append(out, existing...)
	return append(out, incoming...)
}

func canAppend(existing, incoming []model.RequestCartProduct) bool {
	if len(existing) == 0 {
		return true
	}
	existingRenewal, existingRegular := renewalMix(existing)
	incomingRenewal, incomingRegular := renewalMix(incoming)

	if !existingRenewal && !incomingRenewal {
		return true
	}
	return !existingRegular && !incomingRegular
}

// renewalMix reports whether the products contain renewals and regular items.
func renewalMix(products []model.RequestCartProduct) (hasRenewal, hasRegular bool) {
	for _, p := range products {
		if p.IsRenewal() {
			hasRenewal = true
		} else {
			hasRegular = true
		}
	}
	return hasRenewal, hasRegular
}

func cloneProducts(products []model.RequestCartProduct) []model.RequestCartProduct {
	out := make([]model.RequestCartProduct, len(products))
	copy(out, products)
	return out
}
