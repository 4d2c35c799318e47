// Package catalog is the product and coupon table cartd prices carts with.
package catalog

import (
	"sort"
	"strings"
)

// Bill periods, in days. Products without a recurring charge use BillPeriodOneTime.
const (
	BillPeriodAnnual  = "365"
	BillPeriodMonthly = "31"
	BillPeriodOneTime = "-1"
)

// Product is a purchasable item. PriceInteger is in the currency's smallest unit.
type Product struct {
	ID           int    `json:"product_id"`
	Slug         string `json:"product_slug"`
	Name         string `json:"product_name"`
	BillPeriod   string `json:"bill_period"`
	PriceInteger int    `json:"price_integer"`
	Currency     string `json:"currency"`
}

// Coupon is a percentage discount applied to the cart subtotal.
type Coupon struct {
	Code            string `json:"code"`
	DiscountPercent int    `json:"discount_percent"`
}

// Catalog is an immutable lookup table of products and coupons.
type Catalog struct {
	byID    map[int]Product
	bySlug  map[string]Product
	coupons map[string]Coupon
}

// New builds a catalog. Later entries win on duplicate ids or slugs.
func New(products []Product, coupons []Coupon) *Catalog {
	c := &Catalog{
		byID:    make(map[int]Product, len(products)),
		bySlug:  make(map[string]Product, len(products)),
		coupons: make(map[string]Coupon, len(coupons)),
	}
	for _, p := range products {
		if p.Currency == "" {
			p.Currency = "USD"
		}
		c.byID[p.ID] = p
		c.bySlug[p.Slug] = p
	}
	for _, cp := range coupons {
		c.coupons[strings.ToUpper(cp.Code)] = cp
	}
	return c
}

// Product looks a product up by id.
func (c *Catalog) Product(id int) (Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// ProductBySlug looks a product up by slug.
func (c *Catalog) ProductBySlug(slug string) (Product, bool) {
	p, ok := c.bySlug[slug]
	return p, ok
}

// Coupon looks a coupon up. Codes are case-insensitive.
func (c *Catalog) Coupon(code string) (Coupon, bool) {
	cp, ok := c.coupons[strings.ToUpper(strings.TrimSpace(code))]
	return cp, ok
}

// Products returns all products ordered by id.
func (c *Catalog) Products() []Product {
	out := make([]Product, 0, len(c.byID))
	for _, p := range c.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
