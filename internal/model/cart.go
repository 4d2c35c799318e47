package model

import "time"

// CartKey selects which remote cart to operate on.
type CartKey string

// Sentinel cart keys. No real remote cart exists behind them.
const (
	NoSiteCartKey CartKey = "no-site"
	NoUserCartKey CartKey = "no-user"
)

// IsSentinel reports whether the key is one of the reserved no-site/no-user values.
func (k CartKey) IsSentinel() bool {
	return k == NoSiteCartKey || k == NoUserCartKey
}

func (k CartKey) String() string {
	return string(k)
}

// PurchaseTypeRenewal marks a line item as a subscription renewal.
const PurchaseTypeRenewal = "renewal"

// ProductExtra carries optional purchase metadata for a line item.
type ProductExtra struct {
	PurchaseType string `json:"purchaseType,omitempty"`
	PurchaseID   string `json:"purchaseId,omitempty"`
	Context      string `json:"context,omitempty"`
}

// CartLocation is the tax location attached to a cart.
type CartLocation struct {
	CountryCode     string `json:"country_code,omitempty"`
	PostalCode      string `json:"postal_code,omitempty"`
	SubdivisionCode string `json:"subdivision_code,omitempty"`
}

// IsEmpty returns true when no location field is set.
func (l CartLocation) IsEmpty() bool {
	return l.CountryCode == "" && l.PostalCode == "" && l.SubdivisionCode == ""
}

// CartTax holds the tax section of a cart.
type CartTax struct {
	Location     CartLocation `json:"location"`
	DisplayTaxes bool         `json:"display_taxes"`
}

// CartMessage is a single server message attached to a cart response.
type CartMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CartMessages groups server messages by severity.
type CartMessages struct {
	Errors  []CartMessage `json:"errors,omitempty"`
	Success []CartMessage `json:"success,omitempty"`
}

// ResponseCartProduct is a line item in a server-confirmed cart.
type ResponseCartProduct struct {
	UUID                string       `json:"uuid"`
	ProductID           int          `json:"product_id"`
	ProductSlug         string       `json:"product_slug"`
	ProductName         string       `json:"product_name"`
	Meta                string       `json:"meta,omitempty"`
	Volume              int          `json:"volume"`
	Quantity            int          `json:"quantity,omitempty"`
	BillPeriod          string       `json:"bill_period,omitempty"`
	Currency            string       `json:"currency"`
	ItemOriginalCost    int          `json:"item_original_cost_integer"`
	ItemSubtotalInteger int          `json:"item_subtotal_integer"`
	Extra               ProductExtra `json:"extra"`
}

// IsRenewal reports whether the line item is a subscription renewal.
func (p ResponseCartProduct) IsRenewal() bool {
	return p.Extra.PurchaseType == PurchaseTypeRenewal
}

// ResponseCart is the authoritative cart snapshot returned by the server.
// Values are shared read-only; never modify one after it has been stored.
type ResponseCart struct {
	CartKey               CartKey               `json:"cart_key"`
	Products              []ResponseCartProduct `json:"products"`
	Coupon                string                `json:"coupon"`
	IsCouponApplied       bool                  `json:"is_coupon_applied"`
	CouponDiscountInteger int                   `json:"coupon_discount_integer"`
	Currency              string                `json:"currency"`
	SubTotalInteger       int                   `json:"sub_total_integer"`
	TotalTaxInteger       int                   `json:"total_tax_integer"`
	TotalCostInteger      int                   `json:"total_cost_integer"`
	Tax                   CartTax               `json:"tax"`
	GeneratedAtTimestamp  int64                 `json:"cart_generated_at_timestamp"`
	Messages              CartMessages          `json:"messages"`
}

// GeneratedAt returns when the server computed this snapshot.
// The zero time is returned for carts without a timestamp.
func (c *ResponseCart) GeneratedAt() time.Time {
	if c == nil || c.GeneratedAtTimestamp == 0 {
		return time.Time{}
	}
	return time.Unix(c.GeneratedAtTimestamp, 0)
}

// FindProduct returns the line item with the given uuid.
func (c *ResponseCart) FindProduct(uuid string) (ResponseCartProduct, bool) {
	if c == nil {
		return ResponseCartProduct{}, false
	}
	for _, p := range c.Products {
		if p.UUID == uuid {
			return p, true
		}
	}
	return ResponseCartProduct{}, false
}

// ToRequestCart converts the snapshot into a request body that reproduces it.
func (c *ResponseCart) ToRequestCart() *RequestCart {
	req := &RequestCart{
		Products: make([]RequestCartProduct, 0, len(c.Products)),
		Coupon:   c.Coupon,
		Tax:      RequestCartTax{Location: c.Tax.Location},
	}
	for _, p := range c.Products {
		req.Products = append(req.Products, RequestCartProduct{
			UUID:        p.UUID,
			ProductID:   p.ProductID,
			ProductSlug: p.ProductSlug,
			Meta:        p.Meta,
			Volume:      p.Volume,
			Quantity:    p.Quantity,
			Extra:       p.Extra,
		})
	}
	return req
}

// EmptyResponseCart returns a cart with no products for the given key.
func EmptyResponseCart(key CartKey) *ResponseCart {
	return &ResponseCart{
		CartKey:  key,
		Products: []ResponseCartProduct{},
		Currency: "USD",
	}
}

// RequestCartProduct is a line item sent to the server.
// UUID is empty for items the server has not seen yet.
type RequestCartProduct struct {
	UUID        string       `json:"uuid,omitempty"`
	ProductID   int          `json:"product_id"`
	ProductSlug string       `json:"product_slug,omitempty"`
	Meta        string       `json:"meta,omitempty"`
	Volume      int          `json:"volume,omitempty"`
	Quantity    int          `json:"quantity,omitempty"`
	Extra       ProductExtra `json:"extra"`
}

// IsRenewal reports whether the line item is a subscription renewal.
func (p RequestCartProduct) IsRenewal() bool {
	return p.Extra.PurchaseType == PurchaseTypeRenewal
}

// RequestCartTax is the tax section of a request body.
type RequestCartTax struct {
	Location CartLocation `json:"location"`
}

// RequestCart is the body accepted by the cart endpoint.
type RequestCart struct {
	Products  []RequestCartProduct `json:"products"`
	Coupon    string               `json:"coupon"`
	Temporary bool                 `json:"temporary"`
	Tax       RequestCartTax       `json:"tax"`
}
