package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"wpcom-shopping-cart/internal/cache"
	"wpcom-shopping-cart/internal/catalog"
	"wpcom-shopping-cart/internal/logging"
	"wpcom-shopping-cart/internal/model"
	"wpcom-shopping-cart/internal/repository"
	"wpcom-shopping-cart/pkg/apierror"
	"wpcom-shopping-cart/pkg/uid"
)

// Cart message codes.
const (
	MessageInvalidCoupon = "invalid-coupon"
	MessageCouponApplied = "coupon-applied"
)

// CartService prices carts against the catalog and persists them.
type CartService struct {
	repo     repository.CartRepository
	cache    cache.CartCache
	catalog  *catalog.Catalog
	cacheTTL time.Duration
	log      *logrus.Entry

	now     func() time.Time
	newUUID func() string
}

// NewCartService creates a cart service. cartCache may be nil.
func NewCartService(repo repository.CartRepository, cartCache cache.CartCache, cat *catalog.Catalog, cacheTTL time.Duration) *CartService {
	if cat == nil {
		cat = catalog.Default()
	}
	return &CartService{
		repo:     repo,
		cache:    cartCache,
		catalog:  cat,
		cacheTTL: cacheTTL,
		log:      logging.New("CartService"),
		now:      time.Now,
		newUUID:  uid.New,
	}
}

// GetCart returns the stored cart for key, or an empty cart if none exists.
func (s *CartService) GetCart(ctx context.Context, key model.CartKey) (*model.ResponseCart, error) {
	if strings.TrimSpace(string(key)) == "" {
		return nil, apierror.BadRequest("cart_key is required")
	}

	load := func() (*model.ResponseCart, error) {
		cart, err := s.repo.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if cart == nil {
			cart = model.EmptyResponseCart(key)
		}
		return cart, nil
	}

	var (
		cart *model.ResponseCart
		err  error
	)
	if s.cache != nil {
		cart, err = s.cache.GetOrLoad(ctx, key, s.cacheTTL, load)
	} else {
		cart, err = load()
	}
	if err != nil {
		s.log.WithError(err).WithField("cart_key", string(key)).Error("Failed to load cart")
		return nil, apierror.InternalError("failed to load cart")
	}

	out := *cart
	out.GeneratedAtTimestamp = s.now().Unix()
	return &out, nil
}

// SetCart replaces the cart for key with the priced form of req.
func (s *CartService) SetCart(ctx context.Context, key model.CartKey, req *model.RequestCart) (*model.ResponseCart, error) {
	if strings.TrimSpace(string(key)) == "" {
		return nil, apierror.BadRequest("cart_key is required")
	}
	if req == nil {
		return nil, apierror.BadRequest("request body is required")
	}

	cart, err := s.price(key, req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, cart); err != nil {
		s.log.WithError(err).WithField("cart_key", string(key)).Error("Failed to save cart")
		return nil, apierror.InternalError("failed to save cart")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cart, s.cacheTTL); err != nil {
			s.log.WithError(err).Warn("Failed to cache cart")
		}
	}

	s.log.WithFields(logrus.Fields{
		"cart_key": string(key),
		"products": len(cart.Products),
		"total":    cart.TotalCostInteger,
	}).Debug("Cart updated")
	return cart, nil
}

// price resolves every product against the catalog and computes totals.
func (s *CartService) price(key model.CartKey, req *model.RequestCart) (*model.ResponseCart, error) {
	var details []apierror.FieldError

	loc := req.Tax.Location
	if loc.CountryCode == "" && (loc.PostalCode != "" || loc.SubdivisionCode != "") {
		details = append(details, apierror.FieldError{
			Field:   "tax.location.country_code",
			Message: "country_code is required when a postal or subdivision code is set",
		})
	}

	cart := model.EmptyResponseCart(key)
	cart.Tax.Location = loc
	cart.Tax.DisplayTaxes = loc.CountryCode != ""

	for i, p := range req.Products {
		field := fmt.Sprintf("products[%d].product_id", i)
		if p.ProductID == 0 {
			details = append(details, apierror.FieldError{Field: field, Message: "product_id is required"})
			continue
		}
		product, ok := s.catalog.Product(p.ProductID)
		if !ok {
			details = append(details, apierror.FieldError{Field: field, Message: fmt.Sprintf("unknown product_id %d", p.ProductID)})
			continue
		}

		uuid := p.UUID
		if uuid == "" {
			uuid = s.newUUID()
		}
		volume := p.Volume
		if volume <= 0 {
			volume = 1
		}
		subtotal := product.PriceInteger * volume
		if p.Quantity > 0 {
			subtotal *= p.Quantity
		}

		cart.Products = append(cart.Products, model.ResponseCartProduct{
			UUID:                uuid,
			ProductID:           product.ID,
			ProductSlug:         product.Slug,
			ProductName:         product.Name,
			Meta:                p.Meta,
			Volume:              volume,
			Quantity:            p.Quantity,
			BillPeriod:          product.BillPeriod,
			Currency:            product.Currency,
			ItemOriginalCost:    product.PriceInteger,
			ItemSubtotalInteger: subtotal,
			Extra:               p.Extra,
		})
		cart.SubTotalInteger += subtotal
	}

	if len(details) > 0 {
		return nil, apierror.ValidationError("invalid cart", details...)
	}

	cart.Coupon = req.Coupon
	if req.Coupon != "" {
		if coupon, ok := s.catalog.Coupon(req.Coupon); ok {
			cart.IsCouponApplied = true
			cart.CouponDiscountInteger = cart.SubTotalInteger * coupon.DiscountPercent / 100
			cart.Messages.Success = append(cart.Messages.Success, model.CartMessage{
				Code:    MessageCouponApplied,
				Message: fmt.Sprintf("Coupon code %q has been applied.", req.Coupon),
			})
		} else {
			cart.Messages.Errors = append(cart.Messages.Errors, model.CartMessage{
				Code:    MessageInvalidCoupon,
				Message: fmt.Sprintf("Coupon code %q is not valid.", req.Coupon),
			})
		}
	}

	cart.TotalCostInteger = cart.SubTotalInteger - cart.CouponDiscountInteger
	cart.GeneratedAtTimestamp = s.now().Unix()
	return cart, nil
}

// PurgeInactive deletes up to limit carts not saved since before and evicts
// them from the cache.
func (s *CartService) PurgeInactive(ctx context.Context, before time.Time, limit int) (int, error) {
	keys, err := s.repo.DeleteInactive(ctx, before, limit)
	if err != nil {
		return 0, err
	}
	if len(keys) > 0 && s.cache != nil {
		if err := s.cache.Delete(ctx, keys...); err != nil {
			s.log.WithError(err).Warn("Failed to evict purged carts")
		}
	}
	return len(keys), nil
}

// Stats reports store and cache statistics.
type Stats struct {
	Store    *repository.CartStats `json:"store"`
	Cache    *cache.Stats          `json:"cache,omitempty"`
	Products int                   `json:"catalog_products"`
}

// Stats collects store and cache statistics.
func (s *CartService) Stats(ctx context.Context) (*Stats, error) {
	store, err := s.repo.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get store stats: %w", err)
	}
	out := &Stats{Store: store, Products: len(s.catalog.Products())}
	if s.cache != nil {
		cs, err := s.cache.Stats(ctx)
		if err != nil {
			s.log.WithError(err).Warn("Failed to get cache stats")
		} else {
			out.Cache = &cs
		}
	}
	return out, nil
}
