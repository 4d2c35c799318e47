package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"wpcom-shopping-cart/internal/logging"
	"wpcom-shopping-cart/internal/middleware"
	"wpcom-shopping-cart/internal/model"
	"wpcom-shopping-cart/pkg/apierror"
	"wpcom-shopping-cart/pkg/response"
)

// maxCartBody bounds a POSTed cart document.
const maxCartBody = 1 << 20

// CartStore reads and writes priced carts.
type CartStore interface {
	GetCart(ctx context.Context, key model.CartKey) (*model.ResponseCart, error)
	SetCart(ctx context.Context, key model.CartKey, req *model.RequestCart) (*model.ResponseCart, error)
}

// CartHandler serves the shopping cart endpoint.
type CartHandler struct {
	carts CartStore
	log   *logrus.Entry
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(carts CartStore) *CartHandler {
	return &CartHandler{
		carts: carts,
		log:   logging.New("CartHandler"),
	}
}

// GetCart handles GET /me/shopping-cart/{cart_key}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	key := model.CartKey(chi.URLParam(r, "cart_key"))

	cart, err := h.carts.GetCart(r.Context(), key)
	if err != nil {
		h.fail(w, r, "get", key, err)
		return
	}
	response.Raw(w, http.StatusOK, cart)
}

// SetCart handles POST /me/shopping-cart/{cart_key}
func (h *CartHandler) SetCart(w http.ResponseWriter, r *http.Request) {
	key := model.CartKey(chi.URLParam(r, "cart_key"))

	var req model.RequestCart
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCartBody)).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON body: "+err.Error()))
		return
	}

	cart, err := h.carts.SetCart(r.Context(), key, &req)
	if err != nil {
		h.fail(w, r, "set", key, err)
		return
	}
	response.Raw(w, http.StatusOK, cart)
}

func (h *CartHandler) fail(w http.ResponseWriter, r *http.Request, op string, key model.CartKey, err error) {
	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		h.log.WithFields(logrus.Fields{
			"op":         op,
			"cart_key":   key,
			"request_id": middleware.GetRequestID(r.Context()),
		}).WithError(err).Error("Cart request failed")
	}
	response.Error(w, err)
}
