// Package cartclient talks to the shopping-cart REST endpoint
// (GET and POST /me/shopping-cart/{cart_key}).
package cartclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"wpcom-shopping-cart/internal/logging"
	"wpcom-shopping-cart/internal/model"
	"wpcom-shopping-cart/internal/shoppingcart"
	"wpcom-shopping-cart/pkg/apierror"
)

// maxErrorBody bounds how much of a non-JSON error body is kept.
const maxErrorBody = 4 << 10

// Config holds client settings.
type Config struct {
	// BaseURL is the REST root, e.g. https://public-api.wordpress.com/rest/v1.1
	BaseURL string
	// Token is sent as a bearer token when set.
	Token   string
	Timeout time.Duration
	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client is a CartClient over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logrus.Entry
}

// APIError is a non-2xx response from the cart endpoint.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    []apierror.FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cart api: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("cartclient: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "cartclient: invalid base URL")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    httpClient,
		log:     logging.New("CartClient"),
	}, nil
}

// GetCart fetches the cart for key.
func (c *Client) GetCart(ctx context.Context, key model.CartKey) (*model.ResponseCart, error) {
	return c.do(ctx, http.MethodGet, key, nil)
}

// SetCart replaces the cart for key and returns the server's result.
func (c *Client) SetCart(ctx context.Context, key model.CartKey, cart *model.RequestCart) (*model.ResponseCart, error) {
	return c.do(ctx, http.MethodPost, key, cart)
}

func (c *Client) cartURL(key model.CartKey) string {
	return c.baseURL + "/me/shopping-cart/" + url.PathEscape(string(key))
}

func (c *Client) do(ctx context.Context, method string, key model.CartKey, body *model.RequestCart) (*model.ResponseCart, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "cartclient: encode request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cartURL(key), reader)
	if err != nil {
		return nil, errors.Wrap(err, "cartclient: build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "cartclient: %s %s", method, key)
	}
	defer resp.Body.Close()

	c.log.WithFields(logrus.Fields{
		"method":      method,
		"cart_key":    string(key),
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Cart request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp)
	}

	var cart model.ResponseCart
	if err := json.NewDecoder(resp.Body).Decode(&cart); err != nil {
		return nil, errors.Wrap(err, "cartclient: decode cart")
	}
	return &cart, nil
}

// decodeError reads the {"success":false,"error":{...}} envelope, falling
// back to the raw body for servers that do not send one.
func decodeError(resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return errors.Wrap(err, "cartclient: read error body")
	}

	if apiErr, ok := apierror.Decode(data); ok {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       apiErr.Code,
			Message:    apiErr.Message,
			Details:    apiErr.Details,
		}
	}

	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
		Message:    msg,
	}
}

var _ shoppingcart.CartClient = (*Client)(nil)
