package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"wpcom-shopping-cart/pkg/apierror"
	"wpcom-shopping-cart/pkg/response"
)

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// Tokens are accepted as "Authorization: Bearer <token>". An empty list
	// disables the check.
	Tokens []string
}

// NewAuthMiddleware creates a bearer token middleware for the cart endpoint.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(cfg.Tokens) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				response.Error(w, apierror.Unauthorized("Authentication required. Use an Authorization: Bearer header."))
				return
			}
			if !isValidKey(strings.TrimPrefix(auth, "Bearer "), cfg.Tokens) {
				response.Error(w, apierror.Unauthorized("Invalid token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewAdminMiddleware guards admin routes with the X-Admin-Key header.
// With no key configured admin routes are closed.
func NewAdminMiddleware(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				response.Error(w, apierror.Forbidden("admin access is not configured"))
				return
			}
			if !isValidKey(r.Header.Get("X-Admin-Key"), []string{adminKey}) {
				response.Error(w, apierror.Unauthorized("Invalid admin key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isValidKey checks if the provided key is in the valid keys list.
func isValidKey(key string, validKeys []string) bool {
	if key == "" {
		return false
	}
	for _, valid := range validKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}
