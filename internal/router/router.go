package router

import (
	"net/http"

	"wpcom-shopping-cart/internal/handler"
	"wpcom-shopping-cart/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler         *handler.Handler
	CartHandler     *handler.CartHandler
	AdminHandler    *handler.AdminHandler
	AuthMiddleware  func(http.Handler) http.Handler
	AdminMiddleware func(http.Handler) http.Handler
	AllowedOrigins  []string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Admin-Key", "traceparent", "tracestate"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
		r.Get("/api/v1/health", cfg.Handler.Health)
		r.Get("/api/v1/ready", cfg.Handler.Ready)
	}

	if cfg.CartHandler != nil {
		r.Group(func(r chi.Router) {
			if cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware)
			}
			r.Get("/rest/v1.1/me/shopping-cart/{cart_key}", cfg.CartHandler.GetCart)
			r.Post("/rest/v1.1/me/shopping-cart/{cart_key}", cfg.CartHandler.SetCart)
		})
	}

	if cfg.AdminHandler != nil {
		r.Group(func(r chi.Router) {
			if cfg.AdminMiddleware != nil {
				r.Use(cfg.AdminMiddleware)
			}
			r.Route("/api/v1/admin", func(r chi.Router) {
				r.Get("/stats", cfg.AdminHandler.GetStats)
				r.Post("/cleanup", cfg.AdminHandler.RunCleanup)
			})
		})
	}

	return r
}
