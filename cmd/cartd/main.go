package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"wpcom-shopping-cart/internal/cache"
	"wpcom-shopping-cart/internal/catalog"
	"wpcom-shopping-cart/internal/config"
	"wpcom-shopping-cart/internal/handler"
	"wpcom-shopping-cart/internal/logging"
	"wpcom-shopping-cart/internal/middleware"
	"wpcom-shopping-cart/internal/repository"
	"wpcom-shopping-cart/internal/router"
	"wpcom-shopping-cart/internal/service"
	"wpcom-shopping-cart/internal/tracing"
)

func main() {
	cfg := config.MustLoad()
	logging.Init(cfg.App.Debug)
	log := logging.New("cartd")
	log.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"version":     cfg.App.Version,
	}).Info("Starting shopping cart service")

	shutdownTracing, err := tracing.Init(context.Background(), cfg.Tracing, cfg.App)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize tracing")
	}

	// Initialize cart repository based on config
	cartRepo, err := openCartRepository(cfg)
	if err != nil {
		log.WithError(err).WithField("type", cfg.CartDB.Type).Fatal("Failed to initialize cart store")
	}
	defer cartRepo.Close()
	log.WithField("type", cfg.CartDB.Type).Info("Cart repository initialized")

	// Redis is optional: fall back to the in-process cache when it is unreachable
	var cartCache cache.CartCache
	cacheType := "memory"
	if cfg.Cache.Type == "redis" {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddress(),
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.RedisPrefix,
		})
		if err != nil {
			log.WithError(err).Warn("Redis connection failed, using memory cache")
		} else {
			cartCache = redisCache
			cacheType = "redis"
		}
	}
	if cartCache == nil {
		cartCache = cache.NewMemoryCache()
	}
	defer cartCache.Close()
	log.WithField("type", cacheType).Info("Cart cache initialized")

	cartService := service.NewCartService(cartRepo, cartCache, catalog.Default(), cfg.Cache.TTL)

	var cleaner handler.Cleaner
	if cfg.Cleanup.Enabled {
		scheduler := service.NewCleanupScheduler(cartService, service.CleanupConfig{
			MaxIdle:      cfg.Cleanup.MaxIdle,
			Interval:     cfg.Cleanup.Interval,
			BatchSize:    cfg.Cleanup.BatchSize,
			InitialDelay: time.Minute,
		})
		scheduler.Start()
		defer scheduler.Stop()
		cleaner = scheduler
	}

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Name, cfg.App.Version,
		handler.ReadinessCheck{Name: "store", Check: func(ctx context.Context) error {
			_, err := cartRepo.GetStats(ctx)
			return err
		}},
		handler.ReadinessCheck{Name: "cache", Check: func(ctx context.Context) error {
			_, err := cartCache.Stats(ctx)
			return err
		}},
	)
	cartHandler := handler.NewCartHandler(cartService)
	adminHandler := handler.NewAdminHandler(cartService, cleaner, cfg.CartDB.Type, cacheType)

	r := router.New(router.Config{
		Handler:         healthHandler,
		CartHandler:     cartHandler,
		AdminHandler:    adminHandler,
		AuthMiddleware:  middleware.NewAuthMiddleware(middleware.AuthConfig{Tokens: cfg.Auth.TokenList()}),
		AdminMiddleware: middleware.NewAdminMiddleware(cfg.Auth.AdminKey),
		AllowedOrigins:  cfg.Server.Origins(),
	})
	if len(cfg.Auth.TokenList()) == 0 {
		log.Warn("AUTH_TOKENS is empty, the cart endpoint is unauthenticated")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("addr", cfg.Server.Address()).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server shutdown error")
	}
	if err := shutdownTracing(ctx); err != nil {
		log.WithError(err).Error("Tracer shutdown error")
	}

	log.Info("Server stopped")
}

func openCartRepository(cfg *config.Config) (repository.CartRepository, error) {
	switch cfg.CartDB.Type {
	case "postgres":
		return repository.NewPostgresCartRepository(cfg.CartDB.PostgresDSN())
	case "mysql":
		return repository.NewMySQLCartRepository(cfg.Database.DSN())
	default:
		return repository.NewSQLiteCartRepository(cfg.CartDB.Path)
	}
}
