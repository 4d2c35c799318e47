package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wpcom-shopping-cart/internal/logging"
)

// CartPurger deletes carts that have not been saved since a cutoff.
type CartPurger interface {
	PurgeInactive(ctx context.Context, before time.Time, limit int) (int, error)
}

// CleanupConfig holds configuration for the cleanup scheduler.
type CleanupConfig struct {
	// MaxIdle is how long a cart may go unsaved before it is deleted.
	// Default: 30 days
	MaxIdle time.Duration

	// Interval is how often the cleanup runs.
	// Default: 1 hour
	Interval time.Duration

	// BatchSize caps the carts deleted per statement.
	BatchSize int

	// InitialDelay postpones the first run after Start.
	InitialDelay time.Duration
}

// DefaultCleanupConfig returns default cleanup configuration.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		MaxIdle:      30 * 24 * time.Hour,
		Interval:     time.Hour,
		BatchSize:    500,
		InitialDelay: time.Minute,
	}
}

// CleanupScheduler periodically deletes abandoned carts.
type CleanupScheduler struct {
	purger    CartPurger
	config    CleanupConfig
	log       *logrus.Entry
	now       func() time.Time
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewCleanupScheduler creates a new cleanup scheduler.
func NewCleanupScheduler(purger CartPurger, config CleanupConfig) *CleanupScheduler {
	defaults := DefaultCleanupConfig()
	if config.MaxIdle <= 0 {
		config.MaxIdle = defaults.MaxIdle
	}
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}

	return &CleanupScheduler{
		purger: purger,
		config: config,
		log:    logging.New("CleanupScheduler"),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// Start begins the cleanup scheduler.
func (s *CleanupScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"interval": s.config.Interval.String(),
		"max_idle": s.config.MaxIdle.String(),
	}).Info("Started")

	go func() {
		select {
		case <-time.After(s.config.InitialDelay):
			s.runCleanup()
		case <-s.stopCh:
		}
	}()

	go s.run()
}

func (s *CleanupScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runCleanup()
		case <-s.stopCh:
			s.log.Info("Stopped")
			return
		}
	}
}

func (s *CleanupScheduler) runCleanup() {
	deleted, err := s.RunNow()
	if err != nil {
		s.log.WithError(err).Error("Cleanup failed")
		return
	}
	if deleted > 0 {
		s.log.WithField("deleted", deleted).Info("Cleaned up abandoned carts")
	} else {
		s.log.Debug("No abandoned carts to clean up")
	}
}

// RunNow deletes every cart idle past MaxIdle, one batch at a time, and
// returns how many were deleted.
func (s *CleanupScheduler) RunNow() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := s.now().Add(-s.config.MaxIdle)
	total := 0
	for {
		n, err := s.purger.PurgeInactive(ctx, cutoff, s.config.BatchSize)
		total += n
		if err != nil {
			return total, err
		}
		if n < s.config.BatchSize {
			return total, nil
		}
	}
}

// Stop stops the cleanup scheduler.
func (s *CleanupScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}
