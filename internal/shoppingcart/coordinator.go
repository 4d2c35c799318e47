package shoppingcart

import "time"

// shouldRefetchOnFocusLocked decides whether a focus event starts a
// background reload. Called with s.mu held.
func (s *session) shouldRefetchOnFocusLocked() bool {
	if s.closed || s.opts.DisableRefetchOnWindowFocus {
		return false
	}
	if s.key.IsSentinel() {
		return false
	}
	// Anything queued or in flight will deliver a newer cart anyway.
	if s.current != nil || len(s.queue) > 0 {
		return false
	}
	if s.state.Status != StatusValid {
		return false
	}
	if !s.isStaleLocked(s.opts.Clock()) {
		return false
	}
	return s.opts.Environment.Online()
}

// isStaleLocked reports whether the stored cart is older than the freshness
// threshold. Carts without a generated timestamp are always stale.
func (s *session) isStaleLocked(now time.Time) bool {
	generated := s.state.Cart.GeneratedAt()
	if generated.IsZero() {
		return true
	}
	return now.Sub(generated) >= s.opts.FreshnessThreshold
}

// windowFocused handles a focus-regain event for this session.
func (s *session) windowFocused() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.shouldRefetchOnFocusLocked() {
		return
	}
	s.log.Debug("Refetching cart after window focus")
	s.startFlightLocked(flightFetch, nil, nil)
}
