// Package shoppingcart keeps in-process consumers of a remote shopping cart
// in sync with the cart REST endpoint.
//
// A Manager holds one session per cart key. Mutations made through any
// Subscription of a key are queued in order, coalesced into a single
// request while another request is in flight, and settle only after the
// server-confirmed cart has been stored and published to every subscriber.
package shoppingcart

import (
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"wpcom-shopping-cart/internal/logging"
	"wpcom-shopping-cart/internal/model"
)

const tracerName = "wpcom-shopping-cart/internal/shoppingcart"

// Manager owns the cart sessions of a process.
type Manager struct {
	client CartClient
	opts   Options
	log    *logrus.Entry
	tracer trace.Tracer

	mu       sync.Mutex
	sessions map[model.CartKey]*session
}

// NewManager creates a manager that syncs carts through client.
func NewManager(client CartClient, opts Options) *Manager {
	return &Manager{
		client:   client,
		opts:     opts.withDefaults(),
		log:      logging.New("ShoppingCart"),
		tracer:   otel.Tracer(tracerName),
		sessions: make(map[model.CartKey]*session),
	}
}

// Subscribe attaches a consumer to the cart for key. The first subscription
// of a key creates its session and starts loading the cart.
func (m *Manager) Subscribe(key model.CartKey) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key]
	if !ok {
		s = newSession(key, m.client, m.opts, m.log, m.tracer)
		m.sessions[key] = s
		m.log.WithField("cart_key", string(key)).Debug("Cart session created")
	}
	return s.subscribe(m.release)
}

func (m *Manager) release(sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := sub.session
	if s.unsubscribe(sub) > 0 {
		return
	}
	if m.sessions[s.key] == s {
		delete(m.sessions, s.key)
	}
	s.close()
}

// WindowFocused notifies every session that the host regained focus.
// Sessions whose cart is stale start a background reload.
func (m *Manager) WindowFocused() {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.windowFocused()
	}
}

// Sessions returns the number of live cart sessions.
func (m *Manager) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close ends all sessions. Queued actions are rejected with ErrSessionClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, s := range m.sessions {
		s.close()
		delete(m.sessions, key)
	}
}
