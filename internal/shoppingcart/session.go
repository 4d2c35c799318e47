package shoppingcart

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"wpcom-shopping-cart/internal/model"
)

type flightKind int

const (
	flightFetch flightKind = iota
	flightUpdate
)

func (k flightKind) String() string {
	if k == flightFetch {
		return "fetch"
	}
	return "update"
}

// pendingAction is a queued action and its completion handle. err is set when
// the action failed to apply; it is reported in order with the rest of its batch.
type pendingAction struct {
	action     action
	completion *Completion
	err        error
}

// flight is the single request in progress for a session.
type flight struct {
	kind    flightKind
	actions []*pendingAction
}

// session is the cart store for one cart key: the confirmed cart, the
// mutation queue and the subscriber list. All fields below mu are guarded
// by it; network calls never run with it held.
type session struct {
	key    model.CartKey
	client CartClient
	opts   Options
	log    *logrus.Entry
	tracer trace.Tracer

	mu          sync.Mutex
	state       *State
	queue       []*pendingAction
	current     *flight
	subscribers map[uint64]*Subscription
	nextID      uint64
	closed      bool
}

func newSession(key model.CartKey, client CartClient, opts Options, log *logrus.Entry, tracer trace.Tracer) *session {
	return &session{
		key:         key,
		client:      client,
		opts:        opts,
		log:         log.WithField("cart_key", string(key)),
		tracer:      tracer,
		state:       &State{Cart: model.EmptyResponseCart(key), Status: StatusUninitialized},
		subscribers: make(map[uint64]*Subscription),
	}
}

func (s *session) snapshot() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// subscribe registers a subscriber and starts the initial load on first use.
func (s *session) subscribe(release func(*Subscription)) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	sub := newSubscription(s, s.nextID, release)
	s.subscribers[sub.id] = sub
	sub.push(s.state)

	if s.state.Status == StatusUninitialized {
		s.setStateLocked(s.state.Cart, StatusLoading, nil)
		s.startFlightLocked(flightFetch, nil, nil)
	}
	return sub
}

// unsubscribe removes a subscriber and returns how many remain.
func (s *session) unsubscribe(sub *Subscription) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscribers[sub.id]; ok {
		delete(s.subscribers, sub.id)
		close(sub.updates)
	}
	return len(s.subscribers)
}

// close rejects queued actions. An in-flight request is left to finish.
func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for _, pa := range s.queue {
		pa.completion.resolve(ErrSessionClosed)
	}
	s.queue = nil
	s.log.Debug("Cart session closed")
}

// enqueue validates a mutation and queues it for the next batch.
func (s *session) enqueue(a action) *Completion {
	if err := a.validate(); err != nil {
		s.log.WithError(err).WithField("action", a.name()).Debug("Rejected invalid cart action")
		return settled(err)
	}

	c := newCompletion()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		c.resolve(ErrSessionClosed)
		return c
	}
	if s.state.Status == StatusError {
		c.resolve(fmt.Errorf("%w: %v", ErrCartInError, s.state.Err))
		return c
	}

	s.queue = append(s.queue, &pendingAction{action: a, completion: c})
	if s.state.Status == StatusValid {
		s.setStateLocked(s.state.Cart, StatusPendingUpdate, nil)
	}
	s.drainLocked()
	return c
}

// reload queues an explicit reload. It joins a fetch already in flight
// instead of issuing a second request, and is the only way out of StatusError.
func (s *session) reload() *Completion {
	c := newCompletion()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		c.resolve(ErrSessionClosed)
		return c
	}

	pa := &pendingAction{action: reloadAction{}, completion: c}
	// Joining is only safe when nothing is queued ahead of the reload.
	if s.current != nil && s.current.kind == flightFetch && len(s.queue) == 0 {
		s.current.actions = append(s.current.actions, pa)
		if s.state.Status == StatusValid {
			s.setStateLocked(s.state.Cart, StatusPendingUpdate, nil)
		}
		return c
	}

	switch s.state.Status {
	case StatusError:
		s.setStateLocked(s.state.Cart, StatusLoading, nil)
	case StatusValid:
		s.setStateLocked(s.state.Cart, StatusPendingUpdate, nil)
	}
	s.queue = append(s.queue, pa)
	s.drainLocked()
	return c
}

// drainLocked turns the queue into the next request when nothing is in flight.
func (s *session) drainLocked() {
	if s.current != nil || len(s.queue) == 0 || s.closed {
		return
	}

	batch := s.queue
	s.queue = nil

	working := s.state.Cart.ToRequestCart()
	hasMutation, hasReload := false, false
	for _, pa := range batch {
		if isReload(pa.action) {
			hasReload = true
			continue
		}
		if err := pa.action.apply(working); err != nil {
			s.log.WithError(err).WithField("action", pa.action.name()).Debug("Cart action could not be applied")
			pa.err = err
			continue
		}
		hasMutation = true
	}

	switch {
	case hasMutation:
		s.startFlightLocked(flightUpdate, batch, working)
	case hasReload:
		s.startFlightLocked(flightFetch, batch, nil)
	default:
		// Every action failed to apply; there is nothing to send.
		if s.state.Status == StatusPendingUpdate {
			s.setStateLocked(s.state.Cart, StatusValid, nil)
		}
		for _, pa := range batch {
			pa.completion.resolve(pa.err)
		}
	}
}

func (s *session) startFlightLocked(kind flightKind, actions []*pendingAction, body *model.RequestCart) {
	f := &flight{kind: kind, actions: actions}
	s.current = f
	go s.run(f, len(actions), body)
}

// run performs the round trip for a flight and stores the result. Reloads may
// join f while it runs, so batchSize is captured when the flight starts.
func (s *session) run(f *flight, batchSize int, body *model.RequestCart) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RequestTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "shoppingcart."+f.kind.String(), trace.WithAttributes(
		attribute.String("cart.key", string(s.key)),
		attribute.Int("cart.batch_size", batchSize),
	))
	defer span.End()

	var (
		cart *model.ResponseCart
		err  error
	)
	if f.kind == flightFetch {
		cart, err = s.getCart(ctx)
	} else {
		cart, err = s.client.SetCart(ctx, s.key, body)
	}
	if err == nil && cart == nil {
		err = ErrEmptyResponse
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	s.finish(f, cart, err)
}

func (s *session) getCart(ctx context.Context) (*model.ResponseCart, error) {
	if s.opts.GetCartOverride != nil {
		return s.opts.GetCartOverride(ctx, s.key)
	}
	return s.client.GetCart(ctx, s.key)
}

// finish swaps in the server response, then settles the flight's actions in
// the order they were queued.
func (s *session) finish(f *flight, cart *model.ResponseCart, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil

	if err != nil {
		s.failLocked(f, err)
		return
	}

	status := StatusValid
	if len(s.queue) > 0 && !s.closed {
		status = StatusPendingUpdate
	}
	s.setStateLocked(cart, status, nil)
	s.log.WithFields(logrus.Fields{
		"kind":     f.kind.String(),
		"products": len(cart.Products),
		"actions":  len(f.actions),
	}).Debug("Cart synced")

	for _, pa := range f.actions {
		if pa.err != nil {
			pa.completion.resolve(pa.err)
			continue
		}
		pa.completion.resolve(pa.action.verify(cart))
	}
	s.drainLocked()
}

// failLocked moves the session to StatusError, keeping the last good cart.
// Queued mutations are rejected; queued reloads retry straight away.
func (s *session) failLocked(f *flight, err error) {
	s.log.WithError(err).WithField("kind", f.kind.String()).Warn("Cart sync failed")

	s.setStateLocked(s.state.Cart, StatusError, err)
	for _, pa := range f.actions {
		if pa.err != nil {
			pa.completion.resolve(pa.err)
			continue
		}
		pa.completion.resolve(err)
	}

	var retries []*pendingAction
	for _, pa := range s.queue {
		if isReload(pa.action) {
			retries = append(retries, pa)
			continue
		}
		pa.completion.resolve(fmt.Errorf("%w: %v", ErrCartInError, err))
	}
	s.queue = retries

	if len(retries) > 0 && !s.closed {
		s.setStateLocked(s.state.Cart, StatusLoading, nil)
		s.drainLocked()
	}
}

// setStateLocked publishes a new snapshot to every subscriber.
func (s *session) setStateLocked(cart *model.ResponseCart, status Status, err error) {
	s.state = &State{Cart: cart, Status: status, Err: err}
	for _, sub := range s.subscribers {
		sub.push(s.state)
	}
}
