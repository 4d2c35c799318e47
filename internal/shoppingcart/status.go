package shoppingcart

import "wpcom-shopping-cart/internal/model"

// Status is the lifecycle state of a cart session.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusLoading       Status = "loading"
	StatusValid         Status = "valid"
	StatusPendingUpdate Status = "pending-update"
	StatusError         Status = "error"
)

// State is an immutable snapshot of a cart session. Every subscriber of a
// cart key receives the same *State after each transition.
type State struct {
	Cart   *model.ResponseCart
	Status Status
	// Err holds the failure that moved the session to StatusError.
	Err error
}

// IsLoading reports whether the first load has not finished yet.
func (s *State) IsLoading() bool {
	return s.Status == StatusUninitialized || s.Status == StatusLoading
}

// IsPendingUpdate reports whether a mutation or reload is queued or in flight.
func (s *State) IsPendingUpdate() bool {
	return s.Status == StatusPendingUpdate
}
