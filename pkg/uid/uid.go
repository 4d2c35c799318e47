package uid

import "github.com/google/uuid"

// New returns a time-ordered (version 7) UUID string, falling back to a
// random one if the clock source fails. Line item and request ids both
// come from here.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
