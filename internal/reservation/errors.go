package reservation

import (
	"errors"
	"fmt"
)

// Business-logic failures are expected outcomes, not exceptional control
// flow. They are distinguishable by kind so the HTTP layer can map each one
// to an appropriate status code: malformed input and referential failures
// are caller errors; ErrEventBusy and InsufficientAvailabilityError are
// transient and safe to retry. Anything else coming out of the engine is an
// infrastructure failure.

// ErrInvalidRequest is returned for malformed input: an empty batch, a
// missing session, or a non-positive quantity.
var ErrInvalidRequest = errors.New("invalid reservation request")

// ErrEventBusy is returned when the event lock could not be acquired after
// all retries. It is the backpressure signal under heavy contention; the
// caller should retry after a short delay.
var ErrEventBusy = errors.New("event is under heavy demand, try again shortly")

// TierNotFoundError is returned when a requested tier index is out of range
// for the event's tier list.
type TierNotFoundError struct {
	TierIndex int
}

func (e *TierNotFoundError) Error() string {
	return fmt.Sprintf("tier at index %d does not exist", e.TierIndex)
}

// CapacityExceededError is returned when a requested quantity exceeds a
// tier's total durable remaining in isolation. It is detected before the
// event lock is ever touched.
type CapacityExceededError struct {
	TierIndex int
	Requested int
	Remaining int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("requested quantity (%d) exceeds remaining tickets (%d) for tier %d",
		e.Requested, e.Remaining, e.TierIndex)
}

// InsufficientAvailabilityError is returned when the admission check under
// the lock fails because concurrent holds or sales consumed the remaining
// capacity between the caller's read and now.
type InsufficientAvailabilityError struct {
	TierIndex int
	Available int
	Requested int
}

func (e *InsufficientAvailabilityError) Error() string {
	return fmt.Sprintf("only %d tickets available for tier %d, requested %d",
		e.Available, e.TierIndex, e.Requested)
}
