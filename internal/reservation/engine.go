package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/aurelia-events/ticketing/internal/cache"
	"github.com/aurelia-events/ticketing/internal/model"
)

// TierSource supplies the durable tier snapshot for an event: per-tier
// remaining counts as of the last durable write. Implemented by
// repository.EventRepo in production and by in-memory fakes in tests.
type TierSource interface {
	FindEventTiers(ctx context.Context, eventID string) ([]model.TicketTier, error)
}

const (
	defaultLockMaxRetries = 4
	defaultLockBaseDelay  = 100 * time.Millisecond
)

// Engine orchestrates reservations: it composes the per-event lock, the
// durable tier source, the availability calculator and the hold store.
// Operations on different events are fully independent; operations on the
// same event are serialized only for the critical section between lock
// acquisition and hold write.
type Engine struct {
	tiers TierSource
	locks *cache.EventLocker
	holds *HoldStore

	lockMaxRetries int
	lockBaseDelay  time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLockRetry overrides how persistently the engine contends for the
// event lock before giving up with ErrEventBusy.
func WithLockRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(e *Engine) {
		if maxRetries >= 0 {
			e.lockMaxRetries = maxRetries
		}
		if baseDelay > 0 {
			e.lockBaseDelay = baseDelay
		}
	}
}

// NewEngine constructs a reservation engine. All collaborators must be
// non-nil. Reservation timestamps come from the hold store's clock.
func NewEngine(tiers TierSource, locks *cache.EventLocker, holds *HoldStore, opts ...Option) *Engine {
	if tiers == nil || locks == nil || holds == nil {
		panic("nil collaborator passed to NewEngine")
	}
	e := &Engine{
		tiers:          tiers,
		locks:          locks,
		holds:          holds,
		lockMaxRetries: defaultLockMaxRetries,
		lockBaseDelay:  defaultLockBaseDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Receipt is the handle returned for a successful reservation. There is no
// separate reservation ID: the session key is the handle, and CreatedAt
// lets clients synchronize their countdown timers with the server clock.
type Receipt struct {
	SessionID string
	CreatedAt time.Time
}

// ReserveBatch atomically replaces the session's hold with the given
// entries, admitting the batch only if every tier has enough availability.
// Either the whole batch is written or nothing is.
//
// Failure kinds: ErrInvalidRequest for malformed input, repository's
// ErrEventNotFound / TierNotFoundError / CapacityExceededError for requests
// that are structurally impossible against the current durable snapshot
// (all checked before the lock is touched), ErrEventBusy when lock retries
// are exhausted, and InsufficientAvailabilityError when concurrent holds or
// sales consumed the capacity.
func (e *Engine) ReserveBatch(ctx context.Context, eventID, sessionID string, requests []TierRequest) (Receipt, error) {
	if eventID == "" || sessionID == "" {
		return Receipt{}, fmt.Errorf("%w: event and session are required", ErrInvalidRequest)
	}
	if len(requests) == 0 {
		return Receipt{}, fmt.Errorf("%w: at least one reservation is required", ErrInvalidRequest)
	}
	for _, req := range requests {
		if req.Quantity <= 0 {
			return Receipt{}, fmt.Errorf("%w: quantity must be greater than 0", ErrInvalidRequest)
		}
	}

	// Cheap pre-check against the current durable snapshot. Catches
	// requests that could never succeed without costing anyone the lock.
	tiers, err := e.tiers.FindEventTiers(ctx, eventID)
	if err != nil {
		return Receipt{}, err
	}
	if _, err := ValidateTiersAndCapacities(requests, tiers); err != nil {
		return Receipt{}, err
	}

	acquired, err := e.locks.AcquireWithRetry(ctx, eventID, e.lockMaxRetries, e.lockBaseDelay)
	if err != nil {
		return Receipt{}, fmt.Errorf("acquire event lock: %w", err)
	}
	if !acquired {
		return Receipt{}, ErrEventBusy
	}
	// Release on every exit path. WithoutCancel so a caller that gave up
	// mid-flight still releases promptly instead of leaning on the TTL.
	defer e.locks.Release(context.WithoutCancel(ctx), eventID)

	// Re-read the durable snapshot under the lock: sales may have completed
	// between the pre-check and acquisition.
	freshTiers, err := e.tiers.FindEventTiers(ctx, eventID)
	if err != nil {
		return Receipt{}, err
	}
	validations, err := ValidateTiersAndCapacities(requests, freshTiers)
	if err != nil {
		return Receipt{}, err
	}
	freshRemaining := make([]int, len(validations))
	for i, v := range validations {
		freshRemaining[i] = v.Remaining
	}

	activeHolds, err := e.holds.ActiveHolds(ctx, eventID)
	if err != nil {
		return Receipt{}, err
	}

	availability := CalculateTierAvailability(validations, freshRemaining, activeHolds)
	if err := ValidateAvailability(GroupReservationsByTier(requests), availability); err != nil {
		return Receipt{}, err
	}

	hold, err := e.holds.WriteHold(ctx, eventID, sessionID, requests)
	if err != nil {
		return Receipt{}, fmt.Errorf("write hold: %w", err)
	}
	return Receipt{SessionID: sessionID, CreatedAt: hold.CreatedAt}, nil
}

// ReserveSingle reserves one tier; it is sugar over ReserveBatch and
// semantically identical to a one-entry batch.
func (e *Engine) ReserveSingle(ctx context.Context, eventID, sessionID string, tierIndex, quantity int) (Receipt, error) {
	return e.ReserveBatch(ctx, eventID, sessionID, []TierRequest{{TierIndex: tierIndex, Quantity: quantity}})
}

// SessionReservations returns the session's current entries. It takes no
// lock: the read only feeds display, so the ephemeral store's own
// consistency is sufficient.
func (e *Engine) SessionReservations(ctx context.Context, eventID, sessionID string) ([]TierRequest, error) {
	hold, ok, err := e.holds.SessionHold(ctx, eventID, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return hold.Entries, nil
}

// ClearSession deletes the session's hold, used after a completed purchase
// or an explicit cart clear. No lock is needed: removing one session's own
// record can only free capacity, never invalidate admission decisions
// already made for other sessions.
func (e *Engine) ClearSession(ctx context.Context, eventID, sessionID string) error {
	return e.holds.DeleteHold(ctx, eventID, sessionID)
}

// HoldStore exposes the engine's hold store for read-side consumers such as
// the availability endpoints.
func (e *Engine) HoldStore() *HoldStore {
	return e.holds
}
