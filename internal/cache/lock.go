package cache

import (
	"context"
	"log"
	"math/rand"
	"time"
)

const lockKeyPrefix = "lock:event:"

// EventLocker provides per-event mutual exclusion built on the store's
// SetNX primitive. The lock key carries a short TTL so a holder that dies
// without releasing cannot wedge the event forever; reservation critical
// sections complete in milliseconds, far under the TTL. It is a mutex, not
// a queue – contenders retry rather than wait in order, and the first
// successful SetNX wins.
type EventLocker struct {
	store Store
	ttl   time.Duration

	// sleep is swapped out in tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEventLocker returns a locker whose lock keys expire after ttl.
func NewEventLocker(store Store, ttl time.Duration) *EventLocker {
	return &EventLocker{store: store, ttl: ttl, sleep: sleepContext}
}

func lockKey(eventID string) string {
	return lockKeyPrefix + eventID
}

// Acquire attempts a single conditional set of the event's lock key and
// reports whether this call created it. Store errors are propagated so the
// caller can distinguish contention from infrastructure failure.
func (l *EventLocker) Acquire(ctx context.Context, eventID string) (bool, error) {
	return l.store.SetNX(ctx, lockKey(eventID), []byte("locked"), l.ttl)
}

// AcquireWithRetry calls Acquire up to maxRetries+1 times. After a failed
// attempt it sleeps baseDelay * 2^attempt plus up to 50% random jitter so
// that many buyers contending for a hot event do not retry in lockstep. It
// returns false once all attempts fail.
func (l *EventLocker) AcquireWithRetry(ctx context.Context, eventID string, maxRetries int, baseDelay time.Duration) (bool, error) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		acquired, err := l.Acquire(ctx, eventID)
		if err != nil {
			return false, err
		}
		if acquired {
			return true, nil
		}
		// No sleep after the final failed attempt.
		if attempt < maxRetries {
			delay := baseDelay << attempt
			jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
			if err := l.sleep(ctx, delay+jitter); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

// Release deletes the lock key unconditionally. It must be called on every
// exit path after a successful Acquire. Failures are logged and swallowed:
// the lock TTL is the safety net, and a failed delete must never turn a
// completed reservation into an error.
func (l *EventLocker) Release(ctx context.Context, eventID string) {
	if err := l.store.Del(ctx, lockKey(eventID)); err != nil {
		log.Printf("event-lock: release failed for event %s: %v", eventID, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
