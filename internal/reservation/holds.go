package reservation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aurelia-events/ticketing/internal/cache"
	"github.com/aurelia-events/ticketing/internal/clock"
)

const holdKeyPrefix = "reservation:event:"

// Hold is one session's current cart for an event: the full list of
// (tier, quantity) entries it has claimed. There is exactly one hold per
// (event, session) – writing a new hold replaces the previous one entirely.
type Hold struct {
	SessionID string        `json:"session_id"`
	Entries   []TierRequest `json:"entries"`
	CreatedAt time.Time     `json:"created_at"`
}

// HoldStore manages the ephemeral hold records. Each hold lives under a
// single session-scoped key with a fixed TTL, so expiry is handled entirely
// by the store and enumeration is one key per active session, never one key
// per individual reservation.
type HoldStore struct {
	store cache.Store
	clock clock.Clock
	ttl   time.Duration
}

// NewHoldStore returns a HoldStore whose holds expire after ttl.
func NewHoldStore(store cache.Store, clk clock.Clock, ttl time.Duration) *HoldStore {
	return &HoldStore{store: store, clock: clk, ttl: ttl}
}

func holdKey(eventID, sessionID string) string {
	return fmt.Sprintf("%s%s:session:%s", holdKeyPrefix, eventID, sessionID)
}

func sessionPattern(eventID string) string {
	return fmt.Sprintf("%s%s:session:*", holdKeyPrefix, eventID)
}

// ActiveHolds returns all non-expired holds for the event. Keys are
// enumerated by pattern and bulk-read in one multi-get; entries that
// expired between the two calls simply come back absent and are skipped.
// Records that fail to decode are skipped with a log line rather than
// failing the read – one corrupt cart must not block admission for the
// whole event.
func (s *HoldStore) ActiveHolds(ctx context.Context, eventID string) ([]Hold, error) {
	keys, err := s.store.Keys(ctx, sessionPattern(eventID))
	if err != nil {
		return nil, fmt.Errorf("list hold keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.store.MGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read holds: %w", err)
	}
	holds := make([]Hold, 0, len(values))
	for i, value := range values {
		if value == nil {
			continue
		}
		var hold Hold
		if err := json.Unmarshal(value, &hold); err != nil {
			log.Printf("hold-store: skipping undecodable hold %s: %v", keys[i], err)
			continue
		}
		holds = append(holds, hold)
	}
	return holds, nil
}

// SessionHold returns the session's current hold, reporting false when the
// session has none (or it has expired).
func (s *HoldStore) SessionHold(ctx context.Context, eventID, sessionID string) (Hold, bool, error) {
	value, ok, err := s.store.Get(ctx, holdKey(eventID, sessionID))
	if err != nil {
		return Hold{}, false, err
	}
	if !ok {
		return Hold{}, false, nil
	}
	var hold Hold
	if err := json.Unmarshal(value, &hold); err != nil {
		return Hold{}, false, fmt.Errorf("decode hold: %w", err)
	}
	return hold, true, nil
}

// WriteHold creates or replaces the session's hold with the given entries
// and resets its TTL. It is the sole mutation point for holds and must only
// be called while the caller holds the event's lock; that discipline is
// what makes the admission invariant hold.
func (s *HoldStore) WriteHold(ctx context.Context, eventID, sessionID string, entries []TierRequest) (Hold, error) {
	hold := Hold{
		SessionID: sessionID,
		Entries:   entries,
		CreatedAt: s.clock.Now(),
	}
	value, err := json.Marshal(hold)
	if err != nil {
		return Hold{}, fmt.Errorf("encode hold: %w", err)
	}
	if err := s.store.Set(ctx, holdKey(eventID, sessionID), value, s.ttl); err != nil {
		return Hold{}, err
	}
	return hold, nil
}

// DeleteHold removes the session's hold. Deleting an absent hold is not an
// error, so the operation is idempotent.
func (s *HoldStore) DeleteHold(ctx context.Context, eventID, sessionID string) error {
	return s.store.Del(ctx, holdKey(eventID, sessionID))
}
