package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aurelia-events/ticketing/internal/cache"
)

// stepClock is a manually-advanced clock for exercising TTL expiry.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock(t time.Time) *stepClock { return &stepClock{now: t.UTC()} }

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestHoldStore(ttl time.Duration) (*HoldStore, *stepClock) {
	clk := newStepClock(time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC))
	return NewHoldStore(cache.NewMemory(clk), clk, ttl), clk
}

func TestWriteHoldReplacesPriorHold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newTestHoldStore(20 * time.Minute)

	_, err := store.WriteHold(ctx, "event-1", "sess-1", []TierRequest{{TierIndex: 0, Quantity: 2}})
	require.NoError(t, err)

	_, err = store.WriteHold(ctx, "event-1", "sess-1", []TierRequest{{TierIndex: 1, Quantity: 4}})
	require.NoError(t, err)

	hold, ok, err := store.SessionHold(ctx, "event-1", "sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []TierRequest{{TierIndex: 1, Quantity: 4}}, hold.Entries,
		"a new hold must overwrite, not merge")
}

func TestActiveHoldsListsAllSessions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newTestHoldStore(20 * time.Minute)

	_, err := store.WriteHold(ctx, "event-1", "sess-1", []TierRequest{{TierIndex: 0, Quantity: 2}})
	require.NoError(t, err)
	_, err = store.WriteHold(ctx, "event-1", "sess-2", []TierRequest{{TierIndex: 0, Quantity: 3}})
	require.NoError(t, err)
	_, err = store.WriteHold(ctx, "event-2", "sess-3", []TierRequest{{TierIndex: 0, Quantity: 9}})
	require.NoError(t, err)

	holds, err := store.ActiveHolds(ctx, "event-1")
	require.NoError(t, err)
	require.Len(t, holds, 2, "holds of other events must not leak in")
	require.Equal(t, 5, ReservedByTier(holds)[0])
}

func TestHoldsExpire(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, clk := newTestHoldStore(20 * time.Minute)

	_, err := store.WriteHold(ctx, "event-1", "sess-1", []TierRequest{{TierIndex: 0, Quantity: 2}})
	require.NoError(t, err)

	clk.Advance(20*time.Minute + time.Second)

	_, ok, err := store.SessionHold(ctx, "event-1", "sess-1")
	require.NoError(t, err)
	require.False(t, ok)

	holds, err := store.ActiveHolds(ctx, "event-1")
	require.NoError(t, err)
	require.Empty(t, holds)
}

func TestWriteHoldResetsTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, clk := newTestHoldStore(20 * time.Minute)

	_, err := store.WriteHold(ctx, "event-1", "sess-1", []TierRequest{{TierIndex: 0, Quantity: 2}})
	require.NoError(t, err)

	// Rewriting just before expiry starts a fresh 20 minutes.
	clk.Advance(19 * time.Minute)
	_, err = store.WriteHold(ctx, "event-1", "sess-1", []TierRequest{{TierIndex: 0, Quantity: 2}})
	require.NoError(t, err)

	clk.Advance(19 * time.Minute)
	_, ok, err := store.SessionHold(ctx, "event-1", "sess-1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDeleteHoldIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newTestHoldStore(20 * time.Minute)

	require.NoError(t, store.DeleteHold(ctx, "event-1", "never-existed"))

	_, err := store.WriteHold(ctx, "event-1", "sess-1", []TierRequest{{TierIndex: 0, Quantity: 1}})
	require.NoError(t, err)
	require.NoError(t, store.DeleteHold(ctx, "event-1", "sess-1"))
	require.NoError(t, store.DeleteHold(ctx, "event-1", "sess-1"))

	_, ok, err := store.SessionHold(ctx, "event-1", "sess-1")
	require.NoError(t, err)
	require.False(t, ok)
}
