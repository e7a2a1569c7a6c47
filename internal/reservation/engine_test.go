package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aurelia-events/ticketing/internal/cache"
	"github.com/aurelia-events/ticketing/internal/model"
	"github.com/aurelia-events/ticketing/internal/repository"
)

// fakeTierSource serves durable tier snapshots from memory and counts
// reads so tests can assert what the engine touched.
type fakeTierSource struct {
	mu    sync.Mutex
	tiers map[string][]model.TicketTier
	calls int
}

func (f *fakeTierSource) FindEventTiers(ctx context.Context, eventID string) ([]model.TicketTier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	tiers, ok := f.tiers[eventID]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	return append([]model.TicketTier(nil), tiers...), nil
}

func (f *fakeTierSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// countingStore counts every store operation on top of a real Store.
type countingStore struct {
	inner cache.Store
	mu    sync.Mutex
	ops   map[string]int
}

func newCountingStore(inner cache.Store) *countingStore {
	return &countingStore{inner: inner, ops: make(map[string]int)}
}

func (s *countingStore) count(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops[op]++
}

func (s *countingStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.ops {
		n += c
	}
	return n
}

func (s *countingStore) opCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops[op]
}

func (s *countingStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.count("setnx")
	return s.inner.SetNX(ctx, key, value, ttl)
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.count("set")
	return s.inner.Set(ctx, key, value, ttl)
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.count("get")
	return s.inner.Get(ctx, key)
}

func (s *countingStore) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	s.count("mget")
	return s.inner.MGet(ctx, keys)
}

func (s *countingStore) Del(ctx context.Context, keys ...string) error {
	s.count("del")
	return s.inner.Del(ctx, keys...)
}

func (s *countingStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	s.count("keys")
	return s.inner.Keys(ctx, pattern)
}

type engineFixture struct {
	engine *Engine
	tiers  *fakeTierSource
	store  *countingStore
	locker *cache.EventLocker
	clock  *stepClock
}

func newEngineFixture(t *testing.T, tiers map[string][]model.TicketTier) *engineFixture {
	t.Helper()
	clk := newStepClock(time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC))
	store := newCountingStore(cache.NewMemory(clk))
	locker := cache.NewEventLocker(store, 30*time.Second)
	holds := NewHoldStore(store, clk, 20*time.Minute)
	source := &fakeTierSource{tiers: tiers}
	engine := NewEngine(source, locker, holds, WithLockRetry(4, time.Millisecond))
	return &engineFixture{engine: engine, tiers: source, store: store, locker: locker, clock: clk}
}

func singleTierEvent(remaining int) map[string][]model.TicketTier {
	return map[string][]model.TicketTier{
		"event-1": {
			{TierIndex: 0, Name: "General Admission", PriceCents: 5000, Capacity: 100, Remaining: remaining},
		},
	}
}

func TestReserveSingleSucceeds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newEngineFixture(t, singleTierEvent(5))

	receipt, err := fx.engine.ReserveSingle(ctx, "event-1", "sess-1", 0, 5)
	require.NoError(t, err)
	require.Equal(t, "sess-1", receipt.SessionID)
	require.Equal(t, fx.clock.Now(), receipt.CreatedAt)

	entries, err := fx.engine.SessionReservations(ctx, "event-1", "sess-1")
	require.NoError(t, err)
	require.Equal(t, []TierRequest{{TierIndex: 0, Quantity: 5}}, entries)
}

func TestNoOversellAcrossSessions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newEngineFixture(t, singleTierEvent(5))

	_, err := fx.engine.ReserveSingle(ctx, "event-1", "sess-1", 0, 5)
	require.NoError(t, err)

	// The whole tier is held; the next buyer must be turned away even
	// though the durable remaining is still 5.
	_, err = fx.engine.ReserveSingle(ctx, "event-1", "sess-2", 0, 1)
	var availErr *InsufficientAvailabilityError
	require.ErrorAs(t, err, &availErr)
	require.Equal(t, 0, availErr.Available)
	require.Equal(t, 1, availErr.Requested)
}

func TestReserveOverwritesSessionHold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newEngineFixture(t, map[string][]model.TicketTier{
		"event-1": {
			{TierIndex: 0, Name: "GA", PriceCents: 5000, Capacity: 10, Remaining: 5},
			{TierIndex: 1, Name: "VIP", PriceCents: 9000, Capacity: 10, Remaining: 5},
		},
	})

	_, err := fx.engine.ReserveSingle(ctx, "event-1", "sess-1", 0, 5)
	require.NoError(t, err)
	_, err = fx.engine.ReserveSingle(ctx, "event-1", "sess-1", 1, 2)
	require.NoError(t, err)

	entries, err := fx.engine.SessionReservations(ctx, "event-1", "sess-1")
	require.NoError(t, err)
	require.Equal(t, []TierRequest{{TierIndex: 1, Quantity: 2}}, entries,
		"reserving again must replace the cart, not merge")

	// The overwrite released tier 0 entirely: another session can take all 5.
	_, err = fx.engine.ReserveSingle(ctx, "event-1", "sess-2", 0, 5)
	require.NoError(t, err)
}

func TestBatchIsAtomic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newEngineFixture(t, map[string][]model.TicketTier{
		"event-1": {
			{TierIndex: 0, Name: "GA", PriceCents: 5000, Capacity: 10, Remaining: 5},
			{TierIndex: 1, Name: "VIP", PriceCents: 9000, Capacity: 10, Remaining: 5},
		},
	})

	// Another buyer holds 3 VIP, leaving 2 available there.
	_, err := fx.engine.ReserveSingle(ctx, "event-1", "sess-other", 1, 3)
	require.NoError(t, err)

	// Tier 0 alone would succeed, but tier 1 fails admission - so nothing
	// may be written for either.
	_, err = fx.engine.ReserveBatch(ctx, "event-1", "sess-1", []TierRequest{
		{TierIndex: 0, Quantity: 1},
		{TierIndex: 1, Quantity: 3},
	})
	var availErr *InsufficientAvailabilityError
	require.ErrorAs(t, err, &availErr)
	require.Equal(t, 1, availErr.TierIndex)

	entries, err := fx.engine.SessionReservations(ctx, "event-1", "sess-1")
	require.NoError(t, err)
	require.Empty(t, entries, "a failed batch must hold nothing, not a partial cart")
}

func TestBatchRejectedOutrightOnImpossibleQuantity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newEngineFixture(t, map[string][]model.TicketTier{
		"event-1": {
			{TierIndex: 0, Name: "GA", PriceCents: 5000, Capacity: 10, Remaining: 5},
			{TierIndex: 1, Name: "VIP", PriceCents: 9000, Capacity: 10, Remaining: 5},
		},
	})

	_, err := fx.engine.ReserveBatch(ctx, "event-1", "sess-1", []TierRequest{
		{TierIndex: 0, Quantity: 1},
		{TierIndex: 1, Quantity: 1000},
	})
	var capErr *CapacityExceededError
	require.ErrorAs(t, err, &capErr)
	require.Equal(t, 1, capErr.TierIndex)

	// Structurally impossible requests are rejected before the lock is
	// ever contended.
	require.Zero(t, fx.store.opCount("setnx"), "capacity pre-check must not touch the lock")

	entries, err := fx.engine.SessionReservations(ctx, "event-1", "sess-1")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestEmptyBatchRejectedBeforeAnyStoreAccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newEngineFixture(t, singleTierEvent(5))

	_, err := fx.engine.ReserveBatch(ctx, "event-1", "sess-1", nil)
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.Zero(t, fx.store.total(), "empty batch must be rejected before any store call")
	require.Zero(t, fx.tiers.callCount(), "empty batch must be rejected before any durable read")
}

func TestNonPositiveQuantityRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newEngineFixture(t, singleTierEvent(5))

	_, err := fx.engine.ReserveSingle(ctx, "event-1", "sess-1", 0, 0)
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = fx.engine.ReserveSingle(ctx, "event-1", "sess-1", 0, -3)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUnknownEventAndTier(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newEngineFixture(t, map[string][]model.TicketTier{
		"event-1": {
			{TierIndex: 0, Name: "GA", Remaining: 5},
			{TierIndex: 1, Name: "VIP", Remaining: 5},
			{TierIndex: 2, Name: "Backstage", Remaining: 5},
		},
	})

	_, err := fx.engine.ReserveSingle(ctx, "no-such-event", "sess-1", 0, 1)
	require.ErrorIs(t, err, repository.ErrEventNotFound)

	_, err = fx.engine.ReserveSingle(ctx, "event-1", "sess-1", 7, 1)
	var tierErr *TierNotFoundError
	require.ErrorAs(t, err, &tierErr)
	require.Equal(t, 7, tierErr.TierIndex)
}

func TestEventBusyWhenLockHeld(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newEngineFixture(t, singleTierEvent(5))

	// A stuck holder keeps the lock for the whole test.
	acquired, err := fx.locker.Acquire(ctx, "event-1")
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = fx.engine.ReserveSingle(ctx, "event-1", "sess-1", 0, 1)
	require.ErrorIs(t, err, ErrEventBusy)

	// Nothing was held despite the pre-checks having passed.
	entries, err := fx.engine.SessionReservations(ctx, "event-1", "sess-1")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestLockReleasedAfterFailedAdmission(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newEngineFixture(t, singleTierEvent(5))

	_, err := fx.engine.ReserveSingle(ctx, "event-1", "sess-1", 0, 5)
	require.NoError(t, err)

	_, err = fx.engine.ReserveSingle(ctx, "event-1", "sess-2", 0, 1)
	var availErr *InsufficientAvailabilityError
	require.ErrorAs(t, err, &availErr)

	// The failed admission released the lock: a fresh acquire succeeds
	// immediately, without waiting out the lock TTL.
	acquired, err := fx.locker.Acquire(ctx, "event-1")
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestExpiredHoldsFreeCapacity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newEngineFixture(t, singleTierEvent(5))

	_, err := fx.engine.ReserveSingle(ctx, "event-1", "sess-1", 0, 5)
	require.NoError(t, err)

	fx.clock.Advance(20*time.Minute + time.Second)

	_, err = fx.engine.ReserveSingle(ctx, "event-1", "sess-2", 0, 5)
	require.NoError(t, err, "an expired hold must no longer count against availability")
}

func TestClearSessionIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newEngineFixture(t, singleTierEvent(5))

	require.NoError(t, fx.engine.ClearSession(ctx, "event-1", "never-reserved"))

	_, err := fx.engine.ReserveSingle(ctx, "event-1", "sess-1", 0, 3)
	require.NoError(t, err)
	require.NoError(t, fx.engine.ClearSession(ctx, "event-1", "sess-1"))
	require.NoError(t, fx.engine.ClearSession(ctx, "event-1", "sess-1"))

	entries, err := fx.engine.SessionReservations(ctx, "event-1", "sess-1")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestConcurrentReservationsNeverJointlyOversell(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newEngineFixture(t, singleTierEvent(5))

	// Each request is individually valid (3 <= 5) but together they exceed
	// the tier. Exactly one may win.
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, session := range []string{"sess-a", "sess-b"} {
		wg.Add(1)
		go func(session string) {
			defer wg.Done()
			_, err := fx.engine.ReserveSingle(ctx, "event-1", session, 0, 3)
			results <- err
		}(session)
	}
	wg.Wait()
	close(results)

	var successes, insufficient int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var availErr *InsufficientAvailabilityError
		require.ErrorAs(t, err, &availErr)
		insufficient++
	}
	require.Equal(t, 1, successes, "exactly one contender must win")
	require.Equal(t, 1, insufficient, "the loser must fail admission, not oversell")

	holds, err := fx.engine.HoldStore().ActiveHolds(ctx, "event-1")
	require.NoError(t, err)
	require.Equal(t, 3, ReservedByTier(holds)[0], "total held must stay within remaining")
}
