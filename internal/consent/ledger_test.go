package consent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

// --- Mock ConsentStore ---

type mockStore struct {
	getFn    func(ctx context.Context, userID string) (domain.ConsentRecord, error)
	putFn    func(ctx context.Context, record domain.ConsentRecord) error
	deleteFn func(ctx context.Context, userID string) error
}

func (m *mockStore) Get(ctx context.Context, userID string) (domain.ConsentRecord, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return domain.ConsentRecord{}, domain.ErrConsentNotFound
}

func (m *mockStore) Put(ctx context.Context, record domain.ConsentRecord) error {
	if m.putFn != nil {
		return m.putFn(ctx, record)
	}
	return nil
}

func (m *mockStore) Delete(ctx context.Context, userID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID)
	}
	return nil
}

func fullConsent() domain.ConsentRecord {
	return domain.ConsentRecord{
		EmotionSensing: true,
		Visual:         true,
		Audio:          true,
		Biometric:      true,
		DataStorage:    true,
	}
}

func TestLedger_GetUnknownUserDeniesAll(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), clockwork.NewFakeClock(), time.Minute)

	record, err := ledger.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DenyAllConsent("user-1"), record)

	for _, ch := range domain.AllChannels {
		ok, err := ledger.Check(context.Background(), "user-1", ch)
		require.NoError(t, err)
		assert.False(t, ok, "channel %s should be denied", ch)
	}
}

func TestLedger_SetStampsAndOverwrites(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ledger := NewLedger(NewMemoryStore(), clock, time.Minute)
	ctx := context.Background()

	first, err := ledger.Set(ctx, "user-1", fullConsent())
	require.NoError(t, err)
	assert.Equal(t, "user-1", first.UserID)
	assert.Equal(t, clock.Now().UTC(), first.LastUpdated)

	clock.Advance(5 * time.Second)

	// Total overwrite: the second record has only EmotionSensing set.
	second, err := ledger.Set(ctx, "user-1", domain.ConsentRecord{EmotionSensing: true})
	require.NoError(t, err)
	assert.True(t, second.LastUpdated.After(first.LastUpdated))

	got, err := ledger.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, got.Visual)
	assert.False(t, got.Audio)
	assert.True(t, got.EmotionSensing)
}

func TestLedger_SetRequiresUserID(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), clockwork.NewFakeClock(), time.Minute)

	_, err := ledger.Set(context.Background(), "", fullConsent())
	assert.ErrorIs(t, err, domain.ErrUserIDRequired)
}

func TestLedger_SetStoreFailureLeavesCacheUntouched(t *testing.T) {
	store := &mockStore{
		putFn: func(_ context.Context, _ domain.ConsentRecord) error {
			return errors.New("db down")
		},
	}
	ledger := NewLedger(store, clockwork.NewFakeClock(), time.Minute)

	_, err := ledger.Set(context.Background(), "user-1", fullConsent())
	require.Error(t, err)

	ok, err := ledger.Check(context.Background(), "user-1", domain.ChannelVisual)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_CheckChannelMapping(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), clockwork.NewFakeClock(), time.Minute)
	ctx := context.Background()

	_, err := ledger.Set(ctx, "user-1", domain.ConsentRecord{EmotionSensing: true, Audio: true})
	require.NoError(t, err)

	tests := []struct {
		channel domain.Channel
		want    bool
	}{
		{domain.ChannelVisual, false},
		{domain.ChannelAudio, true},
		{domain.ChannelBiometric, false},
		{domain.ChannelContextual, true},
		{domain.ChannelText, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.channel), func(t *testing.T) {
			ok, err := ledger.Check(ctx, "user-1", tt.channel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestLedger_EmotionSensingIsMasterSwitch(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), clockwork.NewFakeClock(), time.Minute)
	ctx := context.Background()

	record := fullConsent()
	record.EmotionSensing = false
	_, err := ledger.Set(ctx, "user-1", record)
	require.NoError(t, err)

	for _, ch := range domain.AllChannels {
		ok, err := ledger.Check(ctx, "user-1", ch)
		require.NoError(t, err)
		assert.False(t, ok, "channel %s should be denied without emotion sensing", ch)
	}
}

func TestLedger_DeleteRevertsToDenyAll(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), clockwork.NewFakeClock(), time.Minute)
	ctx := context.Background()

	_, err := ledger.Set(ctx, "user-1", fullConsent())
	require.NoError(t, err)
	require.NoError(t, ledger.Delete(ctx, "user-1"))

	ok, err := ledger.Check(ctx, "user-1", domain.ChannelVisual)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_ReadsAreCached(t *testing.T) {
	var calls atomic.Int32
	store := &mockStore{
		getFn: func(_ context.Context, userID string) (domain.ConsentRecord, error) {
			calls.Add(1)
			r := fullConsent()
			r.UserID = userID
			return r, nil
		},
	}
	clock := clockwork.NewFakeClock()
	ledger := NewLedger(store, clock, 10*time.Second)
	ctx := context.Background()

	for range 5 {
		_, err := ledger.Get(ctx, "user-1")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(11 * time.Second)
	_, err := ledger.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLedger_StoreErrorFailsClosed(t *testing.T) {
	store := &mockStore{
		getFn: func(_ context.Context, _ string) (domain.ConsentRecord, error) {
			return domain.ConsentRecord{}, errors.New("connection refused")
		},
	}
	ledger := NewLedger(store, clockwork.NewFakeClock(), time.Minute)

	record, err := ledger.Get(context.Background(), "user-1")
	require.Error(t, err)
	assert.False(t, record.EmotionSensing)

	ok, err := ledger.Check(context.Background(), "user-1", domain.ChannelText)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestLedger_ConcurrentSetAndCheck(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), clockwork.NewFakeClock(), time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			r := domain.ConsentRecord{EmotionSensing: true, Visual: i%2 == 0}
			_, _ = ledger.Set(ctx, "user-1", r)
		}(i)
		go func() {
			defer wg.Done()
			_, _ = ledger.Check(ctx, "user-1", domain.ChannelVisual)
		}()
	}
	wg.Wait()

	// Whatever won last must be what both the cache and the store hold.
	cached, err := ledger.Get(ctx, "user-1")
	require.NoError(t, err)
	stored, err := ledger.store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, stored, cached)
}

func TestLedger_EvictExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ledger := NewLedger(NewMemoryStore(), clock, 10*time.Second)
	ctx := context.Background()

	_, err := ledger.Set(ctx, "user-1", fullConsent())
	require.NoError(t, err)
	_, err = ledger.Set(ctx, "user-2", fullConsent())
	require.NoError(t, err)

	assert.Equal(t, 0, ledger.EvictExpired())
	clock.Advance(11 * time.Second)
	assert.Equal(t, 2, ledger.EvictExpired())

	// Evicted entries reload from the store.
	ok, err := ledger.Check(ctx, "user-1", domain.ChannelVisual)
	require.NoError(t, err)
	assert.True(t, ok)
}

// localBus delivers invalidations to every ledger in the process, standing
// in for the Redis channel between replicas.
type localBus struct {
	mu      sync.Mutex
	ledgers []*Ledger
	fail    error
}

func (b *localBus) PublishInvalidation(_ context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	for _, l := range b.ledgers {
		l.Invalidate(userID)
	}
	return nil
}

func (l *Ledger) heldLocks() int {
	l.locksMu.Lock()
	defer l.locksMu.Unlock()
	return len(l.locks)
}

func TestLedger_RevokeOnOneReplicaReachesTheOther(t *testing.T) {
	store := NewMemoryStore()
	clock := clockwork.NewFakeClock()
	bus := &localBus{}
	a := NewLedger(store, clock, time.Minute, WithPublisher(bus))
	b := NewLedger(store, clock, time.Minute, WithPublisher(bus))
	bus.ledgers = []*Ledger{a, b}
	ctx := context.Background()

	_, err := a.Set(ctx, "user-1", domain.ConsentRecord{EmotionSensing: true, Visual: true})
	require.NoError(t, err)

	ok, err := b.Check(ctx, "user-1", domain.ChannelVisual)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, a.Delete(ctx, "user-1"))

	ok, err = b.Check(ctx, "user-1", domain.ChannelVisual)
	require.NoError(t, err)
	assert.False(t, ok, "revoke on one ledger must be visible on the other")
}

func TestLedger_GrantOnOneReplicaReachesTheOther(t *testing.T) {
	store := NewMemoryStore()
	clock := clockwork.NewFakeClock()
	bus := &localBus{}
	a := NewLedger(store, clock, time.Minute, WithPublisher(bus))
	b := NewLedger(store, clock, time.Minute, WithPublisher(bus))
	bus.ledgers = []*Ledger{a, b}
	ctx := context.Background()

	// b caches deny-all first.
	ok, err := b.Check(ctx, "user-1", domain.ChannelAudio)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = a.Set(ctx, "user-1", domain.ConsentRecord{EmotionSensing: true, Audio: true})
	require.NoError(t, err)

	ok, err = b.Check(ctx, "user-1", domain.ChannelAudio)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLedger_PublishFailureKeepsWrite(t *testing.T) {
	bus := &localBus{fail: errors.New("redis down")}
	ledger := NewLedger(NewMemoryStore(), clockwork.NewFakeClock(), time.Minute, WithPublisher(bus))
	ctx := context.Background()

	_, err := ledger.Set(ctx, "user-1", fullConsent())
	require.NoError(t, err)

	ok, err := ledger.Check(ctx, "user-1", domain.ChannelVisual)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLedger_InvalidateDuringLoadIsNotCached(t *testing.T) {
	var calls atomic.Int32
	var ledger *Ledger
	store := &mockStore{
		getFn: func(_ context.Context, userID string) (domain.ConsentRecord, error) {
			if calls.Add(1) == 1 {
				// A write on another replica lands while this read is in flight.
				ledger.Invalidate(userID)
			}
			r := fullConsent()
			r.UserID = userID
			return r, nil
		},
	}
	ledger = NewLedger(store, clockwork.NewFakeClock(), time.Minute)
	ctx := context.Background()

	_, err := ledger.Get(ctx, "user-1")
	require.NoError(t, err)
	_, err = ledger.Get(ctx, "user-1")
	require.NoError(t, err)
	_, err = ledger.Get(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestLedger_WithoutCacheReadsThroughEveryTime(t *testing.T) {
	store := NewMemoryStore()
	clock := clockwork.NewFakeClock()
	a := NewLedger(store, clock, time.Minute, WithoutCache())
	b := NewLedger(store, clock, time.Minute, WithoutCache())
	ctx := context.Background()

	_, err := a.Set(ctx, "user-1", domain.ConsentRecord{EmotionSensing: true, Biometric: true})
	require.NoError(t, err)

	ok, err := b.Check(ctx, "user-1", domain.ChannelBiometric)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, a.Delete(ctx, "user-1"))

	ok, err = b.Check(ctx, "user-1", domain.ChannelBiometric)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_WithoutCacheStoreErrorFailsClosed(t *testing.T) {
	store := &mockStore{
		getFn: func(_ context.Context, _ string) (domain.ConsentRecord, error) {
			return domain.ConsentRecord{}, errors.New("connection refused")
		},
	}
	ledger := NewLedger(store, clockwork.NewFakeClock(), time.Minute, WithoutCache())

	record, err := ledger.Get(context.Background(), "user-1")
	require.Error(t, err)
	assert.Equal(t, domain.DenyAllConsent("user-1"), record)
}

func TestLedger_WriterLocksAreReleased(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), clockwork.NewFakeClock(), time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := "user-" + string(rune('a'+i%10))
			if i%3 == 0 {
				_ = ledger.Delete(ctx, userID)
				return
			}
			_, _ = ledger.Set(ctx, userID, fullConsent())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, ledger.heldLocks())
}
