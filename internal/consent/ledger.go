package consent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

const DefaultCacheTTL = 30 * time.Second

type cacheEntry struct {
	record    domain.ConsentRecord
	expiresAt time.Time
}

// Publisher announces a changed consent record to the other replicas
// sharing the store.
type Publisher interface {
	PublishInvalidation(ctx context.Context, userID string) error
}

type Option func(*Ledger)

// WithPublisher announces every successful write through p. Replicas
// receiving the announcement call Invalidate.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithoutCache makes every read go to the store. Use it when the store is
// shared and no invalidation channel exists.
func WithoutCache() Option {
	return func(l *Ledger) { l.uncached = true }
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// Ledger owns consent records. Writes go through to the store and replace
// the cached record; reads never mutate anything but the cache.
type Ledger struct {
	store     domain.ConsentStore
	clock     clockwork.Clock
	ttl       time.Duration
	publisher Publisher
	uncached  bool

	mu      sync.RWMutex
	entries map[string]cacheEntry
	gen     uint64 // bumped by Invalidate; loads started earlier are not cached

	locksMu sync.Mutex
	locks   map[string]*userLock

	loads singleflight.Group
}

func NewLedger(store domain.ConsentStore, clock clockwork.Clock, ttl time.Duration, opts ...Option) *Ledger {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	l := &Ledger{
		store:   store,
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		locks:   make(map[string]*userLock),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Set replaces the user's record wholesale and stamps LastUpdated.
func (l *Ledger) Set(ctx context.Context, userID string, record domain.ConsentRecord) (domain.ConsentRecord, error) {
	if userID == "" {
		return domain.ConsentRecord{}, domain.ErrUserIDRequired
	}

	unlock := l.lockUser(userID)
	defer unlock()

	record.UserID = userID
	record.LastUpdated = l.clock.Now().UTC()

	if err := l.store.Put(ctx, record); err != nil {
		return domain.ConsentRecord{}, fmt.Errorf("failed to store consent: %w", err)
	}

	l.put(userID, record)
	l.publish(ctx, userID)
	slog.InfoContext(ctx, "Consent updated", "user_id", userID, "emotion_sensing", record.EmotionSensing,
		"visual", record.Visual, "audio", record.Audio, "biometric", record.Biometric)
	return record, nil
}

// Delete revokes everything; the user falls back to deny-all.
func (l *Ledger) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrUserIDRequired
	}

	unlock := l.lockUser(userID)
	defer unlock()

	if err := l.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete consent: %w", err)
	}

	l.put(userID, domain.DenyAllConsent(userID))
	l.publish(ctx, userID)
	slog.InfoContext(ctx, "Consent revoked", "user_id", userID)
	return nil
}

// Get returns the user's record, or a deny-all record when none exists.
// On store failure the deny-all record is returned together with the error.
func (l *Ledger) Get(ctx context.Context, userID string) (domain.ConsentRecord, error) {
	if l.uncached {
		record, err := l.read(ctx, userID)
		if err != nil {
			return domain.DenyAllConsent(userID), err
		}
		return record, nil
	}

	if record, ok := l.cached(userID); ok {
		return record, nil
	}

	l.mu.RLock()
	gen := l.gen
	l.mu.RUnlock()

	// Loads are shared only within one invalidation generation.
	v, err, _ := l.loads.Do(fmt.Sprintf("%s/%d", userID, gen), func() (any, error) {
		return l.load(ctx, userID, gen)
	})
	if err != nil {
		return domain.DenyAllConsent(userID), err
	}
	return v.(domain.ConsentRecord), nil
}

// Check reports whether channel data may be processed for the user.
func (l *Ledger) Check(ctx context.Context, userID string, channel domain.Channel) (bool, error) {
	record, err := l.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return record.Allows(channel), nil
}

// Invalidate drops the cached record so the next read goes to the store.
func (l *Ledger) Invalidate(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, userID)
	l.gen++
}

func (l *Ledger) read(ctx context.Context, userID string) (domain.ConsentRecord, error) {
	record, err := l.store.Get(ctx, userID)
	if errors.Is(err, domain.ErrConsentNotFound) {
		return domain.DenyAllConsent(userID), nil
	}
	if err != nil {
		return domain.ConsentRecord{}, fmt.Errorf("failed to load consent: %w", err)
	}
	return record, nil
}

func (l *Ledger) load(ctx context.Context, userID string, gen uint64) (domain.ConsentRecord, error) {
	record, err := l.read(ctx, userID)
	if err != nil {
		return domain.ConsentRecord{}, err
	}

	// A concurrent Set or Delete may have landed while we were loading;
	// its record is newer than ours.
	if !l.putIfCurrent(userID, record, gen) {
		return record, nil
	}
	if cached, ok := l.cached(userID); ok {
		return cached, nil
	}
	return record, nil
}

func (l *Ledger) publish(ctx context.Context, userID string) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.PublishInvalidation(ctx, userID); err != nil {
		slog.WarnContext(ctx, "Failed to publish consent invalidation", "user_id", userID, "error", err)
	}
}

func (l *Ledger) cached(userID string) (domain.ConsentRecord, bool) {
	if l.uncached {
		return domain.ConsentRecord{}, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[userID]
	if !ok || l.clock.Now().After(entry.expiresAt) {
		return domain.ConsentRecord{}, false
	}
	return entry.record, true
}

func (l *Ledger) put(userID string, record domain.ConsentRecord) {
	if l.uncached {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[userID] = cacheEntry{record: record, expiresAt: l.clock.Now().Add(l.ttl)}
}

// putIfCurrent caches a loaded record unless an invalidation happened since
// gen was read. It reports false when the record was discarded.
func (l *Ledger) putIfCurrent(userID string, record domain.ConsentRecord, gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.gen != gen {
		return false
	}
	if entry, ok := l.entries[userID]; ok && !l.clock.Now().After(entry.expiresAt) {
		return true
	}
	l.entries[userID] = cacheEntry{record: record, expiresAt: l.clock.Now().Add(l.ttl)}
	return true
}

// lockUser serializes writers of one user. The lock is dropped from the map
// once no writer holds or waits for it.
func (l *Ledger) lockUser(userID string) func() {
	l.locksMu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.locksMu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()

		l.locksMu.Lock()
		defer l.locksMu.Unlock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
	}
}

// EvictExpired drops stale cache entries and returns how many were removed.
func (l *Ledger) EvictExpired() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	evicted := 0
	for userID, entry := range l.entries {
		if now.After(entry.expiresAt) {
			delete(l.entries, userID)
			evicted++
		}
	}
	return evicted
}

// StartEvictionTimer runs a periodic goroutine that evicts expired cache entries.
// Returns a stop function that should be deferred.
func (l *Ledger) StartEvictionTimer(interval time.Duration) func() {
	ticker := l.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				if evicted := l.EvictExpired(); evicted > 0 {
					slog.Debug("Evicted expired consent cache entries", "count", evicted)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}
