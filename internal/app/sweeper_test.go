package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/adapter/metrics"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

type mockConversationIndex struct {
	mu       sync.Mutex
	users    []string
	deleted  []string
	deleteFn func(userID string) error
}

func (m *mockConversationIndex) ForEachUser(_ context.Context, fn func(string) error) error {
	m.mu.Lock()
	users := append([]string(nil), m.users...)
	m.mu.Unlock()
	for _, u := range users {
		if err := fn(u); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockConversationIndex) Delete(_ context.Context, userID string) error {
	if m.deleteFn != nil {
		if err := m.deleteFn(userID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, userID)
	return nil
}

func (m *mockConversationIndex) deletedUsers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

type mockConsentReader struct {
	getFn func(userID string) (domain.ConsentRecord, error)
}

func (m *mockConsentReader) Get(_ context.Context, userID string) (domain.ConsentRecord, error) {
	return m.getFn(userID)
}

func consentsFor(records map[string]domain.ConsentRecord) *mockConsentReader {
	return &mockConsentReader{getFn: func(userID string) (domain.ConsentRecord, error) {
		r, ok := records[userID]
		if !ok {
			return domain.ConsentRecord{}, domain.ErrConsentNotFound
		}
		return r, nil
	}}
}

type mockElector struct {
	mu         sync.Mutex
	leader     bool
	acquireErr error
	attempts   int
	released   bool
}

func (m *mockElector) TryAcquire(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	return m.leader, m.acquireErr
}

func (m *mockElector) Release(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = true
	return nil
}

func (m *mockElector) state() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts, m.released
}

func TestSweeper_DeletesOrphans(t *testing.T) {
	convs := &mockConversationIndex{users: []string{"granted", "revoked", "missing"}}
	consents := consentsFor(map[string]domain.ConsentRecord{
		"granted": {UserID: "granted", EmotionSensing: true},
		"revoked": {UserID: "revoked", Visual: true},
	})
	m := metrics.NewStoreMetrics(prometheus.NewRegistry())
	s := NewSweeper(convs, consents, nil, m, clockwork.NewFakeClock(), time.Minute)

	stats, err := s.Sweep(context.Background(), false)

	require.NoError(t, err)
	assert.Equal(t, SweepStats{Scanned: 3, Orphaned: 2, Deleted: 2}, stats)
	assert.Equal(t, []string{"revoked", "missing"}, convs.deletedUsers())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrphansDeleted))
}

func TestSweeper_DryRunDeletesNothing(t *testing.T) {
	convs := &mockConversationIndex{users: []string{"missing"}}
	s := NewSweeper(convs, consentsFor(nil), nil, nil, clockwork.NewFakeClock(), time.Minute)

	stats, err := s.Sweep(context.Background(), true)

	require.NoError(t, err)
	assert.Equal(t, SweepStats{Scanned: 1, Orphaned: 1}, stats)
	assert.Empty(t, convs.deletedUsers())
}

func TestSweeper_KeepsConversationGrantedMidPass(t *testing.T) {
	convs := &mockConversationIndex{users: []string{"late", "missing"}}
	reads := map[string]int{}
	consents := &mockConsentReader{getFn: func(userID string) (domain.ConsentRecord, error) {
		reads[userID]++
		if userID == "late" && reads[userID] > 1 {
			return domain.ConsentRecord{UserID: userID, EmotionSensing: true}, nil
		}
		return domain.ConsentRecord{}, domain.ErrConsentNotFound
	}}
	s := NewSweeper(convs, consents, nil, nil, clockwork.NewFakeClock(), time.Minute)

	stats, err := s.Sweep(context.Background(), false)

	require.NoError(t, err)
	assert.Equal(t, SweepStats{Scanned: 2, Orphaned: 2, Deleted: 1}, stats)
	assert.Equal(t, []string{"missing"}, convs.deletedUsers())
	assert.Equal(t, 2, reads["late"])
}

func TestSweeper_ConsentReadFailureAborts(t *testing.T) {
	convs := &mockConversationIndex{users: []string{"user-1"}}
	boom := errors.New("db down")
	consents := &mockConsentReader{getFn: func(string) (domain.ConsentRecord, error) { return domain.ConsentRecord{}, boom }}
	s := NewSweeper(convs, consents, nil, nil, clockwork.NewFakeClock(), time.Minute)

	_, err := s.Sweep(context.Background(), false)

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, convs.deletedUsers())
}

func TestSweeper_DeleteFailureStopsPass(t *testing.T) {
	boom := errors.New("redis down")
	convs := &mockConversationIndex{users: []string{"a", "b", "c"}, deleteFn: func(userID string) error {
		if userID == "b" {
			return boom
		}
		return nil
	}}
	s := NewSweeper(convs, consentsFor(nil), nil, nil, clockwork.NewFakeClock(), time.Minute)

	stats, err := s.Sweep(context.Background(), false)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, stats.Deleted)
	assert.Equal(t, []string{"a"}, convs.deletedUsers())
}

func TestSweeper_StartSweepsOnTickAsLeader(t *testing.T) {
	clock := clockwork.NewFakeClock()
	convs := &mockConversationIndex{users: []string{"missing"}}
	elector := &mockElector{leader: true}
	s := NewSweeper(convs, consentsFor(nil), elector, nil, clock, time.Minute)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool {
		return len(convs.deletedUsers()) == 1
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	<-done
	_, released := elector.state()
	assert.True(t, released)
}

func TestSweeper_FollowerDoesNotSweep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	convs := &mockConversationIndex{users: []string{"missing"}}
	elector := &mockElector{leader: false}
	s := NewSweeper(convs, consentsFor(nil), elector, nil, clock, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool {
		attempts, _ := elector.state()
		return attempts == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Empty(t, convs.deletedUsers())
}

func TestSweeper_ElectionErrorSkipsTick(t *testing.T) {
	convs := &mockConversationIndex{users: []string{"missing"}}
	elector := &mockElector{leader: true, acquireErr: errors.New("redis down")}
	s := NewSweeper(convs, consentsFor(nil), elector, nil, clockwork.NewFakeClock(), time.Minute)

	s.tick(context.Background())

	assert.Empty(t, convs.deletedUsers())
}
