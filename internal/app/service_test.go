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

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/action"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/adapter/metrics"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/consent"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/conversation"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/normalize"
)

// --- Mock implementations ---

type mockBroadcaster struct {
	mu        sync.Mutex
	events    []domain.Event
	publishFn func(ctx context.Context, event domain.Event) error
}

func (m *mockBroadcaster) Publish(ctx context.Context, event domain.Event) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.publishFn != nil {
		return m.publishFn(ctx, event)
	}
	return nil
}

func (m *mockBroadcaster) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Name)
	}
	return out
}

type mockConsentLedger struct {
	getFn    func(ctx context.Context, userID string) (domain.ConsentRecord, error)
	setFn    func(ctx context.Context, userID string, record domain.ConsentRecord) (domain.ConsentRecord, error)
	deleteFn func(ctx context.Context, userID string) error
}

func (m *mockConsentLedger) Get(ctx context.Context, userID string) (domain.ConsentRecord, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return domain.DenyAllConsent(userID), nil
}

func (m *mockConsentLedger) Set(ctx context.Context, userID string, record domain.ConsentRecord) (domain.ConsentRecord, error) {
	if m.setFn != nil {
		return m.setFn(ctx, userID, record)
	}
	return record, nil
}

func (m *mockConsentLedger) Delete(ctx context.Context, userID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID)
	}
	return nil
}

type mockConversationStore struct {
	getFn    func(ctx context.Context, userID string) (domain.ConversationState, bool, error)
	updateFn func(ctx context.Context, userID string, fn func(*domain.ConversationState) error) (domain.ConversationState, error)
	deleteFn func(ctx context.Context, userID string) error
}

func (m *mockConversationStore) Get(ctx context.Context, userID string) (domain.ConversationState, bool, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return domain.ConversationState{UserID: userID}, false, nil
}

func (m *mockConversationStore) Update(ctx context.Context, userID string, fn func(*domain.ConversationState) error) (domain.ConversationState, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, fn)
	}
	state := domain.ConversationState{UserID: userID}
	return state, fn(&state)
}

func (m *mockConversationStore) Delete(ctx context.Context, userID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID)
	}
	return nil
}

// --- Fixtures ---

type fixture struct {
	svc           *Service
	clock         *clockwork.FakeClock
	ledger        *consent.Ledger
	conversations *conversation.MemoryStore
	broadcaster   *mockBroadcaster
	metrics       *metrics.PipelineMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	ledger := consent.NewLedger(consent.NewMemoryStore(), clock, time.Minute)
	conversations := conversation.NewMemoryStore()
	orchestrator := action.NewOrchestrator(nil, action.NewSimulator(clock), time.Second)
	broadcaster := &mockBroadcaster{}
	m := metrics.NewPipelineMetrics(prometheus.NewRegistry())

	svc := NewService(ledger, normalize.NewNormalizer(nil), conversations, orchestrator, broadcaster, m, clock, Options{HistorySize: 5})
	return &fixture{svc: svc, clock: clock, ledger: ledger, conversations: conversations, broadcaster: broadcaster, metrics: m}
}

func fullConsent(userID string) domain.ConsentRecord {
	return domain.ConsentRecord{UserID: userID, EmotionSensing: true, Visual: true, Audio: true, Biometric: true}
}

func ptr[T any](v T) *T { return &v }

func visual(emotion string, confidence float64) *domain.VisualInput {
	return &domain.VisualInput{Emotion: emotion, Confidence: ptr(confidence)}
}

// --- Process ---

func TestProcess_FirstConfidentSignalResponds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.Set(ctx, "user-1", fullConsent("user-1"))
	require.NoError(t, err)

	result, err := f.svc.Process(ctx, domain.SignalRequest{UserID: "user-1", Visual: visual("sad", 0.9)})
	require.NoError(t, err)

	assert.True(t, result.Responded)
	assert.Equal(t, domain.ReasonFirstInteraction, result.Reason)
	assert.Equal(t, domain.EmotionSad, result.FusedEmotion.Primary)
	assert.Equal(t, 0.9, result.FusedEmotion.OverallConfidence)
	require.NotNil(t, result.Response)
	assert.Equal(t, domain.ResponseOfferSupport, result.Response.Action)

	require.Len(t, result.Actions, 3)
	for _, outcome := range result.Actions {
		assert.True(t, outcome.Success)
		assert.True(t, outcome.Simulated)
	}

	assert.Equal(t, []string{
		domain.EventEmotionDetected,
		domain.EventAdaptiveResponse,
		domain.EventDeviceAction,
		domain.EventDeviceAction,
		domain.EventDeviceAction,
	}, f.broadcaster.names())

	state, ok, err := f.conversations.Get(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.EmotionSad, *state.LastEmotion)
	assert.Equal(t, f.clock.Now(), *state.LastResponseAt)
	assert.Equal(t, 1, state.InteractionCount)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SignalsProcessed.WithLabelValues("responded")))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.ActionsDispatched.WithLabelValues("set_light", "simulated"))+
		testutil.ToFloat64(f.metrics.ActionsDispatched.WithLabelValues("play_music", "simulated"))+
		testutil.ToFloat64(f.metrics.ActionsDispatched.WithLabelValues("send_notification", "simulated")))
}

func TestProcess_SilentDecisionStillAdvancesState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.Set(ctx, "user-1", fullConsent("user-1"))
	require.NoError(t, err)

	result, err := f.svc.Process(ctx, domain.SignalRequest{UserID: "user-1", Visual: visual("neutral", 0.95)})
	require.NoError(t, err)

	assert.False(t, result.Responded)
	assert.Equal(t, domain.ReasonNoTrigger, result.Reason)
	assert.Nil(t, result.Response)
	assert.Empty(t, result.Actions)
	assert.NotNil(t, result.Actions)
	assert.Equal(t, []string{domain.EventEmotionDetected}, f.broadcaster.names())

	state, ok, err := f.conversations.Get(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.EmotionNeutral, *state.LastEmotion)
	assert.Nil(t, state.LastResponseAt)
}

func TestProcess_GateFollowsConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.Set(ctx, "user-1", fullConsent("user-1"))
	require.NoError(t, err)

	steps := []struct {
		advance     time.Duration
		emotion     string
		confidence  float64
		wantRespond bool
		wantReason  domain.GateReason
	}{
		{0, "neutral", 0.9, false, domain.ReasonNoTrigger},
		{5 * time.Second, "happy", 0.9, true, domain.ReasonEmotionChange},
		{5 * time.Second, "happy", 0.9, false, domain.ReasonNoTrigger},
		{6 * time.Second, "happy", 0.9, true, domain.ReasonStrongPositive},
		{time.Second, "sad", 0.75, true, domain.ReasonEmotionChange},
		{time.Second, "sad", 0.75, true, domain.ReasonStrongNegative},
		{time.Second, "neutral", 0.5, false, domain.ReasonNoTrigger},
		{65 * time.Second, "neutral", 0.5, true, domain.ReasonPeriodicNeutralCheck},
	}
	for i, step := range steps {
		f.clock.Advance(step.advance)
		result, err := f.svc.Process(ctx, domain.SignalRequest{UserID: "user-1", Visual: visual(step.emotion, step.confidence)})
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, step.wantRespond, result.Responded, "step %d", i)
		assert.Equal(t, step.wantReason, result.Reason, "step %d", i)
	}

	state, _, err := f.conversations.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, len(steps), state.InteractionCount)
	assert.Len(t, state.History, 5)
}

func TestProcess_ReturningUserKeepsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.Set(ctx, "user-1", fullConsent("user-1"))
	require.NoError(t, err)

	first, err := f.svc.Process(ctx, domain.SignalRequest{UserID: "user-1", Visual: visual("sad", 0.9)})
	require.NoError(t, err)
	require.Equal(t, domain.ReasonFirstInteraction, first.Reason)

	f.clock.Advance(25 * time.Hour)

	again, err := f.svc.Process(ctx, domain.SignalRequest{UserID: "user-1", Visual: visual("sad", 0.9)})
	require.NoError(t, err)
	assert.NotEqual(t, domain.ReasonFirstInteraction, again.Reason)

	state, ok, err := f.conversations.Get(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, state.InteractionCount)
}

func TestProcess_ConsentDeniedBeforeNormalization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.Set(ctx, "user-1", domain.ConsentRecord{EmotionSensing: true, Audio: true})
	require.NoError(t, err)

	_, err = f.svc.Process(ctx, domain.SignalRequest{
		UserID:    "user-1",
		Visual:    visual("happy", 0.9),
		Audio:     &domain.AudioInput{Volume: ptr(0.9)},
		Biometric: &domain.BiometricInput{HeartRate: ptr(120.0)},
	})

	var consentErr *domain.ConsentRequiredError
	require.True(t, errors.As(err, &consentErr))
	assert.Equal(t, domain.ChannelVisual, consentErr.Channel)
	assert.Contains(t, err.Error(), "biometric")
	assert.NotContains(t, err.Error(), "audio")

	assert.Empty(t, f.broadcaster.names())
	_, ok, err := f.conversations.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ConsentDenials.WithLabelValues("visual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SignalsProcessed.WithLabelValues("consent_denied")))
}

func TestProcess_UnknownUserIsDeniedEverything(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Process(context.Background(), domain.SignalRequest{UserID: "stranger", Text: &domain.TextInput{Text: "hi"}})

	var consentErr *domain.ConsentRequiredError
	require.True(t, errors.As(err, &consentErr))
	assert.Equal(t, domain.ChannelText, consentErr.Channel)
}

func TestProcess_NoSignal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.Set(ctx, "user-1", fullConsent("user-1"))
	require.NoError(t, err)

	_, err = f.svc.Process(ctx, domain.SignalRequest{UserID: "user-1"})
	assert.ErrorIs(t, err, domain.ErrNoSignal)

	// supplied but unusable
	_, err = f.svc.Process(ctx, domain.SignalRequest{UserID: "user-1", Visual: &domain.VisualInput{FaceDetected: ptr(false)}})
	assert.ErrorIs(t, err, domain.ErrNoSignal)
	var noSignal *domain.NoSignalError
	require.True(t, errors.As(err, &noSignal))
	assert.Equal(t, []domain.Channel{domain.ChannelVisual}, noSignal.Supplied)
}

func TestProcess_InvalidWeights(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.Set(ctx, "user-1", fullConsent("user-1"))
	require.NoError(t, err)

	_, err = f.svc.Process(ctx, domain.SignalRequest{
		UserID:  "user-1",
		Visual:  visual("happy", 0.9),
		Weights: &domain.LayerWeights{Visual: -1, Audio: 1},
	})
	var weightsErr *domain.InvalidWeightsError
	assert.True(t, errors.As(err, &weightsErr))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SignalsProcessed.WithLabelValues("invalid_weights")))
}

func TestProcess_RequiresUserID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Process(context.Background(), domain.SignalRequest{Visual: visual("happy", 0.9)})
	assert.ErrorIs(t, err, domain.ErrUserIDRequired)
}

func TestProcess_BroadcastFailureIsNotSurfaced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.Set(ctx, "user-1", fullConsent("user-1"))
	require.NoError(t, err)
	f.broadcaster.publishFn = func(context.Context, domain.Event) error { return errors.New("node down") }

	result, err := f.svc.Process(ctx, domain.SignalRequest{UserID: "user-1", Visual: visual("angry", 0.9)})
	require.NoError(t, err)
	assert.True(t, result.Responded)
	assert.Len(t, f.broadcaster.names(), 5)
}

func TestProcess_ConsentReadFailure(t *testing.T) {
	ledger := &mockConsentLedger{getFn: func(ctx context.Context, userID string) (domain.ConsentRecord, error) {
		return domain.DenyAllConsent(userID), errors.New("db down")
	}}
	clock := clockwork.NewFakeClock()
	svc := NewService(ledger, normalize.NewNormalizer(nil), &mockConversationStore{},
		action.NewOrchestrator(nil, action.NewSimulator(clock), time.Second), nil, nil, clock, Options{})

	_, err := svc.Process(context.Background(), domain.SignalRequest{UserID: "u", Visual: visual("happy", 0.9)})
	require.Error(t, err)
	var consentErr *domain.ConsentRequiredError
	assert.False(t, errors.As(err, &consentErr))
}

func TestProcess_ConversationStoreFailure(t *testing.T) {
	ledger := &mockConsentLedger{getFn: func(_ context.Context, userID string) (domain.ConsentRecord, error) {
		return fullConsent(userID), nil
	}}
	store := &mockConversationStore{updateFn: func(context.Context, string, func(*domain.ConversationState) error) (domain.ConversationState, error) {
		return domain.ConversationState{}, errors.New("redis down")
	}}
	broadcaster := &mockBroadcaster{}
	clock := clockwork.NewFakeClock()
	svc := NewService(ledger, normalize.NewNormalizer(nil), store,
		action.NewOrchestrator(nil, action.NewSimulator(clock), time.Second), broadcaster, nil, clock, Options{})

	_, err := svc.Process(context.Background(), domain.SignalRequest{UserID: "u", Visual: visual("happy", 0.9)})
	assert.ErrorContains(t, err, "redis down")
	assert.Empty(t, broadcaster.names())
}

func TestProcess_RetriedUpdateUsesLatestState(t *testing.T) {
	ledger := &mockConsentLedger{getFn: func(_ context.Context, userID string) (domain.ConsentRecord, error) {
		return fullConsent(userID), nil
	}}
	clock := clockwork.NewFakeClock()
	happy := domain.EmotionHappy
	at := clock.Now()

	// First attempt sees no history, the retry sees a concurrent Happy.
	store := &mockConversationStore{updateFn: func(_ context.Context, userID string, fn func(*domain.ConversationState) error) (domain.ConversationState, error) {
		stale := domain.ConversationState{UserID: userID}
		require.NoError(t, fn(&stale))

		fresh := domain.ConversationState{UserID: userID, LastEmotion: &happy, LastInteractionAt: &at, LastResponseAt: &at}
		return fresh, fn(&fresh)
	}}
	svc := NewService(ledger, normalize.NewNormalizer(nil), store,
		action.NewOrchestrator(nil, action.NewSimulator(clock), time.Second), nil, nil, clock, Options{})

	result, err := svc.Process(context.Background(), domain.SignalRequest{UserID: "u", Visual: visual("happy", 0.9)})
	require.NoError(t, err)
	assert.False(t, result.Responded)
	assert.Nil(t, result.Response)
}

func TestProcess_RequestWeightsOverrideDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.Set(ctx, "user-1", fullConsent("user-1"))
	require.NoError(t, err)

	result, err := f.svc.Process(ctx, domain.SignalRequest{
		UserID:  "user-1",
		Visual:  visual("happy", 0.9),
		Audio:   &domain.AudioInput{Pitch: ptr(100.0), Volume: ptr(0.1), SpeechRate: ptr(80.0)},
		Weights: &domain.LayerWeights{Visual: 0, Audio: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EmotionSad, result.FusedEmotion.Primary)
	assert.Equal(t, 1.0, result.FusedEmotion.Weights.Audio)
}

func TestProcess_UsersAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, userID := range []string{"a", "b", "c", "d"} {
		_, err := f.ledger.Set(ctx, userID, fullConsent(userID))
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				_, err := f.svc.Process(ctx, domain.SignalRequest{UserID: userID, Visual: visual("calm", 0.6)})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	for _, userID := range []string{"a", "b", "c", "d"} {
		state, ok, err := f.conversations.Get(ctx, userID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 10, state.InteractionCount)
	}
}

// --- Consent and introspection ---

func TestRevokeConsent_ForgetsConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SetConsent(ctx, "user-1", fullConsent("user-1"))
	require.NoError(t, err)
	_, err = f.svc.Process(ctx, domain.SignalRequest{UserID: "user-1", Visual: visual("sad", 0.9)})
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeConsent(ctx, "user-1"))

	record, err := f.svc.Consent(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, record.EmotionSensing)

	_, ok, err := f.svc.Conversation(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.Process(ctx, domain.SignalRequest{UserID: "user-1", Visual: visual("sad", 0.9)})
	var consentErr *domain.ConsentRequiredError
	assert.True(t, errors.As(err, &consentErr))
}

func TestSetConsent_StampsLastUpdated(t *testing.T) {
	f := newFixture(t)

	saved, err := f.svc.SetConsent(context.Background(), "user-1", fullConsent("user-1"))
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().UTC(), saved.LastUpdated)
}

func TestDevices_AfterDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.Set(ctx, "user-1", fullConsent("user-1"))
	require.NoError(t, err)

	assert.Empty(t, f.svc.Devices())
	_, err = f.svc.Process(ctx, domain.SignalRequest{UserID: "user-1", Visual: visual("anxious", 0.9)})
	require.NoError(t, err)

	devices := f.svc.Devices()
	require.Len(t, devices, 3)
	for _, d := range devices {
		assert.True(t, d.IsActive)
	}
}

func TestConsent_RequiresUserID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Consent(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUserIDRequired)
	assert.ErrorIs(t, f.svc.RevokeConsent(context.Background(), ""), domain.ErrUserIDRequired)
}
