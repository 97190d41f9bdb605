package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/action"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/adapter/metrics"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/fusion"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/gate"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/response"
)

// DefaultHistorySize bounds the per-user history when none is configured.
const DefaultHistorySize = 20

// ConsentLedger is the consent gate the service reads and manages.
type ConsentLedger interface {
	Get(ctx context.Context, userID string) (domain.ConsentRecord, error)
	Set(ctx context.Context, userID string, record domain.ConsentRecord) (domain.ConsentRecord, error)
	Delete(ctx context.Context, userID string) error
}

// Normalizer turns a request's channels into layer estimates.
type Normalizer interface {
	Normalize(ctx context.Context, req domain.SignalRequest, channels []domain.Channel) map[domain.Channel]domain.LayerEstimate
}

// Dispatcher executes device directives.
type Dispatcher interface {
	DispatchAll(ctx context.Context, directives []domain.ActionDirective) []domain.ActionOutcome
	Devices() []domain.DeviceState
}

// Options tunes the service. Zero values take defaults.
type Options struct {
	Weights     domain.LayerWeights
	HistorySize int
}

// Service is the application layer. It is the only component that talks to
// every port.
type Service struct {
	consent       ConsentLedger
	normalizer    Normalizer
	conversations domain.ConversationStore
	dispatcher    Dispatcher
	broadcaster   domain.Broadcaster
	metrics       *metrics.PipelineMetrics
	clock         clockwork.Clock

	weights     domain.LayerWeights
	historySize int
}

// NewService wires the pipeline. broadcaster and m may be nil.
func NewService(
	consent ConsentLedger,
	normalizer Normalizer,
	conversations domain.ConversationStore,
	dispatcher Dispatcher,
	broadcaster domain.Broadcaster,
	m *metrics.PipelineMetrics,
	clock clockwork.Clock,
	opts Options,
) *Service {
	if opts.Weights == (domain.LayerWeights{}) {
		opts.Weights = domain.DefaultLayerWeights()
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	return &Service{
		consent:       consent,
		normalizer:    normalizer,
		conversations: conversations,
		dispatcher:    dispatcher,
		broadcaster:   broadcaster,
		metrics:       m,
		clock:         clock,
		weights:       opts.Weights,
		historySize:   opts.HistorySize,
	}
}

// Process runs one signal request through the pipeline.
//
// Consent and no-signal failures are returned to the caller. Device failures
// never are: the dispatcher substitutes a simulation. Broadcast failures are
// logged and otherwise ignored.
func (s *Service) Process(ctx context.Context, req domain.SignalRequest) (domain.ProcessResult, error) {
	start := s.clock.Now()
	result, err := s.process(ctx, req, start)
	s.observe(start, result, err)
	return result, err
}

func (s *Service) process(ctx context.Context, req domain.SignalRequest, now time.Time) (domain.ProcessResult, error) {
	if req.UserID == "" {
		return domain.ProcessResult{}, domain.ErrUserIDRequired
	}

	supplied := req.Channels()
	if len(supplied) == 0 {
		return domain.ProcessResult{}, &domain.NoSignalError{}
	}

	if err := s.checkConsent(ctx, req.UserID, supplied); err != nil {
		return domain.ProcessResult{}, err
	}

	weights := s.weights
	if req.Weights != nil {
		weights = *req.Weights
	}

	estimates := s.normalizer.Normalize(ctx, req, supplied)
	if len(estimates) == 0 {
		return domain.ProcessResult{}, &domain.NoSignalError{Supplied: supplied}
	}

	fused, err := fusion.Fuse(estimates, weights, req.UserID, now)
	if err != nil {
		return domain.ProcessResult{}, err
	}

	var (
		decision domain.GateDecision
		resp     *domain.Response
	)
	_, err = s.conversations.Update(ctx, req.UserID, func(state *domain.ConversationState) error {
		// May run more than once when the store retries on conflict.
		decision = gate.ShouldRespond(*state, fused, now)
		resp = nil

		entry := domain.HistoryEntry{Emotion: fused.Primary, At: now, Responded: decision.Respond}
		if decision.Respond {
			r := response.Generate(fused, *state, req)
			resp = &r
			entry.MessageVariant = r.Variant
		}
		state.Record(entry, s.historySize)
		return nil
	})
	if err != nil {
		return domain.ProcessResult{}, fmt.Errorf("failed to update conversation state: %w", err)
	}

	slog.DebugContext(ctx, "Signal fused",
		"user_id", req.UserID,
		"emotion", fused.Primary.String(),
		"confidence", fused.OverallConfidence,
		"channels", len(estimates),
		"respond", decision.Respond,
		"reason", string(decision.Reason))

	s.publish(ctx, req.UserID, domain.EventEmotionDetected, fused, now)

	outcomes := []domain.ActionOutcome{}
	if decision.Respond {
		s.publish(ctx, req.UserID, domain.EventAdaptiveResponse, resp, now)

		outcomes = s.dispatcher.DispatchAll(ctx, action.DirectivesFor(fused.Primary))
		for _, outcome := range outcomes {
			if outcome.Success {
				s.publish(ctx, req.UserID, domain.EventDeviceAction, outcome, s.clock.Now())
			}
		}
	}

	return domain.ProcessResult{
		FusedEmotion: fused,
		Response:     resp,
		Actions:      outcomes,
		Responded:    decision.Respond,
		Reason:       decision.Reason,
	}, nil
}

// checkConsent rejects the request if any supplied channel lacks consent.
// Every denied channel is reported.
func (s *Service) checkConsent(ctx context.Context, userID string, supplied []domain.Channel) error {
	record, err := s.consent.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to read consent: %w", err)
	}

	var denied []error
	for _, c := range supplied {
		if record.Allows(c) {
			continue
		}
		denied = append(denied, &domain.ConsentRequiredError{Channel: c})
		if s.metrics != nil {
			s.metrics.ConsentDenials.WithLabelValues(string(c)).Inc()
		}
	}

	switch len(denied) {
	case 0:
		return nil
	case 1:
		return denied[0]
	default:
		return errors.Join(denied...)
	}
}

func (s *Service) publish(ctx context.Context, userID, name string, payload any, at time.Time) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Publish(ctx, domain.NewEvent(name, userID, at, payload)); err != nil {
		slog.WarnContext(ctx, "Failed to broadcast event", "user_id", userID, "event", name, "error", err)
	}
}

func (s *Service) observe(start time.Time, result domain.ProcessResult, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ProcessingDuration.Observe(s.clock.Since(start).Seconds())
	s.metrics.SignalsProcessed.WithLabelValues(resultLabel(result, err)).Inc()
	if err != nil {
		return
	}

	s.metrics.FusedConfidence.Observe(result.FusedEmotion.OverallConfidence)
	s.metrics.Responses.WithLabelValues(string(result.Reason)).Inc()
	for _, outcome := range result.Actions {
		mode := "primary"
		switch {
		case !outcome.Success:
			mode = "skipped"
		case outcome.Simulated:
			mode = "simulated"
		}
		s.metrics.ActionsDispatched.WithLabelValues(string(outcome.Directive.ActionType), mode).Inc()
	}
}

func resultLabel(result domain.ProcessResult, err error) string {
	var (
		consentErr *domain.ConsentRequiredError
		weightsErr *domain.InvalidWeightsError
	)
	switch {
	case err == nil && result.Responded:
		return "responded"
	case err == nil:
		return "silent"
	case errors.As(err, &consentErr):
		return "consent_denied"
	case errors.Is(err, domain.ErrNoSignal):
		return "no_signal"
	case errors.As(err, &weightsErr):
		return "invalid_weights"
	case errors.Is(err, domain.ErrUserIDRequired):
		return "invalid_request"
	default:
		return "error"
	}
}

// Consent returns the user's consent record, deny-all if none was stored.
func (s *Service) Consent(ctx context.Context, userID string) (domain.ConsentRecord, error) {
	if userID == "" {
		return domain.ConsentRecord{}, domain.ErrUserIDRequired
	}
	return s.consent.Get(ctx, userID)
}

// SetConsent replaces the user's consent record.
func (s *Service) SetConsent(ctx context.Context, userID string, record domain.ConsentRecord) (domain.ConsentRecord, error) {
	return s.consent.Set(ctx, userID, record)
}

// RevokeConsent withdraws all consent and forgets the user's conversation.
func (s *Service) RevokeConsent(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrUserIDRequired
	}
	if err := s.consent.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke consent: %w", err)
	}
	if err := s.conversations.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete conversation state: %w", err)
	}
	slog.InfoContext(ctx, "Consent revoked", "user_id", userID)
	return nil
}

// Conversation returns the user's conversation state. ok is false when
// nothing is recorded.
func (s *Service) Conversation(ctx context.Context, userID string) (domain.ConversationState, bool, error) {
	if userID == "" {
		return domain.ConversationState{}, false, domain.ErrUserIDRequired
	}
	return s.conversations.Get(ctx, userID)
}

// Devices returns the last known state of every device.
func (s *Service) Devices() []domain.DeviceState {
	return s.dispatcher.Devices()
}
