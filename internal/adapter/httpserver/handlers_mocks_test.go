package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/platform/config"
)

// --- Mock implementations ---

type mockAppService struct {
	processFn       func(ctx context.Context, req domain.SignalRequest) (domain.ProcessResult, error)
	consentFn       func(ctx context.Context, userID string) (domain.ConsentRecord, error)
	setConsentFn    func(ctx context.Context, userID string, record domain.ConsentRecord) (domain.ConsentRecord, error)
	revokeConsentFn func(ctx context.Context, userID string) error
	conversationFn  func(ctx context.Context, userID string) (domain.ConversationState, bool, error)
	devicesFn       func() []domain.DeviceState
}

func (m *mockAppService) Process(ctx context.Context, req domain.SignalRequest) (domain.ProcessResult, error) {
	if m.processFn != nil {
		return m.processFn(ctx, req)
	}
	return domain.ProcessResult{Actions: []domain.ActionOutcome{}, Reason: domain.ReasonNoTrigger}, nil
}

func (m *mockAppService) Consent(ctx context.Context, userID string) (domain.ConsentRecord, error) {
	if m.consentFn != nil {
		return m.consentFn(ctx, userID)
	}
	return domain.DenyAllConsent(userID), nil
}

func (m *mockAppService) SetConsent(ctx context.Context, userID string, record domain.ConsentRecord) (domain.ConsentRecord, error) {
	if m.setConsentFn != nil {
		return m.setConsentFn(ctx, userID, record)
	}
	return record, nil
}

func (m *mockAppService) RevokeConsent(ctx context.Context, userID string) error {
	if m.revokeConsentFn != nil {
		return m.revokeConsentFn(ctx, userID)
	}
	return nil
}

func (m *mockAppService) Conversation(ctx context.Context, userID string) (domain.ConversationState, bool, error) {
	if m.conversationFn != nil {
		return m.conversationFn(ctx, userID)
	}
	return domain.ConversationState{UserID: userID}, false, nil
}

func (m *mockAppService) Devices() []domain.DeviceState {
	if m.devicesFn != nil {
		return m.devicesFn()
	}
	return nil
}

// --- Test helpers ---

type serverOption func(*Options)

func withHealthChecks(checks ...HealthCheck) serverOption {
	return func(o *Options) { o.HealthChecks = checks }
}

func withActuators(breakers ...ActuatorBreaker) serverOption {
	return func(o *Options) { o.Actuators = breakers }
}

func withWebsocketHandler(h http.Handler) serverOption {
	return func(o *Options) { o.WebsocketHandler = h }
}

func newTestConfig() *config.Config {
	return &config.Config{
		AppEnv:       "test",
		Port:         "0",
		APIRateLimit: 1000,
		APIRateBurst: 1000,
	}
}

func newTestServer(t *testing.T, app appService, opts ...serverOption) *Server {
	t.Helper()
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return NewServer(newTestConfig(), app, o)
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
