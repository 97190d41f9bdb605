package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/adapter/metrics"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

const (
	breakerMinRequests  = 5
	breakerFailureRatio = 0.6
	breakerOpenTimeout  = 30 * time.Second
	breakerInterval     = 10 * time.Second

	maxResponseBytes = 64 << 10
)

// StatusError is returned when a device service answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("device service returned %d: %s", e.Code, e.Body)
}

// Config describes one device service endpoint.
type Config struct {
	Family  domain.DeviceFamily
	BaseURL string
	Token   string
	Client  *http.Client // nil uses a client without its own timeout
}

// HTTPActuator implements domain.PrimaryActuator against a device service.
type HTTPActuator struct {
	family  domain.DeviceFamily
	baseURL *url.URL
	token   string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
}

var _ domain.PrimaryActuator = (*HTTPActuator)(nil)

// New creates an actuator for cfg.Family. m may be nil.
func New(cfg Config, m *metrics.BreakerMetrics) (*HTTPActuator, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid %s actuator URL %q", cfg.Family, cfg.BaseURL)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	component := "actuator_" + string(cfg.Family)
	settings := gobreaker.Settings{
		Name:        component,
		MaxRequests: 1,
		Interval:    breakerInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= breakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			if m != nil {
				m.StateChanges.WithLabelValues(name, to.String()).Inc()
				m.State.WithLabelValues(name).Set(stateToFloat(to))
			}
		},
	}

	return &HTTPActuator{
		family:  cfg.Family,
		baseURL: base,
		token:   cfg.Token,
		client:  client,
		cb:      gobreaker.NewCircuitBreaker(settings),
	}, nil
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// State is the current breaker state, surfaced by the readiness probe.
func (a *HTTPActuator) State() gobreaker.State {
	return a.cb.State()
}

type executeRequest struct {
	DeviceID          string         `json:"deviceId"`
	Action            string         `json:"action"`
	Parameters        map[string]any `json:"parameters"`
	TriggeringEmotion string         `json:"triggeringEmotion"`
}

type executeResponse struct {
	Success *bool `json:"success"`
}

// Execute sends the directive to the device service. A 2xx answer without a
// body counts as success.
func (a *HTTPActuator) Execute(ctx context.Context, d domain.ActionDirective) (bool, error) {
	family, ok := d.ActionType.Family()
	if !ok || family != a.family {
		return false, fmt.Errorf("%s actuator cannot execute %q", a.family, d.ActionType)
	}

	body, err := json.Marshal(executeRequest{
		DeviceID:          d.DeviceID,
		Action:            string(d.ActionType),
		Parameters:        d.Parameters,
		TriggeringEmotion: d.TriggeringEmotion.String(),
	})
	if err != nil {
		return false, fmt.Errorf("encode directive: %w", err)
	}

	result, err := a.cb.Execute(func() (any, error) {
		var resp executeResponse
		if err := a.do(ctx, http.MethodPost, a.executePath(d), body, &resp); err != nil {
			return false, err
		}
		return resp.Success == nil || *resp.Success, nil
	})
	if err != nil {
		return false, fmt.Errorf("%s actuator: %w", a.family, err)
	}
	return result.(bool), nil
}

type playbackResponse struct {
	URL string `json:"url"`
}

// PlaybackURL asks the music service for a listen-along link. Other families
// have none.
func (a *HTTPActuator) PlaybackURL(ctx context.Context, d domain.ActionDirective) (string, error) {
	if a.family != domain.FamilyMusic {
		return "", nil
	}

	q := url.Values{}
	q.Set("device", d.DeviceID)
	if playlist, ok := d.Parameters["playlist"].(string); ok {
		q.Set("playlist", playlist)
	}

	result, err := a.cb.Execute(func() (any, error) {
		var resp playbackResponse
		if err := a.do(ctx, http.MethodGet, "/player/playback?"+q.Encode(), nil, &resp); err != nil {
			return "", err
		}
		return resp.URL, nil
	})
	if err != nil {
		return "", fmt.Errorf("music actuator playback: %w", err)
	}
	return result.(string), nil
}

func (a *HTTPActuator) executePath(d domain.ActionDirective) string {
	switch a.family {
	case domain.FamilyLighting:
		return "/lights/" + url.PathEscape(d.DeviceID) + "/state"
	case domain.FamilyMusic:
		return "/player/play"
	default:
		return "/notifications"
	}
}

func (a *HTTPActuator) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
