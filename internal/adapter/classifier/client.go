// Package classifier is an HTTP client for the external text emotion
// classifier.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/platform/retry"
)

const maxResponseBytes = 16 << 10

// DefaultPolicy retries transient classifier failures a few times.
var DefaultPolicy = retry.Policy{
	MaxAttempts:      3,
	InitialBackoff:   100 * time.Millisecond,
	MaxBackoff:       time.Second,
	RateLimitBackoff: 500 * time.Millisecond,
}

// StatusError is returned for non-2xx classifier responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("classifier returned %d", e.Code)
}

// ErrUnknownLabel is returned when the classifier answers with a label
// outside the closed emotion set.
var ErrUnknownLabel = errors.New("classifier returned unknown emotion label")

// Client implements domain.TextClassifier over HTTP.
type Client struct {
	url    string
	client *http.Client
	policy retry.Policy
}

var _ domain.TextClassifier = (*Client)(nil)

// New creates a client posting to url. Each attempt is bounded by timeout.
func New(url string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
		policy: DefaultPolicy,
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// Classify returns the classifier's label and confidence for text.
func (c *Client) Classify(ctx context.Context, text string) (domain.EmotionLabel, float64, error) {
	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return domain.EmotionNeutral, 0, fmt.Errorf("encode classify request: %w", err)
	}

	policy := c.policy
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.WarnContext(ctx, "Classifier call failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	}

	resp, err := retry.Do(ctx, policy, classifierFor(ctx), func(ctx context.Context) (classifyResponse, error) {
		return c.post(ctx, body)
	})
	if err != nil {
		return domain.EmotionNeutral, 0, fmt.Errorf("classify text: %w", err)
	}

	label, ok := domain.ParseEmotion(resp.Emotion)
	if !ok {
		return domain.EmotionNeutral, 0, fmt.Errorf("%w: %q", ErrUnknownLabel, resp.Emotion)
	}
	return label, resp.Confidence, nil
}

func (c *Client) post(ctx context.Context, body []byte) (classifyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return classifyResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.client.Do(req)
	if err != nil {
		return classifyResponse{}, &transportError{err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return classifyResponse{}, fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return classifyResponse{}, &StatusError{Code: httpResp.StatusCode}
	}

	var out classifyResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return classifyResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

type transportError struct{ err error }

func (e *transportError) Error() string { return "request failed: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// classifierFor retries server errors and transport failures, backs off
// longer on 429 and gives up on anything else or once ctx is done.
func classifierFor(ctx context.Context) retry.Classify {
	return func(err error) retry.Action {
		if ctx.Err() != nil {
			return retry.Stop
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			switch {
			case statusErr.Code == http.StatusTooManyRequests:
				return retry.After
			case statusErr.Code >= 500:
				return retry.Retry
			default:
				return retry.Stop
			}
		}

		var te *transportError
		if errors.As(err, &te) {
			return retry.Retry
		}
		return retry.Stop
	}
}
