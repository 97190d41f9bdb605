package normalize

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

// Normalizer runs the per-channel normalizers for a request.
type Normalizer struct {
	classifier domain.TextClassifier
}

// NewNormalizer creates a Normalizer. classifier may be nil, in which case
// the text channel never yields an estimate.
func NewNormalizer(classifier domain.TextClassifier) *Normalizer {
	return &Normalizer{classifier: classifier}
}

// Normalize produces estimates for the given channels of req concurrently.
// Channels whose input is insufficient are absent from the result.
func (n *Normalizer) Normalize(ctx context.Context, req domain.SignalRequest, channels []domain.Channel) map[domain.Channel]domain.LayerEstimate {
	var (
		mu  sync.Mutex
		out = make(map[domain.Channel]domain.LayerEstimate, len(channels))
	)

	var g errgroup.Group
	for _, ch := range channels {
		g.Go(func() error {
			est := n.normalizeOne(ctx, req, ch)
			if est == nil {
				return nil
			}
			mu.Lock()
			out[ch] = *est
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (n *Normalizer) normalizeOne(ctx context.Context, req domain.SignalRequest, ch domain.Channel) *domain.LayerEstimate {
	switch ch {
	case domain.ChannelVisual:
		return Visual(req.Visual)
	case domain.ChannelAudio:
		return Audio(req.Audio)
	case domain.ChannelBiometric:
		return Biometric(req.Biometric)
	case domain.ChannelContextual:
		return Contextual(req.Contextual)
	case domain.ChannelText:
		return Text(ctx, n.classifier, req.Text)
	default:
		return nil
	}
}
