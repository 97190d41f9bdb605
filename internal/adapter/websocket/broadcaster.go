package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/centrifugal/centrifuge"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/adapter/metrics"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

// publisher is the subset of *centrifuge.Node the broadcaster needs.
type publisher interface {
	Publish(channel string, data []byte, opts ...centrifuge.PublishOption) (centrifuge.PublishResult, error)
}

// Broadcaster publishes pipeline events to the user's channel.
type Broadcaster struct {
	node      publisher
	wsMetrics *metrics.WebSocketMetrics
}

var _ domain.Broadcaster = (*Broadcaster)(nil)

func NewBroadcaster(node *centrifuge.Node, wsMetrics *metrics.WebSocketMetrics) *Broadcaster {
	return &Broadcaster{node: node, wsMetrics: wsMetrics}
}

func (b *Broadcaster) Publish(ctx context.Context, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		b.failed()
		return fmt.Errorf("marshal %s event: %w", event.Name, err)
	}

	channel := ChannelFor(event.UserID)
	if _, err := b.node.Publish(channel, data, centrifuge.WithIdempotencyKey(event.ID.String())); err != nil {
		b.failed()
		return fmt.Errorf("publish to channel %s: %w", channel, err)
	}

	if b.wsMetrics != nil {
		b.wsMetrics.EventsPublished.WithLabelValues(event.Name).Inc()
	}
	return nil
}

func (b *Broadcaster) failed() {
	if b.wsMetrics != nil {
		b.wsMetrics.PublishErrors.Inc()
	}
}
