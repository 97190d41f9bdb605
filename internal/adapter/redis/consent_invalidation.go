package redis

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
)

const consentInvalidationChannel = "consent:invalidate"

// ConsentCache is the replica-local cache that invalidations evict from.
type ConsentCache interface {
	Invalidate(userID string)
}

// ConsentInvalidationPublisher announces consent writes to every replica.
type ConsentInvalidationPublisher struct {
	rdb *goredis.Client
}

func NewConsentInvalidationPublisher(rdb *goredis.Client) *ConsentInvalidationPublisher {
	return &ConsentInvalidationPublisher{rdb: rdb}
}

func (p *ConsentInvalidationPublisher) PublishInvalidation(ctx context.Context, userID string) error {
	if err := p.rdb.Publish(ctx, consentInvalidationChannel, userID).Err(); err != nil {
		return fmt.Errorf("failed to publish consent invalidation: %w", err)
	}
	return nil
}

// ConsentInvalidationSubscriber evicts cached consent records written on
// other replicas.
type ConsentInvalidationSubscriber struct {
	rdb   *goredis.Client
	cache ConsentCache
	ready chan struct{}
}

func NewConsentInvalidationSubscriber(rdb *goredis.Client, cache ConsentCache) *ConsentInvalidationSubscriber {
	return &ConsentInvalidationSubscriber{rdb: rdb, cache: cache, ready: make(chan struct{})}
}

// Ready is closed once the subscription is confirmed by Redis.
func (s *ConsentInvalidationSubscriber) Ready() <-chan struct{} {
	return s.ready
}

// Start blocks until ctx is done.
func (s *ConsentInvalidationSubscriber) Start(ctx context.Context) {
	pubsub := s.rdb.Subscribe(ctx, consentInvalidationChannel)
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		slog.Error("Failed to subscribe to consent invalidations", "error", err)
		return
	}
	close(s.ready)

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			s.handleInvalidation(msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (s *ConsentInvalidationSubscriber) handleInvalidation(payload string) {
	if payload == "" {
		slog.Warn("Empty consent invalidation message")
		return
	}

	s.cache.Invalidate(payload)
	slog.Debug("Consent cache invalidated via pub/sub", "user_id", payload)
}
