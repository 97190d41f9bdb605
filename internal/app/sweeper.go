package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/adapter/metrics"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/platform/correlation"
)

// ConversationIndex lists and deletes stored conversations.
type ConversationIndex interface {
	ForEachUser(ctx context.Context, fn func(userID string) error) error
	Delete(ctx context.Context, userID string) error
}

// ConsentReader reads stored consent records.
type ConsentReader interface {
	Get(ctx context.Context, userID string) (domain.ConsentRecord, error)
}

// Elector decides which replica runs the sweep.
type Elector interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// SweepStats summarizes one sweep.
type SweepStats struct {
	Scanned  int
	Orphaned int
	Deleted  int
}

// Sweeper deletes conversations of users whose consent record is missing or
// no longer grants emotion sensing. Such state can outlive a consent record
// removed out of band.
type Sweeper struct {
	conversations ConversationIndex
	consents      ConsentReader
	elector       Elector
	metrics       *metrics.StoreMetrics
	clock         clockwork.Clock
	interval      time.Duration
	stopCh        chan struct{}
}

// NewSweeper creates a sweeper. A nil elector means this replica always
// sweeps; m may be nil.
func NewSweeper(
	conversations ConversationIndex,
	consents ConsentReader,
	elector Elector,
	m *metrics.StoreMetrics,
	clock clockwork.Clock,
	interval time.Duration,
) *Sweeper {
	return &Sweeper{
		conversations: conversations,
		consents:      consents,
		elector:       elector,
		metrics:       m,
		clock:         clock,
		interval:      interval,
		stopCh:        make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	defer func() {
		if s.elector == nil {
			return
		}
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.elector.Release(releaseCtx); err != nil {
			slog.Warn("Failed to release sweeper leadership", "error", err)
		}
	}()

	for {
		select {
		case <-ticker.Chan():
			s.tick(ctx)
		case <-s.stopCh:
			slog.Info("Conversation sweeper stopped")
			return
		case <-ctx.Done():
			slog.Info("Conversation sweeper context cancelled")
			return
		}
	}
}

// Stop ends the sweep loop.
func (s *Sweeper) Stop() {
	close(s.stopCh)
}

func (s *Sweeper) tick(ctx context.Context) {
	ctx = correlation.WithID(ctx, correlation.NewID())

	if s.elector != nil {
		leader, err := s.elector.TryAcquire(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Sweeper leader election failed", "error", err)
			return
		}
		if !leader {
			slog.DebugContext(ctx, "Another replica is sweeping")
			return
		}
	}

	stats, err := s.Sweep(ctx, false)
	if err != nil {
		slog.ErrorContext(ctx, "Conversation sweep failed", "error", err, "deleted", stats.Deleted)
		return
	}
	slog.InfoContext(ctx, "Conversation sweep complete",
		"scanned", stats.Scanned,
		"orphaned", stats.Orphaned,
		"deleted", stats.Deleted)
}

// Sweep runs one pass. In dry-run mode orphans are counted but kept.
// Each orphan's consent is read again right before deletion so a grant that
// lands mid-pass keeps its state.
func (s *Sweeper) Sweep(ctx context.Context, dryRun bool) (SweepStats, error) {
	var stats SweepStats
	var orphans []string

	err := s.conversations.ForEachUser(ctx, func(userID string) error {
		stats.Scanned++
		orphaned, err := s.isOrphan(ctx, userID)
		if err != nil || !orphaned {
			return err
		}
		slog.DebugContext(ctx, "Orphaned conversation", "user_id", userID)
		orphans = append(orphans, userID)
		return nil
	})
	if err != nil {
		return stats, err
	}
	stats.Orphaned = len(orphans)

	if dryRun {
		return stats, nil
	}
	for _, userID := range orphans {
		orphaned, err := s.isOrphan(ctx, userID)
		if err != nil {
			return stats, err
		}
		if !orphaned {
			slog.DebugContext(ctx, "Consent granted during sweep, keeping conversation", "user_id", userID)
			continue
		}
		if err := s.conversations.Delete(ctx, userID); err != nil {
			return stats, fmt.Errorf("failed to delete conversation for %s: %w", userID, err)
		}
		stats.Deleted++
		if s.metrics != nil {
			s.metrics.OrphansDeleted.Inc()
		}
	}
	return stats, nil
}

func (s *Sweeper) isOrphan(ctx context.Context, userID string) (bool, error) {
	record, err := s.consents.Get(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrConsentNotFound):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("failed to read consent for %s: %w", userID, err)
	}
	return !record.EmotionSensing, nil
}
