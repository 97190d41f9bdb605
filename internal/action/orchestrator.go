package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

// DefaultTimeout bounds a primary actuator attempt when none is configured.
const DefaultTimeout = 3 * time.Second

var errPrimaryRejected = errors.New("primary actuator reported failure")

type primaryResult struct {
	ok          bool
	playbackURL string
	err         error
}

// Orchestrator dispatches directives to the primary actuator of their device
// family, substituting the simulator when the primary cannot deliver.
type Orchestrator struct {
	primaries map[domain.DeviceFamily]domain.PrimaryActuator
	simulator *Simulator
	timeout   time.Duration
}

// NewOrchestrator creates an Orchestrator. Families missing from primaries
// (or mapped to nil) always run simulated.
func NewOrchestrator(primaries map[domain.DeviceFamily]domain.PrimaryActuator, simulator *Simulator, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	configured := make(map[domain.DeviceFamily]domain.PrimaryActuator, len(primaries))
	for family, p := range primaries {
		if p != nil {
			configured[family] = p
		}
	}
	return &Orchestrator{
		primaries: configured,
		simulator: simulator,
		timeout:   timeout,
	}
}

// Dispatch executes one directive. The only error is *UnsupportedActionError
// for an unknown action type; every other failure is absorbed by the
// simulator and reported through ActionOutcome.Simulated.
func (o *Orchestrator) Dispatch(ctx context.Context, d domain.ActionDirective) (domain.ActionOutcome, error) {
	family, ok := d.ActionType.Family()
	if !ok {
		err := &domain.UnsupportedActionError{ActionType: d.ActionType}
		return domain.ActionOutcome{Directive: d, Error: err.Error()}, err
	}

	outcome := domain.ActionOutcome{Directive: d, Success: true}

	res := o.tryPrimary(ctx, family, d)
	if res.ok {
		outcome.PlaybackURL = res.playbackURL
	} else {
		if res.err != nil {
			slog.WarnContext(ctx, "Primary actuator unavailable, simulating directive",
				"device_id", d.DeviceID, "action_type", string(d.ActionType), "error", res.err)
		}
		outcome.Simulated = true
	}

	state := o.simulator.Apply(d)
	outcome.Device = &state
	return outcome, nil
}

// DispatchAll runs the directives concurrently and returns their outcomes in
// directive order. Unsupported directives are logged and skipped; their
// outcome carries the error and Success=false.
func (o *Orchestrator) DispatchAll(ctx context.Context, directives []domain.ActionDirective) []domain.ActionOutcome {
	outcomes := make([]domain.ActionOutcome, len(directives))

	var g errgroup.Group
	for i, d := range directives {
		g.Go(func() error {
			outcome, err := o.Dispatch(ctx, d)
			if err != nil {
				slog.WarnContext(ctx, "Skipping directive", "device_id", d.DeviceID, "action_type", string(d.ActionType), "error", err)
			}
			outcomes[i] = outcome
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Devices returns the last known state of every device that received a
// directive.
func (o *Orchestrator) Devices() []domain.DeviceState {
	return o.simulator.Snapshot()
}

// HasPrimary reports whether a real actuator serves family.
func (o *Orchestrator) HasPrimary(family domain.DeviceFamily) bool {
	_, ok := o.primaries[family]
	return ok
}

// tryPrimary gives the primary at most o.timeout, even if it ignores ctx.
// A zero result with a nil error means no primary is configured.
func (o *Orchestrator) tryPrimary(ctx context.Context, family domain.DeviceFamily, d domain.ActionDirective) primaryResult {
	primary, ok := o.primaries[family]
	if !ok {
		return primaryResult{}
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan primaryResult, 1)
	go func() {
		ok, err := primary.Execute(ctx, d)
		if err != nil {
			done <- primaryResult{err: err}
			return
		}
		if !ok {
			done <- primaryResult{err: errPrimaryRejected}
			return
		}

		res := primaryResult{ok: true}
		if family == domain.FamilyMusic {
			url, err := primary.PlaybackURL(ctx, d)
			if err != nil {
				slog.DebugContext(ctx, "Playback URL unavailable", "device_id", d.DeviceID, "error", err)
			}
			res.playbackURL = url
		}
		done <- res
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return primaryResult{err: fmt.Errorf("primary actuator timed out after %s: %w", o.timeout, ctx.Err())}
	}
}
