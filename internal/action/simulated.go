package action

import (
	"cmp"
	"maps"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

// Simulator is the fallback actuator. It cannot fail: every directive is
// applied to an in-memory device model.
type Simulator struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	devices map[string]domain.DeviceState
}

func NewSimulator(clock clockwork.Clock) *Simulator {
	return &Simulator{
		clock:   clock,
		devices: make(map[string]domain.DeviceState),
	}
}

// Apply records the directive's effect and returns the resulting state.
func (s *Simulator) Apply(d domain.ActionDirective) domain.DeviceState {
	family, _ := d.ActionType.Family()

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.devices[d.DeviceID]
	state.DeviceID = d.DeviceID
	state.DeviceType = family
	state.IsActive = true
	state.LastAction = d.ActionType
	state.Parameters = maps.Clone(d.Parameters)
	state.UpdatedAt = s.clock.Now()
	if color, ok := d.Parameters["color"].(string); ok && color != "" {
		state.CurrentColor = color
	}

	s.devices[d.DeviceID] = state
	return copyState(state)
}

// Device returns the last known state of one device.
func (s *Simulator) Device(deviceID string) (domain.DeviceState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.devices[deviceID]
	return copyState(state), ok
}

// Snapshot returns every known device, ordered by id.
func (s *Simulator) Snapshot() []domain.DeviceState {
	s.mu.RLock()
	out := make([]domain.DeviceState, 0, len(s.devices))
	for _, state := range s.devices {
		out = append(out, copyState(state))
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.DeviceState) int {
		return cmp.Compare(a.DeviceID, b.DeviceID)
	})
	return out
}

func copyState(s domain.DeviceState) domain.DeviceState {
	s.Parameters = maps.Clone(s.Parameters)
	return s
}
