package domain

import (
	"context"
	"time"
)

// ActionType names a kind of device instruction.
type ActionType string

const (
	ActionSetLight         ActionType = "set_light"
	ActionLightEffect      ActionType = "light_effect"
	ActionPlayMusic        ActionType = "play_music"
	ActionSendNotification ActionType = "send_notification"
)

// DeviceFamily groups action types served by one kind of actuator.
type DeviceFamily string

const (
	FamilyLighting     DeviceFamily = "lighting"
	FamilyMusic        DeviceFamily = "music"
	FamilyNotification DeviceFamily = "notification"
)

// Family returns the device family that executes t.
func (t ActionType) Family() (DeviceFamily, bool) {
	switch t {
	case ActionSetLight, ActionLightEffect:
		return FamilyLighting, true
	case ActionPlayMusic:
		return FamilyMusic, true
	case ActionSendNotification:
		return FamilyNotification, true
	default:
		return "", false
	}
}

// ActionDirective is a concrete instruction for one device.
type ActionDirective struct {
	DeviceID          string         `json:"deviceId"`
	ActionType        ActionType     `json:"actionType"`
	Parameters        map[string]any `json:"parameters"`
	TriggeringEmotion EmotionLabel   `json:"triggeringEmotion"`
}

// DeviceState is the last known state of a device.
type DeviceState struct {
	DeviceID     string         `json:"deviceId"`
	DeviceType   DeviceFamily   `json:"deviceType"`
	IsActive     bool           `json:"isActive"`
	CurrentColor string         `json:"currentColor,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	LastAction   ActionType     `json:"lastAction"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// ActionOutcome reports how a directive was executed.
type ActionOutcome struct {
	Directive   ActionDirective `json:"directive"`
	Success     bool            `json:"success"`
	Simulated   bool            `json:"simulated"`
	PlaybackURL string          `json:"playbackUrl,omitempty"`
	Device      *DeviceState    `json:"device,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// PrimaryActuator executes directives against a real device or vendor service.
// One implementation serves one device family.
type PrimaryActuator interface {
	Execute(ctx context.Context, directive ActionDirective) (bool, error)
	// PlaybackURL returns a listen-along URL for music directives. Families
	// without one return "" and a nil error.
	PlaybackURL(ctx context.Context, directive ActionDirective) (string, error)
}
