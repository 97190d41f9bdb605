package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventEmotionDetected  = "emotion_detected"
	EventAdaptiveResponse = "adaptive_response"
	EventDeviceAction     = "device_action"
)

// Event is one message pushed to listeners subscribed to a user.
type Event struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"event"`
	UserID  string    `json:"userId"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// NewEvent stamps a payload with a fresh id.
func NewEvent(name, userID string, at time.Time, payload any) Event {
	return Event{
		ID:      uuid.New(),
		Name:    name,
		UserID:  userID,
		At:      at,
		Payload: payload,
	}
}

// Broadcaster pushes events to real-time listeners.
// Delivery is at-least-once with no ordering guarantee across subscribers.
type Broadcaster interface {
	Publish(ctx context.Context, event Event) error
}
