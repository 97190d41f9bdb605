package domain

import (
	"context"
	"time"
)

// ConsentRecord holds a user's per-channel data permissions.
// The zero value denies everything.
type ConsentRecord struct {
	UserID         string    `json:"userId"`
	EmotionSensing bool      `json:"emotionSensing"`
	Visual         bool      `json:"visual"`
	Audio          bool      `json:"audio"`
	Biometric      bool      `json:"biometric"`
	DataStorage    bool      `json:"dataStorage"`
	DataSharing    bool      `json:"dataSharing"`
	Anonymize      bool      `json:"anonymize"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// DenyAllConsent returns the record used for users that never granted consent.
func DenyAllConsent(userID string) ConsentRecord {
	return ConsentRecord{UserID: userID}
}

// Allows reports whether data from channel c may be processed.
// EmotionSensing is the master switch for every channel.
func (r ConsentRecord) Allows(c Channel) bool {
	if !r.EmotionSensing {
		return false
	}
	switch c {
	case ChannelVisual:
		return r.Visual
	case ChannelAudio:
		return r.Audio
	case ChannelBiometric:
		return r.Biometric
	case ChannelContextual, ChannelText:
		return true
	default:
		return false
	}
}

// ConsentStore is the durable home of consent records.
type ConsentStore interface {
	// Get returns ErrConsentNotFound if the user never stored a record.
	Get(ctx context.Context, userID string) (ConsentRecord, error)
	Put(ctx context.Context, record ConsentRecord) error
	Delete(ctx context.Context, userID string) error
}
