package domain

import (
	"context"
	"time"
)

// HistoryEntry is one fused verdict remembered for a user.
type HistoryEntry struct {
	Emotion        EmotionLabel `json:"emotion"`
	At             time.Time    `json:"at"`
	Responded      bool         `json:"responded"`
	MessageVariant int          `json:"messageVariant,omitempty"`
}

// ConversationState tracks what the pipeline last saw for a user.
type ConversationState struct {
	UserID            string         `json:"userId"`
	LastEmotion       *EmotionLabel  `json:"lastEmotion,omitempty"`
	LastInteractionAt *time.Time     `json:"lastInteractionAt,omitempty"`
	LastResponseAt    *time.Time     `json:"lastResponseAt,omitempty"`
	History           []HistoryEntry `json:"history"`
	InteractionCount  int            `json:"interactionCount"`
}

// HasHistory reports whether any verdict was recorded for the user.
func (s ConversationState) HasHistory() bool {
	return s.LastEmotion != nil && s.LastInteractionAt != nil
}

// RecentResponses returns up to n most recent entries that produced a
// response, newest first.
func (s ConversationState) RecentResponses(n int) []HistoryEntry {
	out := make([]HistoryEntry, 0, n)
	for i := len(s.History) - 1; i >= 0 && len(out) < n; i-- {
		if s.History[i].Responded {
			out = append(out, s.History[i])
		}
	}
	return out
}

// Record advances the state with a new verdict and trims history to limit.
func (s *ConversationState) Record(entry HistoryEntry, limit int) {
	emotion := entry.Emotion
	at := entry.At
	s.LastEmotion = &emotion
	s.LastInteractionAt = &at
	if entry.Responded {
		s.LastResponseAt = &at
	}
	s.InteractionCount++

	s.History = append(s.History, entry)
	if limit > 0 && len(s.History) > limit {
		s.History = append([]HistoryEntry(nil), s.History[len(s.History)-limit:]...)
	}
}

// Clone returns a deep copy so callers can hand state out of a lock.
func (s ConversationState) Clone() ConversationState {
	out := s
	if s.LastEmotion != nil {
		e := *s.LastEmotion
		out.LastEmotion = &e
	}
	if s.LastInteractionAt != nil {
		t := *s.LastInteractionAt
		out.LastInteractionAt = &t
	}
	if s.LastResponseAt != nil {
		t := *s.LastResponseAt
		out.LastResponseAt = &t
	}
	out.History = append([]HistoryEntry(nil), s.History...)
	return out
}

// ConversationStore holds per-user conversation state.
// Update must be atomic per user: fn sees the latest state and its changes
// are committed before any other Update for the same user observes them.
type ConversationStore interface {
	Get(ctx context.Context, userID string) (ConversationState, bool, error)
	Update(ctx context.Context, userID string, fn func(state *ConversationState) error) (ConversationState, error)
	Delete(ctx context.Context, userID string) error
}
