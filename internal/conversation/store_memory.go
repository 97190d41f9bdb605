package conversation

import (
	"context"
	"sync"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

type slot struct {
	mu      sync.Mutex
	state   domain.ConversationState
	live    bool // state has been committed at least once
	removed bool
}

// MemoryStore is an in-process domain.ConversationStore. State lives until
// Delete or process exit.
type MemoryStore struct {
	mu    sync.Mutex // guards slots, never held while a slot is locked
	slots map[string]*slot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]*slot)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (domain.ConversationState, bool, error) {
	s.mu.Lock()
	sl, ok := s.slots[userID]
	s.mu.Unlock()
	if !ok {
		return domain.ConversationState{UserID: userID}, false, nil
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	if !sl.live || sl.removed {
		return domain.ConversationState{UserID: userID}, false, nil
	}
	return sl.state.Clone(), true, nil
}

// Update runs fn on the user's state while holding that user's lock. If fn
// fails nothing is committed.
func (s *MemoryStore) Update(_ context.Context, userID string, fn func(*domain.ConversationState) error) (domain.ConversationState, error) {
	if userID == "" {
		return domain.ConversationState{}, domain.ErrUserIDRequired
	}

	for {
		sl := s.slotFor(userID)
		sl.mu.Lock()
		if sl.removed {
			// Evicted between lookup and lock; take the fresh slot.
			sl.mu.Unlock()
			continue
		}

		working := sl.state.Clone()
		working.UserID = userID

		if err := fn(&working); err != nil {
			sl.mu.Unlock()
			return domain.ConversationState{}, err
		}

		sl.state = working
		sl.live = true
		out := working.Clone()
		sl.mu.Unlock()
		return out, nil
	}
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	sl, ok := s.slots[userID]
	delete(s.slots, userID)
	s.mu.Unlock()

	if ok {
		sl.mu.Lock()
		sl.removed = true
		sl.mu.Unlock()
	}
	return nil
}

// Len returns the number of live slots.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

func (s *MemoryStore) slotFor(userID string) *slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[userID]
	if !ok {
		sl = &slot{}
		s.slots[userID] = sl
	}
	return sl
}
