package consent

import (
	"context"
	"sync"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

// MemoryStore keeps consent records in process memory for single-instance mode.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.ConsentRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]domain.ConsentRecord)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (domain.ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[userID]
	if !ok {
		return domain.ConsentRecord{}, domain.ErrConsentNotFound
	}
	return record, nil
}

func (s *MemoryStore) Put(_ context.Context, record domain.ConsentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.UserID] = record
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}
