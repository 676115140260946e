package memory

import (
	"context"
	"sync"

	"github.com/wolfeidau/feedgate/internal/models"
	"github.com/wolfeidau/feedgate/internal/store"
)

// SessionStore implements store.SessionStore using in-memory storage.
// Data is lost on restart, intended for development and testing.
type SessionStore struct {
	mu      sync.RWMutex
	records []*models.SessionRecord
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// Insert appends a new session record.
func (s *SessionStore) Insert(ctx context.Context, record *models.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clone to avoid external modifications
	clone := *record
	s.records = append(s.records, &clone)

	return nil
}

// All returns every stored session record.
func (s *SessionStore) All(ctx context.Context) ([]*models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*models.SessionRecord, 0, len(s.records))
	for _, record := range s.records {
		clone := *record
		records = append(records, &clone)
	}

	return records, nil
}

// Remove deletes all records matching the predicate.
func (s *SessionStore) Remove(ctx context.Context, match store.RecordPredicate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	removed := 0
	for _, record := range s.records {
		if match(record) {
			removed++
			continue
		}
		kept = append(kept, record)
	}
	s.records = kept

	return removed, nil
}
