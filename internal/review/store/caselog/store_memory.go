package caselog

import (
	"context"
	"sync"

	"caseview/internal/review/models"
	"caseview/pkg/requestcontext"
)

// InMemoryStore keeps case logs in memory for tests and development.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	logs   []*models.CaseLog
}

// New constructs an empty in-memory case log store.
func New() *InMemoryStore {
	return &InMemoryStore{nextID: 1}
}

func (s *InMemoryStore) Append(ctx context.Context, log *models.CaseLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.ID = s.nextID
	s.nextID++
	log.CreatedAt = requestcontext.Now(ctx)

	copied := *log
	s.logs = append(s.logs, &copied)
	return nil
}

func (s *InMemoryStore) ListByCase(_ context.Context, profileID, hitID string) ([]*models.CaseLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Newest first, matching the SQL store's ORDER BY id DESC.
	var logs []*models.CaseLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		log := s.logs[i]
		if log.ProfileUniqueID == profileID && log.DJProfileID == hitID {
			copied := *log
			logs = append(logs, &copied)
		}
	}
	return logs, nil
}
