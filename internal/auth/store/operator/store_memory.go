package operator

import (
	"context"
	"fmt"
	"sync"

	"caseview/internal/auth/models"
	"caseview/pkg/platform/sentinel"
	"caseview/pkg/requestcontext"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Return ErrConflict when a uniqueness rule rejects the write
// - Return wrapped errors with context for infrastructure failures

// InMemoryStore keeps operators in memory for tests and development.
type InMemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*models.Operator
	byEmail map[string]*models.Operator
}

// New constructs an empty in-memory operator store.
func New() *InMemoryStore {
	return &InMemoryStore{
		nextID:  1,
		byID:    make(map[int64]*models.Operator),
		byEmail: make(map[string]*models.Operator),
	}
}

// Create inserts the operator, assigning its id and creation time.
func (s *InMemoryStore) Create(ctx context.Context, op *models.Operator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[op.Email]; exists {
		return fmt.Errorf("operator email %q: %w", op.Email, sentinel.ErrConflict)
	}

	op.ID = s.nextID
	s.nextID++
	op.CreatedAt = requestcontext.Now(ctx)

	stored := *op
	s.byID[op.ID] = &stored
	s.byEmail[op.Email] = &stored
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id int64) (*models.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if op, ok := s.byID[id]; ok {
		copied := *op
		return &copied, nil
	}
	return nil, fmt.Errorf("operator %d: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if op, ok := s.byEmail[email]; ok {
		copied := *op
		return &copied, nil
	}
	return nil, fmt.Errorf("operator email %q: %w", email, sentinel.ErrNotFound)
}
