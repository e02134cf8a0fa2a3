package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"caseview/internal/review/models"
	"caseview/pkg/platform/sentinel"
	"caseview/pkg/requestcontext"
)

// InMemoryStore keeps source cases in memory for tests and development.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	cases  map[models.CaseKey]*models.SourceCase
}

// New constructs an empty in-memory source case store.
func New() *InMemoryStore {
	return &InMemoryStore{
		nextID: 1,
		cases:  make(map[models.CaseKey]*models.SourceCase),
	}
}

func (s *InMemoryStore) List(_ context.Context, profileID string, skip, limit int) ([]*models.SourceCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cases []*models.SourceCase
	for _, c := range s.cases {
		if profileID == "" || c.ProfileUniqueID == profileID {
			copied := *c
			cases = append(cases, &copied)
		}
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].ID < cases[j].ID })

	if skip >= len(cases) {
		return nil, nil
	}
	cases = cases[skip:]
	if limit < len(cases) {
		cases = cases[:limit]
	}
	return cases, nil
}

func (s *InMemoryStore) FindByKey(_ context.Context, profileID, hitID string) (*models.SourceCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.cases[models.CaseKey{ProfileUniqueID: profileID, DJProfileID: hitID}]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, fmt.Errorf("source case %s/%s: %w", profileID, hitID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) Upsert(ctx context.Context, c *models.SourceCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.CaseKey{ProfileUniqueID: c.ProfileUniqueID, DJProfileID: c.DJProfileID}
	if stored, ok := s.cases[key]; ok {
		c.ID = stored.ID
		c.CreatedAt = stored.CreatedAt
	} else {
		c.ID = s.nextID
		s.nextID++
		c.CreatedAt = requestcontext.Now(ctx)
	}

	copied := *c
	s.cases[key] = &copied
	return nil
}
