package status

import (
	"context"
	"fmt"
	"sync"

	"caseview/internal/review/models"
	"caseview/pkg/platform/sentinel"
	"caseview/pkg/requestcontext"
)

// InMemoryStore keeps case status rows in memory for tests and
// development.
type InMemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	statuses map[models.CaseKey]*models.CaseStatus
}

// New constructs an empty in-memory case status store.
func New() *InMemoryStore {
	return &InMemoryStore{
		nextID:   1,
		statuses: make(map[models.CaseKey]*models.CaseStatus),
	}
}

func (s *InMemoryStore) Find(_ context.Context, profileID, hitID string) (*models.CaseStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if status, ok := s.statuses[models.CaseKey{ProfileUniqueID: profileID, DJProfileID: hitID}]; ok {
		return copyStatus(status), nil
	}
	return nil, fmt.Errorf("case status %s/%s: %w", profileID, hitID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) CreateDefault(ctx context.Context, profileID, hitID string) (*models.CaseStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.CaseKey{ProfileUniqueID: profileID, DJProfileID: hitID}
	if _, exists := s.statuses[key]; exists {
		return nil, fmt.Errorf("case status %s/%s: %w", profileID, hitID, sentinel.ErrConflict)
	}

	status := &models.CaseStatus{
		ID:              s.nextID,
		ProfileUniqueID: profileID,
		DJProfileID:     hitID,
		CaseStatus:      models.CaseStatusUnreviewed,
		AspectsStatus:   map[string]string{},
		LastUpdatedAt:   requestcontext.Now(ctx),
	}
	s.nextID++
	s.statuses[key] = status
	return copyStatus(status), nil
}

func (s *InMemoryStore) Update(ctx context.Context, status *models.CaseStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.CaseKey{ProfileUniqueID: status.ProfileUniqueID, DJProfileID: status.DJProfileID}
	stored, ok := s.statuses[key]
	if !ok {
		return fmt.Errorf("case status %s/%s: %w", status.ProfileUniqueID, status.DJProfileID, sentinel.ErrNotFound)
	}

	stored.CaseStatus = status.CaseStatus
	stored.AspectsStatus = copyAspects(status.AspectsStatus)
	stored.LastUpdatedBy = status.LastUpdatedBy
	stored.LastUpdatedAt = requestcontext.Now(ctx)
	status.LastUpdatedAt = stored.LastUpdatedAt
	status.ID = stored.ID
	return nil
}

func (s *InMemoryStore) FindByProfileIDs(_ context.Context, profileIDs []string) ([]*models.CaseStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(profileIDs))
	for _, id := range profileIDs {
		wanted[id] = true
	}

	var statuses []*models.CaseStatus
	for key, status := range s.statuses {
		if wanted[key.ProfileUniqueID] {
			statuses = append(statuses, copyStatus(status))
		}
	}
	return statuses, nil
}

func copyStatus(status *models.CaseStatus) *models.CaseStatus {
	copied := *status
	copied.AspectsStatus = copyAspects(status.AspectsStatus)
	return &copied
}

func copyAspects(aspects map[string]string) map[string]string {
	copied := make(map[string]string, len(aspects))
	for aspect, state := range aspects {
		copied[aspect] = state
	}
	return copied
}
