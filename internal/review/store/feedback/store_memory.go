package feedback

import (
	"context"
	"sort"
	"sync"

	"caseview/internal/review/models"
	"caseview/pkg/requestcontext"
)

type feedbackKey struct {
	profileID  string
	hitID      string
	aspectType string
	operatorID int64
}

// InMemoryStore keeps aspect feedback in memory for tests and
// development.
type InMemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	feedback map[feedbackKey]*models.AspectFeedback
}

// New constructs an empty in-memory aspect feedback store.
func New() *InMemoryStore {
	return &InMemoryStore{
		nextID:   1,
		feedback: make(map[feedbackKey]*models.AspectFeedback),
	}
}

func (s *InMemoryStore) Upsert(ctx context.Context, fb *models.AspectFeedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := feedbackKey{
		profileID:  fb.ProfileUniqueID,
		hitID:      fb.DJProfileID,
		aspectType: fb.AspectType,
		operatorID: fb.OperatorID,
	}
	now := requestcontext.Now(ctx)

	stored, exists := s.feedback[key]
	if !exists {
		fb.ID = s.nextID
		s.nextID++
		fb.CreatedAt = now
		fb.UpdatedAt = now
		copied := *fb
		s.feedback[key] = &copied
		return nil
	}

	// Partial overwrite: nil request fields keep the stored value.
	if fb.LLMOutput != nil {
		stored.LLMOutput = fb.LLMOutput
	}
	if fb.LLMVerdictScore != nil {
		stored.LLMVerdictScore = fb.LLMVerdictScore
	}
	if fb.OperatorFeedback != nil {
		stored.OperatorFeedback = fb.OperatorFeedback
	}
	if fb.OperatorComment != nil {
		stored.OperatorComment = fb.OperatorComment
	}
	stored.UpdatedAt = now

	*fb = *stored
	return nil
}

func (s *InMemoryStore) ListByCaseAndOperator(_ context.Context, profileID, hitID string, operatorID int64) ([]*models.AspectFeedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var feedback []*models.AspectFeedback
	for key, fb := range s.feedback {
		if key.profileID == profileID && key.hitID == hitID && key.operatorID == operatorID {
			copied := *fb
			feedback = append(feedback, &copied)
		}
	}
	sort.Slice(feedback, func(i, j int) bool { return feedback[i].ID < feedback[j].ID })
	return feedback, nil
}
