// Package service implements the case-review workflows: browsing source
// cases, lazy status initialization, status patches with audit logging,
// aspect feedback upserts and batch status lookups.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"caseview/internal/platform/metrics"
	"caseview/internal/review/models"
	dErrors "caseview/pkg/domain-errors"
	"caseview/pkg/platform/sentinel"
	"caseview/pkg/platform/tx"
	"caseview/pkg/requestcontext"
)

// SourceStore provides read access to imported source cases.
type SourceStore interface {
	List(ctx context.Context, profileID string, skip, limit int) ([]*models.SourceCase, error)
	FindByKey(ctx context.Context, profileID, hitID string) (*models.SourceCase, error)
}

// StatusStore persists the mutable review state of cases.
type StatusStore interface {
	Find(ctx context.Context, profileID, hitID string) (*models.CaseStatus, error)
	CreateDefault(ctx context.Context, profileID, hitID string) (*models.CaseStatus, error)
	Update(ctx context.Context, status *models.CaseStatus) error
	FindByProfileIDs(ctx context.Context, profileIDs []string) ([]*models.CaseStatus, error)
}

// FeedbackStore persists per-operator aspect feedback.
type FeedbackStore interface {
	Upsert(ctx context.Context, fb *models.AspectFeedback) error
	ListByCaseAndOperator(ctx context.Context, profileID, hitID string, operatorID int64) ([]*models.AspectFeedback, error)
}

// LogStore persists append-only case log entries.
type LogStore interface {
	Append(ctx context.Context, log *models.CaseLog) error
	ListByCase(ctx context.Context, profileID, hitID string) ([]*models.CaseLog, error)
}

// Service orchestrates the case-review stores.
type Service struct {
	sources  SourceStore
	statuses StatusStore
	feedback FeedbackStore
	logs     LogStore
	tx       tx.Runner
	metrics  *metrics.Metrics
}

// New constructs the review service.
func New(sources SourceStore, statuses StatusStore, feedback FeedbackStore, logs LogStore, txRunner tx.Runner, m *metrics.Metrics) *Service {
	return &Service{
		sources:  sources,
		statuses: statuses,
		feedback: feedback,
		logs:     logs,
		tx:       txRunner,
		metrics:  m,
	}
}

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// ListCases returns a page of source cases, optionally restricted to one
// screened profile.
func (s *Service) ListCases(ctx context.Context, profileID string, skip, limit int) ([]*models.SourceCase, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	cases, err := s.sources.List(ctx, profileID, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	if cases == nil {
		cases = []*models.SourceCase{}
	}
	return cases, nil
}

// GetCase returns one source case by its natural key.
func (s *Service) GetCase(ctx context.Context, profileID, hitID string) (*models.SourceCase, error) {
	c, err := s.sources.FindByKey(ctx, profileID, hitID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "case not found")
		}
		return nil, fmt.Errorf("get case: %w", err)
	}
	return c, nil
}

// GetOrCreateStatus returns the case's status row, creating the
// 'unreviewed' default on first read. Losing a concurrent creation race
// falls back to reading the winner's row.
func (s *Service) GetOrCreateStatus(ctx context.Context, profileID, hitID string) (*models.CaseStatus, error) {
	status, err := s.statuses.Find(ctx, profileID, hitID)
	if err == nil {
		return status, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("find case status: %w", err)
	}

	status, err = s.statuses.CreateDefault(ctx, profileID, hitID)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			status, err = s.statuses.Find(ctx, profileID, hitID)
			if err != nil {
				return nil, fmt.Errorf("re-read case status after race: %w", err)
			}
			return status, nil
		}
		return nil, fmt.Errorf("create default case status: %w", err)
	}
	s.metrics.IncrementStatusesInitialized()
	return status, nil
}

// UpdateStatus applies the patch to the case's status row and appends a
// status_change log entry carrying the patch body, in one transaction.
// Nil patch fields leave the stored value untouched; a non-nil aspect
// map replaces the stored one wholesale.
func (s *Service) UpdateStatus(ctx context.Context, profileID, hitID string, patch models.StatusPatch, rawPatch json.RawMessage) (*models.CaseStatus, error) {
	if patch.CaseStatus == nil && patch.AspectsStatus == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "no fields to update")
	}

	operatorID := requestcontext.OperatorID(ctx)

	var updated *models.CaseStatus
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		status, err := s.GetOrCreateStatus(ctx, profileID, hitID)
		if err != nil {
			return err
		}

		if patch.CaseStatus != nil {
			status.CaseStatus = *patch.CaseStatus
		}
		if patch.AspectsStatus != nil {
			status.AspectsStatus = patch.AspectsStatus
		}
		status.LastUpdatedBy = &operatorID

		if err := s.statuses.Update(ctx, status); err != nil {
			return fmt.Errorf("update case status: %w", err)
		}

		log := &models.CaseLog{
			ProfileUniqueID: profileID,
			DJProfileID:     hitID,
			EventType:       models.EventTypeStatusChange,
			Payload:         rawPatch,
			OperatorID:      &operatorID,
		}
		if err := s.logs.Append(ctx, log); err != nil {
			return fmt.Errorf("append status change log: %w", err)
		}

		updated = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementStatusUpdates()
	s.metrics.IncrementLogsAppended()
	return updated, nil
}

// UpsertFeedback records the acting operator's feedback on one aspect of
// the case. A repeat submission for the same aspect overwrites only the
// fields present in the request.
func (s *Service) UpsertFeedback(ctx context.Context, profileID, hitID string, req models.FeedbackUpsert) (*models.AspectFeedback, error) {
	if req.AspectType == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "aspect_type is required")
	}

	fb := &models.AspectFeedback{
		ProfileUniqueID:  profileID,
		DJProfileID:      hitID,
		AspectType:       req.AspectType,
		LLMOutput:        req.LLMOutput,
		LLMVerdictScore:  req.LLMVerdictScore,
		OperatorFeedback: req.OperatorFeedback,
		OperatorComment:  req.OperatorComment,
		OperatorID:       requestcontext.OperatorID(ctx),
	}
	if err := s.feedback.Upsert(ctx, fb); err != nil {
		return nil, fmt.Errorf("upsert feedback: %w", err)
	}

	s.metrics.IncrementFeedbackUpserts()
	return fb, nil
}

// ListFeedback returns the acting operator's own feedback rows for the
// case. Other operators' feedback stays private to them.
func (s *Service) ListFeedback(ctx context.Context, profileID, hitID string) ([]*models.AspectFeedback, error) {
	feedback, err := s.feedback.ListByCaseAndOperator(ctx, profileID, hitID, requestcontext.OperatorID(ctx))
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	if feedback == nil {
		feedback = []*models.AspectFeedback{}
	}
	return feedback, nil
}

// AppendLog records an operator-submitted log entry on the case. The
// event type defaults to 'comment'; an omitted payload stays null.
func (s *Service) AppendLog(ctx context.Context, profileID, hitID string, req models.AppendLogRequest) (*models.CaseLog, error) {
	eventType := req.EventType
	if eventType == "" {
		eventType = models.EventTypeComment
	}

	operatorID := requestcontext.OperatorID(ctx)
	log := &models.CaseLog{
		ProfileUniqueID: profileID,
		DJProfileID:     hitID,
		EventType:       eventType,
		Payload:         req.Payload,
		OperatorID:      &operatorID,
	}
	if err := s.logs.Append(ctx, log); err != nil {
		return nil, fmt.Errorf("append log: %w", err)
	}

	s.metrics.IncrementLogsAppended()
	return log, nil
}

// ListLogs returns the case's log entries, newest first.
func (s *Service) ListLogs(ctx context.Context, profileID, hitID string) ([]*models.CaseLog, error) {
	logs, err := s.logs.ListByCase(ctx, profileID, hitID)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	if logs == nil {
		logs = []*models.CaseLog{}
	}
	return logs, nil
}

// BatchStatuses resolves the status of many cases in one call. Existing
// rows are fetched with a single query; missing ones are initialized to
// the 'unreviewed' default. The response preserves request order.
func (s *Service) BatchStatuses(ctx context.Context, req models.BatchStatusRequest) (*models.BatchStatusResponse, error) {
	resp := &models.BatchStatusResponse{Items: []models.BatchStatusItem{}}
	if len(req.Pairs) == 0 {
		return resp, nil
	}

	seen := make(map[string]bool, len(req.Pairs))
	var profileIDs []string
	for _, pair := range req.Pairs {
		if !seen[pair.ProfileUniqueID] {
			seen[pair.ProfileUniqueID] = true
			profileIDs = append(profileIDs, pair.ProfileUniqueID)
		}
	}

	existing, err := s.statuses.FindByProfileIDs(ctx, profileIDs)
	if err != nil {
		return nil, fmt.Errorf("batch find case statuses: %w", err)
	}
	byKey := make(map[models.CaseKey]*models.CaseStatus, len(existing))
	for _, status := range existing {
		byKey[models.CaseKey{ProfileUniqueID: status.ProfileUniqueID, DJProfileID: status.DJProfileID}] = status
	}

	for _, pair := range req.Pairs {
		status, ok := byKey[pair]
		if !ok {
			status, err = s.GetOrCreateStatus(ctx, pair.ProfileUniqueID, pair.DJProfileID)
			if err != nil {
				return nil, fmt.Errorf("batch initialize case status %s/%s: %w", pair.ProfileUniqueID, pair.DJProfileID, err)
			}
			byKey[pair] = status
		}
		resp.Items = append(resp.Items, models.BatchStatusItem{
			ProfileUniqueID: pair.ProfileUniqueID,
			DJProfileID:     pair.DJProfileID,
			Status:          *status,
		})
	}
	return resp, nil
}
