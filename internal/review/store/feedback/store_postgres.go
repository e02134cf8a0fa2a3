package feedback

import (
	"context"
	"database/sql"
	"fmt"

	"caseview/internal/review/models"
	txcontext "caseview/pkg/platform/tx"
)

// PostgresStore persists aspect feedback in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed aspect feedback store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Upsert inserts the feedback row or, when one already exists for the
// (case, aspect, operator) key, overwrites only the non-nil fields.
// COALESCE keeps stored values where the request omitted a field, which
// mirrors the partial-update contract of the API. The merged row is
// written back to fb.
func (s *PostgresStore) Upsert(ctx context.Context, fb *models.AspectFeedback) error {
	query := `
		INSERT INTO aspect_feedback (
			profile_unique_id, dj_profile_id, aspect_type, operator_id,
			llm_output, llm_verdict_score, operator_feedback, operator_comment
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (profile_unique_id, dj_profile_id, aspect_type, operator_id) DO UPDATE SET
			llm_output        = COALESCE(EXCLUDED.llm_output, aspect_feedback.llm_output),
			llm_verdict_score = COALESCE(EXCLUDED.llm_verdict_score, aspect_feedback.llm_verdict_score),
			operator_feedback = COALESCE(EXCLUDED.operator_feedback, aspect_feedback.operator_feedback),
			operator_comment  = COALESCE(EXCLUDED.operator_comment, aspect_feedback.operator_comment),
			updated_at        = now()
		RETURNING id, llm_output, llm_verdict_score, operator_feedback, operator_comment, created_at, updated_at
	`
	err := s.execer(ctx).QueryRowContext(ctx, query,
		fb.ProfileUniqueID,
		fb.DJProfileID,
		fb.AspectType,
		fb.OperatorID,
		fb.LLMOutput,
		fb.LLMVerdictScore,
		fb.OperatorFeedback,
		fb.OperatorComment,
	).Scan(
		&fb.ID,
		&fb.LLMOutput,
		&fb.LLMVerdictScore,
		&fb.OperatorFeedback,
		&fb.OperatorComment,
		&fb.CreatedAt,
		&fb.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert aspect feedback: %w", err)
	}
	return nil
}

// ListByCaseAndOperator returns the operator's own feedback rows for the
// case, ordered by id.
func (s *PostgresStore) ListByCaseAndOperator(ctx context.Context, profileID, hitID string, operatorID int64) ([]*models.AspectFeedback, error) {
	query := `
		SELECT id, profile_unique_id, dj_profile_id, aspect_type,
		       llm_output, llm_verdict_score, operator_feedback, operator_comment,
		       created_at, updated_at, operator_id
		FROM aspect_feedback
		WHERE profile_unique_id = $1 AND dj_profile_id = $2 AND operator_id = $3
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, profileID, hitID, operatorID)
	if err != nil {
		return nil, fmt.Errorf("query aspect feedback: %w", err)
	}
	defer rows.Close()

	var feedback []*models.AspectFeedback
	for rows.Next() {
		var fb models.AspectFeedback
		err := rows.Scan(
			&fb.ID,
			&fb.ProfileUniqueID,
			&fb.DJProfileID,
			&fb.AspectType,
			&fb.LLMOutput,
			&fb.LLMVerdictScore,
			&fb.OperatorFeedback,
			&fb.OperatorComment,
			&fb.CreatedAt,
			&fb.UpdatedAt,
			&fb.OperatorID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan aspect feedback: %w", err)
		}
		feedback = append(feedback, &fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aspect feedback: %w", err)
	}
	return feedback, nil
}
