package caselog

import (
	"context"
	"database/sql"
	"fmt"

	"caseview/internal/review/models"
	txcontext "caseview/pkg/platform/tx"
)

// PostgresStore persists case log entries in PostgreSQL. Logs are
// append-only; there is no update or delete path.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed case log store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer returns the transaction carried in ctx when there is one, so a
// log entry can commit atomically with the status update that caused it.
func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts the log entry and fills its id and created_at.
func (s *PostgresStore) Append(ctx context.Context, log *models.CaseLog) error {
	query := `
		INSERT INTO case_logs (profile_unique_id, dj_profile_id, event_type, payload, operator_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := s.execer(ctx).QueryRowContext(ctx, query,
		log.ProfileUniqueID,
		log.DJProfileID,
		log.EventType,
		[]byte(log.Payload),
		log.OperatorID,
	).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return fmt.Errorf("append case log: %w", err)
	}
	return nil
}

// ListByCase returns the case's log entries, newest first.
func (s *PostgresStore) ListByCase(ctx context.Context, profileID, hitID string) ([]*models.CaseLog, error) {
	query := `
		SELECT id, profile_unique_id, dj_profile_id, event_type, payload, created_at, operator_id
		FROM case_logs
		WHERE profile_unique_id = $1 AND dj_profile_id = $2
		ORDER BY id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, profileID, hitID)
	if err != nil {
		return nil, fmt.Errorf("query case logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.CaseLog
	for rows.Next() {
		var log models.CaseLog
		var payload []byte
		err := rows.Scan(
			&log.ID,
			&log.ProfileUniqueID,
			&log.DJProfileID,
			&log.EventType,
			&payload,
			&log.CreatedAt,
			&log.OperatorID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan case log: %w", err)
		}
		log.Payload = payload
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case logs: %w", err)
	}
	return logs, nil
}
