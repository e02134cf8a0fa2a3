package status

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"caseview/internal/review/models"
	"caseview/pkg/platform/sentinel"
	txcontext "caseview/pkg/platform/tx"
)

// PostgresStore persists case status rows in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed case status store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const statusColumns = `id, profile_unique_id, dj_profile_id, case_status, aspects_status, last_updated_at, last_updated_by`

// Find returns the status row for the case, or ErrNotFound.
func (s *PostgresStore) Find(ctx context.Context, profileID, hitID string) (*models.CaseStatus, error) {
	query := `
		SELECT ` + statusColumns + `
		FROM case_status
		WHERE profile_unique_id = $1 AND dj_profile_id = $2
	`
	return scanStatusRow(s.execer(ctx).QueryRowContext(ctx, query, profileID, hitID))
}

// CreateDefault inserts the 'unreviewed' default row for the case. The
// unique constraint on the natural key makes this safe under concurrent
// first reads: the loser of the race gets ErrConflict and re-reads.
func (s *PostgresStore) CreateDefault(ctx context.Context, profileID, hitID string) (*models.CaseStatus, error) {
	query := `
		INSERT INTO case_status (profile_unique_id, dj_profile_id, case_status, aspects_status)
		VALUES ($1, $2, $3, '{}')
		ON CONFLICT (profile_unique_id, dj_profile_id) DO NOTHING
		RETURNING ` + statusColumns + `
	`
	status, err := scanStatusRow(s.execer(ctx).QueryRowContext(ctx, query, profileID, hitID, models.CaseStatusUnreviewed))
	if errors.Is(err, sentinel.ErrNotFound) {
		// DO NOTHING returned no row: someone else inserted first.
		return nil, fmt.Errorf("case status %s/%s: %w", profileID, hitID, sentinel.ErrConflict)
	}
	return status, err
}

// Update writes the mutable fields of the status row and refreshes
// last_updated_at from the database clock.
func (s *PostgresStore) Update(ctx context.Context, status *models.CaseStatus) error {
	aspects, err := json.Marshal(status.AspectsStatus)
	if err != nil {
		return fmt.Errorf("marshal aspects status: %w", err)
	}

	query := `
		UPDATE case_status
		SET case_status = $1, aspects_status = $2, last_updated_at = now(), last_updated_by = $3
		WHERE profile_unique_id = $4 AND dj_profile_id = $5
		RETURNING last_updated_at
	`
	err = s.execer(ctx).QueryRowContext(ctx, query,
		status.CaseStatus,
		aspects,
		status.LastUpdatedBy,
		status.ProfileUniqueID,
		status.DJProfileID,
	).Scan(&status.LastUpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("case status %s/%s: %w", status.ProfileUniqueID, status.DJProfileID, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update case status: %w", err)
	}
	return nil
}

// FindByProfileIDs returns every status row whose profile id is in the
// given set, in one query. Callers filter by exact pair in memory.
func (s *PostgresStore) FindByProfileIDs(ctx context.Context, profileIDs []string) ([]*models.CaseStatus, error) {
	query := `
		SELECT ` + statusColumns + `
		FROM case_status
		WHERE profile_unique_id = ANY($1)
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(profileIDs))
	if err != nil {
		return nil, fmt.Errorf("query case statuses: %w", err)
	}
	defer rows.Close()

	var statuses []*models.CaseStatus
	for rows.Next() {
		status, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case statuses: %w", err)
	}
	return statuses, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatusRow(row *sql.Row) (*models.CaseStatus, error) {
	status, err := scanStatus(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("case status: %w", sentinel.ErrNotFound)
		}
		return nil, err
	}
	return status, nil
}

func scanStatus(row rowScanner) (*models.CaseStatus, error) {
	var status models.CaseStatus
	var aspects []byte
	err := row.Scan(
		&status.ID,
		&status.ProfileUniqueID,
		&status.DJProfileID,
		&status.CaseStatus,
		&aspects,
		&status.LastUpdatedAt,
		&status.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan case status: %w", err)
	}
	if err := json.Unmarshal(aspects, &status.AspectsStatus); err != nil {
		return nil, fmt.Errorf("unmarshal aspects status: %w", err)
	}
	if status.AspectsStatus == nil {
		status.AspectsStatus = map[string]string{}
	}
	return &status, nil
}
