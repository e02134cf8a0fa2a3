package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"caseview/internal/review/models"
	"caseview/pkg/platform/sentinel"
	txcontext "caseview/pkg/platform/tx"
)

// PostgresStore persists source cases in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed source case store.
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

const sourceColumns = `id, profile_unique_id, dj_profile_id, reference_id, profile_info,
	structured_record, hit_record, candidate_name, final_score,
	aspect_name_json, aspect_age_json, aspect_nationality_json, aspect_risk_json, created_at`

// List returns a page of source cases, optionally restricted to one
// screened profile. Ordered by id for a stable pagination cursor.
func (s *PostgresStore) List(ctx context.Context, profileID string, skip, limit int) ([]*models.SourceCase, error) {
	query := `
		SELECT ` + sourceColumns + `
		FROM source_cases
		WHERE ($1 = '' OR profile_unique_id = $1)
		ORDER BY id
		OFFSET $2 LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, profileID, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("query source cases: %w", err)
	}
	defer rows.Close()

	var cases []*models.SourceCase
	for rows.Next() {
		c, err := scanSourceCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source cases: %w", err)
	}
	return cases, nil
}

// FindByKey returns the source case for the natural key, or ErrNotFound.
func (s *PostgresStore) FindByKey(ctx context.Context, profileID, hitID string) (*models.SourceCase, error) {
	query := `
		SELECT ` + sourceColumns + `
		FROM source_cases
		WHERE profile_unique_id = $1 AND dj_profile_id = $2
	`
	c, err := scanSourceCase(s.db.QueryRowContext(ctx, query, profileID, hitID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source case %s/%s: %w", profileID, hitID, sentinel.ErrNotFound)
	}
	return c, err
}

// Upsert inserts the source case or refreshes an existing row with the
// same natural key. Used only by the importer.
func (s *PostgresStore) Upsert(ctx context.Context, c *models.SourceCase) error {
	query := `
		INSERT INTO source_cases (
			profile_unique_id, dj_profile_id, reference_id, profile_info,
			structured_record, hit_record, candidate_name, final_score,
			aspect_name_json, aspect_age_json, aspect_nationality_json, aspect_risk_json
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (profile_unique_id, dj_profile_id) DO UPDATE SET
			reference_id            = EXCLUDED.reference_id,
			profile_info            = EXCLUDED.profile_info,
			structured_record       = EXCLUDED.structured_record,
			hit_record              = EXCLUDED.hit_record,
			candidate_name          = EXCLUDED.candidate_name,
			final_score             = EXCLUDED.final_score,
			aspect_name_json        = EXCLUDED.aspect_name_json,
			aspect_age_json         = EXCLUDED.aspect_age_json,
			aspect_nationality_json = EXCLUDED.aspect_nationality_json,
			aspect_risk_json        = EXCLUDED.aspect_risk_json
		RETURNING id, created_at
	`
	err := s.execer(ctx).QueryRowContext(ctx, query,
		c.ProfileUniqueID,
		c.DJProfileID,
		c.ReferenceID,
		[]byte(c.ProfileInfo),
		c.StructuredRecord,
		[]byte(c.HitRecord),
		c.CandidateName,
		c.FinalScore,
		c.AspectNameJSON,
		c.AspectAgeJSON,
		c.AspectNationalityJSON,
		c.AspectRiskJSON,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert source case: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSourceCase(row rowScanner) (*models.SourceCase, error) {
	var c models.SourceCase
	var profileInfo, hitRecord []byte
	err := row.Scan(
		&c.ID,
		&c.ProfileUniqueID,
		&c.DJProfileID,
		&c.ReferenceID,
		&profileInfo,
		&c.StructuredRecord,
		&hitRecord,
		&c.CandidateName,
		&c.FinalScore,
		&c.AspectNameJSON,
		&c.AspectAgeJSON,
		&c.AspectNationalityJSON,
		&c.AspectRiskJSON,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan source case: %w", err)
	}
	c.ProfileInfo = profileInfo
	c.HitRecord = hitRecord
	return &c, nil
}
