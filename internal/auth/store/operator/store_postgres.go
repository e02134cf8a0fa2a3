package operator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"caseview/internal/auth/models"
	"caseview/pkg/platform/sentinel"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

// PostgresStore persists operators in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed operator store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts the operator. The database assigns id and created_at;
// both are written back to op. A duplicate email surfaces as ErrConflict.
func (s *PostgresStore) Create(ctx context.Context, op *models.Operator) error {
	query := `
		INSERT INTO operators (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query, op.Name, op.Email, op.PasswordHash, string(op.Role)).
		Scan(&op.ID, &op.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("operator email %q: %w", op.Email, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert operator: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Operator, error) {
	query := `
		SELECT id, name, email, password_hash, role, created_at
		FROM operators
		WHERE id = $1
	`
	return s.scanOperator(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Operator, error) {
	query := `
		SELECT id, name, email, password_hash, role, created_at
		FROM operators
		WHERE email = $1
	`
	return s.scanOperator(s.db.QueryRowContext(ctx, query, email))
}

func (s *PostgresStore) scanOperator(row *sql.Row) (*models.Operator, error) {
	var op models.Operator
	var role string
	err := row.Scan(&op.ID, &op.Name, &op.Email, &op.PasswordHash, &role, &op.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operator: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan operator: %w", err)
	}
	op.Role = models.Role(role)
	return &op, nil
}
