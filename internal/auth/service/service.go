package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"caseview/internal/auth/models"
	jwttoken "caseview/internal/jwt_token"
	"caseview/internal/platform/metrics"
	"caseview/pkg/email"
	"caseview/pkg/platform/sentinel"

	dErrors "caseview/pkg/domain-errors"
)

// OperatorStore is the persistence boundary for operators.
type OperatorStore interface {
	Create(ctx context.Context, op *models.Operator) error
	FindByID(ctx context.Context, id int64) (*models.Operator, error)
	FindByEmail(ctx context.Context, email string) (*models.Operator, error)
}

// Service implements registration, login and operator resolution. It
// keeps transport concerns out of business logic.
type Service struct {
	operators OperatorStore
	jwt       *jwttoken.JWTService
	tokenTTL  time.Duration
	metrics   *metrics.Metrics
}

func NewService(operators OperatorStore, jwt *jwttoken.JWTService, tokenTTL time.Duration, m *metrics.Metrics) *Service {
	return &Service{
		operators: operators,
		jwt:       jwt,
		tokenTTL:  tokenTTL,
		metrics:   m,
	}
}

// Register creates an operator with a bcrypt password hash. Duplicate
// emails fail with Conflict and leave the existing row untouched. An
// omitted name is derived from the email's local part.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.Operator, error) {
	role := req.Role
	if role == "" {
		role = models.RoleAnalyst
	}
	if !role.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid role: %s", role)
	}

	if req.Name == "" {
		first, last := email.DeriveNameFromEmail(req.Email)
		req.Name = first + " " + last
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInternal, "failed to hash password")
	}

	op := &models.Operator{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.operators.Create(ctx, op); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, err
	}

	s.metrics.IncrementOperatorsRegistered()
	return op, nil
}

// Login verifies credentials and issues a bearer token. Unknown emails
// and wrong passwords answer identically so the endpoint does not leak
// which accounts exist.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error) {
	op, err := s.operators.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "incorrect email or password")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "incorrect email or password")
	}

	token, err := s.jwt.GenerateAccessToken(op.ID, op.Email, string(op.Role), s.tokenTTL)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInternal, "failed to issue token")
	}

	return &models.TokenResponse{AccessToken: token, TokenType: "bearer"}, nil
}

// Me resolves the acting operator from its id. A token for a deleted
// operator is treated the same as an invalid one.
func (s *Service) Me(ctx context.Context, operatorID int64) (*models.Operator, error) {
	op, err := s.operators.FindByID(ctx, operatorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "operator no longer exists")
		}
		return nil, err
	}
	return op, nil
}
