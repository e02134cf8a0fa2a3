package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"caseview/internal/auth/models"
	"caseview/internal/platform/middleware"
	"caseview/pkg/platform/httputil"
	"caseview/pkg/requestcontext"

	dErrors "caseview/pkg/domain-errors"
)

// Service defines the interface for auth operations.
type Service interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.Operator, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error)
	Me(ctx context.Context, operatorID int64) (*models.Operator, error)
}

// Handler handles the /auth endpoints.
type Handler struct {
	logger       *slog.Logger
	auth         Service
	jwtValidator middleware.TokenValidator
}

// New creates a new auth Handler.
func New(auth Service, logger *slog.Logger, jwtValidator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:       logger,
		auth:         auth,
		jwtValidator: jwtValidator,
	}
}

// Register registers the auth routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		protected.Get("/auth/me", h.handleMe)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if err := validateRegisterRequest(req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	op, err := h.auth.Register(ctx, req)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeConflict) || dErrors.Is(err, dErrors.CodeInvalidInput) {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to register operator",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to register operator"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, op)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if !govalidator.IsEmail(req.Email) || req.Password == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "incorrect email or password"))
		return
	}

	token, err := h.auth.Login(ctx, req)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeUnauthorized) {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to log in operator",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to log in"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, token)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	op, err := h.auth.Me(ctx, requestcontext.OperatorID(ctx))
	if err != nil {
		if dErrors.Is(err, dErrors.CodeUnauthorized) {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to resolve operator",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to resolve operator"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, op)
}

func validateRegisterRequest(req models.RegisterRequest) error {
	// Name is optional; the service derives one from the email when
	// omitted.
	if req.Name != "" && !govalidator.StringLength(req.Name, "1", "255") {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid name")
	}
	if !govalidator.IsEmail(req.Email) || !govalidator.StringLength(req.Email, "1", "255") {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid email")
	}
	if !govalidator.StringLength(req.Password, "8", "128") {
		return dErrors.New(dErrors.CodeInvalidInput, "password must be 8-128 characters")
	}
	return nil
}
