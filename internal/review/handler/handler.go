// Package handler exposes the case-review API under /v2. All routes
// require a valid operator token.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"caseview/internal/platform/middleware"
	"caseview/internal/review/models"
	"caseview/pkg/platform/httputil"
	"caseview/pkg/requestcontext"

	dErrors "caseview/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies; status patches and feedback are
// small JSON documents.
const maxBodyBytes = 1 << 20

// Service defines the review operations the handler depends on.
type Service interface {
	ListCases(ctx context.Context, profileID string, skip, limit int) ([]*models.SourceCase, error)
	GetCase(ctx context.Context, profileID, hitID string) (*models.SourceCase, error)
	GetOrCreateStatus(ctx context.Context, profileID, hitID string) (*models.CaseStatus, error)
	UpdateStatus(ctx context.Context, profileID, hitID string, patch models.StatusPatch, rawPatch json.RawMessage) (*models.CaseStatus, error)
	UpsertFeedback(ctx context.Context, profileID, hitID string, req models.FeedbackUpsert) (*models.AspectFeedback, error)
	ListFeedback(ctx context.Context, profileID, hitID string) ([]*models.AspectFeedback, error)
	AppendLog(ctx context.Context, profileID, hitID string, req models.AppendLogRequest) (*models.CaseLog, error)
	ListLogs(ctx context.Context, profileID, hitID string) ([]*models.CaseLog, error)
	BatchStatuses(ctx context.Context, req models.BatchStatusRequest) (*models.BatchStatusResponse, error)
}

// Handler handles the /v2 case-review endpoints.
type Handler struct {
	logger       *slog.Logger
	review       Service
	jwtValidator middleware.TokenValidator
}

// New creates a new review Handler.
func New(review Service, logger *slog.Logger, jwtValidator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:       logger,
		review:       review,
		jwtValidator: jwtValidator,
	}
}

// Register registers the review routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		protected.Route("/v2/cases", func(r chi.Router) {
			r.Get("/", h.handleListCases)
			r.Post("/status:batch", h.handleBatchStatuses)

			r.Route("/{profileID}/{hitID}", func(r chi.Router) {
				r.Get("/", h.handleGetCase)
				r.Get("/status", h.handleGetStatus)
				r.Patch("/status", h.handlePatchStatus)
				r.Get("/feedback", h.handleListFeedback)
				r.Post("/feedback", h.handleUpsertFeedback)
				r.Get("/logs", h.handleListLogs)
				r.Post("/logs", h.handleAppendLog)
			})
		})
	})
}

func caseKey(r *http.Request) (string, string) {
	return chi.URLParam(r, "profileID"), chi.URLParam(r, "hitID")
}

func (h *Handler) handleListCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cases, err := h.review.ListCases(ctx, r.URL.Query().Get("profile_unique_id"), skip, limit)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list cases")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cases)
}

func (h *Handler) handleGetCase(w http.ResponseWriter, r *http.Request) {
	profileID, hitID := caseKey(r)

	c, err := h.review.GetCase(r.Context(), profileID, hitID)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to get case")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	profileID, hitID := caseKey(r)

	status, err := h.review.GetOrCreateStatus(r.Context(), profileID, hitID)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to get case status")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handlePatchStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profileID, hitID := caseKey(r)

	// The raw body doubles as the audit log payload, so read it once and
	// decode from the bytes.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	var patch models.StatusPatch
	if err := json.Unmarshal(body, &patch); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	status, err := h.review.UpdateStatus(ctx, profileID, hitID, patch, json.RawMessage(body))
	if err != nil {
		h.writeServiceError(w, r, err, "failed to update case status")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handleUpsertFeedback(w http.ResponseWriter, r *http.Request) {
	profileID, hitID := caseKey(r)

	var req models.FeedbackUpsert
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	fb, err := h.review.UpsertFeedback(r.Context(), profileID, hitID, req)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to save feedback")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fb)
}

func (h *Handler) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	profileID, hitID := caseKey(r)

	feedback, err := h.review.ListFeedback(r.Context(), profileID, hitID)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list feedback")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, feedback)
}

func (h *Handler) handleAppendLog(w http.ResponseWriter, r *http.Request) {
	profileID, hitID := caseKey(r)

	var req models.AppendLogRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	log, err := h.review.AppendLog(r.Context(), profileID, hitID, req)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to append log")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, log)
}

func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	profileID, hitID := caseKey(r)

	logs, err := h.review.ListLogs(r.Context(), profileID, hitID)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list logs")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, logs)
}

func (h *Handler) handleBatchStatuses(w http.ResponseWriter, r *http.Request) {
	var req models.BatchStatusRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	resp, err := h.review.BatchStatuses(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to resolve batch statuses")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// writeServiceError passes expected domain errors through and hides
// everything else behind a 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, internalMsg string) {
	ctx := r.Context()
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound, dErrors.CodeInvalidInput, dErrors.CodeConflict, dErrors.CodeUnauthorized:
		httputil.WriteError(w, err)
	default:
		h.logger.ErrorContext(ctx, internalMsg,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, internalMsg))
	}
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid "+name+" parameter")
	}
	return v, nil
}
