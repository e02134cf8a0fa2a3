// Package importer loads upstream screening exports (CSV or XLSX) into
// the case-review tables: source cases, seeded aspect feedback and the
// default case status.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	authmodels "caseview/internal/auth/models"
	"caseview/internal/review/models"
	"caseview/pkg/platform/sentinel"
	"caseview/pkg/platform/tx"
)

// Default credentials of the bootstrap operator that owns imported
// feedback rows. Meant for development datasets; rotate in production.
const (
	DefaultOperatorEmail    = "operator@example.com"
	DefaultOperatorPassword = "password123"
)

// aspectColumns maps each review aspect to its export column.
var aspectColumns = map[string]string{
	"name":        "name_llm_output",
	"age":         "age_llm_output",
	"nationality": "nationality_llm_output",
	"risk":        "risk_llm_output",
}

// OperatorStore is the slice of the operator store the importer needs to
// bootstrap its default operator.
type OperatorStore interface {
	Create(ctx context.Context, op *authmodels.Operator) error
	FindByEmail(ctx context.Context, email string) (*authmodels.Operator, error)
}

// SourceStore upserts imported source cases.
type SourceStore interface {
	Upsert(ctx context.Context, c *models.SourceCase) error
}

// FeedbackStore seeds per-aspect feedback rows.
type FeedbackStore interface {
	Upsert(ctx context.Context, fb *models.AspectFeedback) error
}

// StatusStore initializes the default status of imported cases.
type StatusStore interface {
	CreateDefault(ctx context.Context, profileID, hitID string) (*models.CaseStatus, error)
}

// Summary reports what one import run did.
type Summary struct {
	RowsOK  int
	RowsErr int
}

// Importer drives one import run.
type Importer struct {
	logger    *slog.Logger
	operators OperatorStore
	sources   SourceStore
	feedback  FeedbackStore
	statuses  StatusStore
	tx        tx.Runner
	batchSize int
}

// New constructs an Importer committing every batchSize rows.
func New(operators OperatorStore, sources SourceStore, feedback FeedbackStore, statuses StatusStore, txRunner tx.Runner, logger *slog.Logger, batchSize int) *Importer {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Importer{
		logger:    logger,
		operators: operators,
		sources:   sources,
		feedback:  feedback,
		statuses:  statuses,
		tx:        txRunner,
		batchSize: batchSize,
	}
}

// Run imports the file at path. Rows that fail to import are logged and
// skipped; the rest of the file still loads.
func (i *Importer) Run(ctx context.Context, path string) (*Summary, error) {
	operator, err := i.ensureDefaultOperator(ctx)
	if err != nil {
		return nil, err
	}
	i.logger.InfoContext(ctx, "using import operator", "email", operator.Email, "operator_id", operator.ID)

	rows, err := ReadRows(path)
	if err != nil {
		return nil, err
	}
	i.logger.InfoContext(ctx, "processing import file", "path", path, "rows", len(rows))

	summary := &Summary{}
	for start := 0; start < len(rows); start += i.batchSize {
		end := start + i.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		err := i.tx.RunInTx(ctx, func(ctx context.Context) error {
			for idx, row := range batch {
				if err := i.importRow(ctx, row, operator.ID); err != nil {
					return fmt.Errorf("row %d: %w", start+idx, err)
				}
			}
			return nil
		})
		if err == nil {
			summary.RowsOK += len(batch)
			i.logger.InfoContext(ctx, "committed batch", "rows", len(batch), "processed", end, "total", len(rows))
			continue
		}

		// The batch rolled back as a whole. Retry its rows one by one so
		// a single bad row does not discard its neighbors.
		i.logger.WarnContext(ctx, "batch failed, retrying rows individually", "error", err.Error())
		for idx, row := range batch {
			err := i.tx.RunInTx(ctx, func(ctx context.Context) error {
				return i.importRow(ctx, row, operator.ID)
			})
			if err != nil {
				summary.RowsErr++
				i.logger.ErrorContext(ctx, "failed to import row", "row", start+idx, "error", err.Error())
				continue
			}
			summary.RowsOK++
		}
	}

	i.logger.InfoContext(ctx, "import finished", "rows_ok", summary.RowsOK, "rows_err", summary.RowsErr)
	return summary, nil
}

// ensureDefaultOperator returns the bootstrap operator, creating it on
// first run.
func (i *Importer) ensureDefaultOperator(ctx context.Context) (*authmodels.Operator, error) {
	op, err := i.operators.FindByEmail(ctx, DefaultOperatorEmail)
	if err == nil {
		return op, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("find default operator: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultOperatorPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash default operator password: %w", err)
	}
	op = &authmodels.Operator{
		Name:         "Default Operator",
		Email:        DefaultOperatorEmail,
		PasswordHash: string(hash),
		Role:         authmodels.RoleAnalyst,
	}
	if err := i.operators.Create(ctx, op); err != nil {
		return nil, fmt.Errorf("create default operator: %w", err)
	}
	return op, nil
}

func (i *Importer) importRow(ctx context.Context, row Row, operatorID int64) error {
	profileID := row.Get("profile_unique_id")
	hitID := row.Get("dj_profile_id")
	if profileID == "" || hitID == "" {
		return fmt.Errorf("missing profile_unique_id or dj_profile_id")
	}

	profileInfo, ok := parseJSONForgiving(row.Get("profile_info"))
	if !ok {
		profileInfo = map[string]any{"raw": row.Get("profile_info")}
	}
	structuredRecord := row.Get("structured_record")

	hitRecord := map[string]any{
		"dj_profile_id": hitID,
		"source":        profileInfo["profile_sourceofname"],
	}

	src := &models.SourceCase{
		ProfileUniqueID:  profileID,
		DJProfileID:      hitID,
		ReferenceID:      optionalString(row.Get("reference_id")),
		ProfileInfo:      json.RawMessage(mustJSON(profileInfo)),
		StructuredRecord: structuredRecord,
		HitRecord:        json.RawMessage(mustJSON(hitRecord)),
		CandidateName:    optionalString(candidateNameFromRecord(structuredRecord)),
		FinalScore:       optionalFloat(row.Get("final_score")),
	}

	aspects := make(map[string]*string, len(aspectColumns))
	for aspect, column := range aspectColumns {
		if raw := row.Get(column); raw != "" {
			sanitized := sanitizeLLMOutput(raw)
			aspects[aspect] = &sanitized
		}
	}
	src.AspectNameJSON = aspects["name"]
	src.AspectAgeJSON = aspects["age"]
	src.AspectNationalityJSON = aspects["nationality"]
	src.AspectRiskJSON = aspects["risk"]

	if err := i.sources.Upsert(ctx, src); err != nil {
		return err
	}

	for aspect, output := range aspects {
		score := src.FinalScore
		if score == nil {
			score = optionalFloat(row.Get(aspect + "_llm_verdict_score"))
		}
		fb := &models.AspectFeedback{
			ProfileUniqueID: profileID,
			DJProfileID:     hitID,
			AspectType:      aspect,
			LLMOutput:       output,
			LLMVerdictScore: score,
			OperatorID:      operatorID,
		}
		if err := i.feedback.Upsert(ctx, fb); err != nil {
			return fmt.Errorf("seed %s feedback: %w", aspect, err)
		}
	}

	_, err := i.statuses.CreateDefault(ctx, profileID, hitID)
	if err != nil && !errors.Is(err, sentinel.ErrConflict) {
		return fmt.Errorf("initialize case status: %w", err)
	}
	return nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
