// Package models holds the case-review domain entities. A "case" is a
// candidate match between a screened profile and a watchlist hit, keyed
// by (profile_unique_id, dj_profile_id).
package models

import (
	"encoding/json"
	"time"
)

// CaseKey is the natural key of a case.
type CaseKey struct {
	ProfileUniqueID string `json:"profile_unique_id"`
	DJProfileID     string `json:"dj_profile_id"`
}

// SourceCase is one candidate match as produced by the upstream
// name-matching/LLM pipeline. Immutable through the API; only the
// importer upserts it.
type SourceCase struct {
	ID                    int64           `json:"id"`
	ProfileUniqueID       string          `json:"profile_unique_id"`
	DJProfileID           string          `json:"dj_profile_id"`
	ReferenceID           *string         `json:"reference_id"`
	ProfileInfo           json.RawMessage `json:"profile_info"`
	StructuredRecord      string          `json:"structured_record"`
	HitRecord             json.RawMessage `json:"hit_record"`
	CandidateName         *string         `json:"candidate_name"`
	FinalScore            *float64        `json:"final_score"`
	AspectNameJSON        *string         `json:"aspect_name_json"`
	AspectAgeJSON         *string         `json:"aspect_age_json"`
	AspectNationalityJSON *string         `json:"aspect_nationality_json"`
	AspectRiskJSON        *string         `json:"aspect_risk_json"`
	CreatedAt             time.Time       `json:"created_at"`
}

// CaseStatusUnreviewed is the default review state of a fresh case.
const CaseStatusUnreviewed = "unreviewed"

// CaseStatus is the mutable review state of one case. case_status is a
// free-form string; aspects_status maps an aspect name to its individual
// review status.
type CaseStatus struct {
	ID              int64             `json:"id"`
	ProfileUniqueID string            `json:"profile_unique_id"`
	DJProfileID     string            `json:"dj_profile_id"`
	CaseStatus      string            `json:"case_status"`
	AspectsStatus   map[string]string `json:"aspects_status"`
	LastUpdatedAt   time.Time         `json:"last_updated_at"`
	LastUpdatedBy   *int64            `json:"last_updated_by"`
}

// StatusPatch is the body of PATCH .../status. Nil fields are left
// untouched; a non-nil AspectsStatus replaces the whole mapping.
type StatusPatch struct {
	CaseStatus    *string           `json:"case_status"`
	AspectsStatus map[string]string `json:"aspects_status"`
}

// AspectFeedback is one operator's verdict feedback on one aspect of one
// case. At most one row exists per (case, aspect, operator).
type AspectFeedback struct {
	ID               int64     `json:"id"`
	ProfileUniqueID  string    `json:"profile_unique_id"`
	DJProfileID      string    `json:"dj_profile_id"`
	AspectType       string    `json:"aspect_type"`
	LLMOutput        *string   `json:"llm_output"`
	LLMVerdictScore  *float64  `json:"llm_verdict_score"`
	OperatorFeedback *string   `json:"operator_feedback"`
	OperatorComment  *string   `json:"operator_comment"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	OperatorID       int64     `json:"operator_id"`
}

// FeedbackUpsert is the body of POST .../feedback. Nil fields keep the
// stored value on update.
type FeedbackUpsert struct {
	AspectType       string   `json:"aspect_type"`
	LLMOutput        *string  `json:"llm_output"`
	LLMVerdictScore  *float64 `json:"llm_verdict_score"`
	OperatorFeedback *string  `json:"operator_feedback"`
	OperatorComment  *string  `json:"operator_comment"`
}

// CaseLog is one append-only audit event on a case.
type CaseLog struct {
	ID              int64           `json:"id"`
	ProfileUniqueID string          `json:"profile_unique_id"`
	DJProfileID     string          `json:"dj_profile_id"`
	EventType       string          `json:"event_type"`
	Payload         json.RawMessage `json:"payload"`
	CreatedAt       time.Time       `json:"created_at"`
	OperatorID      *int64          `json:"operator_id"`
}

// EventTypeStatusChange tags the log entry written alongside every
// status update.
const EventTypeStatusChange = "status_change"

// EventTypeComment is the default event type for operator-submitted log
// entries.
const EventTypeComment = "comment"

// AppendLogRequest is the body of POST .../logs.
type AppendLogRequest struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// BatchStatusRequest is the body of POST /v2/cases/status:batch.
type BatchStatusRequest struct {
	Pairs []CaseKey `json:"pairs"`
}

// BatchStatusItem pairs one requested key with its (possibly freshly
// initialized) status.
type BatchStatusItem struct {
	ProfileUniqueID string     `json:"profile_unique_id"`
	DJProfileID     string     `json:"dj_profile_id"`
	Status          CaseStatus `json:"status"`
}

// BatchStatusResponse preserves the order of the requested pairs.
type BatchStatusResponse struct {
	Items []BatchStatusItem `json:"items"`
}
