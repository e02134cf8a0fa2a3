package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"caseview/internal/review/models"
	"caseview/internal/review/store/caselog"
	"caseview/internal/review/store/feedback"
	"caseview/internal/review/store/source"
	"caseview/internal/review/store/status"
	dErrors "caseview/pkg/domain-errors"
	"caseview/pkg/platform/tx"
	"caseview/pkg/requestcontext"
)

const testOperatorID int64 = 42

type ServiceSuite struct {
	suite.Suite
	sources  *source.InMemoryStore
	statuses *status.InMemoryStore
	feedback *feedback.InMemoryStore
	logs     *caselog.InMemoryStore
	svc      *Service
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.sources = source.New()
	s.statuses = status.New()
	s.feedback = feedback.New()
	s.logs = caselog.New()
	s.svc = New(s.sources, s.statuses, s.feedback, s.logs, tx.PassthroughRunner{}, nil)
	s.ctx = requestcontext.WithOperatorID(context.Background(), testOperatorID)
}

func (s *ServiceSuite) seedCase(profileID, hitID string) {
	err := s.sources.Upsert(s.ctx, &models.SourceCase{
		ProfileUniqueID:  profileID,
		DJProfileID:      hitID,
		ProfileInfo:      json.RawMessage(`{}`),
		StructuredRecord: "Name.fullName: Test Person",
		HitRecord:        json.RawMessage(`{}`),
	})
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestGetCase() {
	s.Run("not found", func() {
		_, err := s.svc.GetCase(s.ctx, "P-missing", "DJ-missing")
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeNotFound, "case not found"))
	})

	s.Run("found", func() {
		s.seedCase("P1", "DJ1")
		c, err := s.svc.GetCase(s.ctx, "P1", "DJ1")
		s.Require().NoError(err)
		s.Equal("P1", c.ProfileUniqueID)
		s.Equal("DJ1", c.DJProfileID)
	})
}

func (s *ServiceSuite) TestListCases() {
	s.seedCase("P1", "DJ1")
	s.seedCase("P1", "DJ2")
	s.seedCase("P2", "DJ1")

	s.Run("all cases", func() {
		cases, err := s.svc.ListCases(s.ctx, "", 0, 0)
		s.Require().NoError(err)
		s.Len(cases, 3)
	})

	s.Run("filtered by profile", func() {
		cases, err := s.svc.ListCases(s.ctx, "P1", 0, 0)
		s.Require().NoError(err)
		s.Len(cases, 2)
		for _, c := range cases {
			s.Equal("P1", c.ProfileUniqueID)
		}
	})

	s.Run("pagination", func() {
		cases, err := s.svc.ListCases(s.ctx, "", 1, 1)
		s.Require().NoError(err)
		s.Len(cases, 1)
	})

	s.Run("page past the end is empty, not nil", func() {
		cases, err := s.svc.ListCases(s.ctx, "", 100, 10)
		s.Require().NoError(err)
		s.NotNil(cases)
		s.Empty(cases)
	})
}

func (s *ServiceSuite) TestListCasesDefaultPageSize() {
	for i := 0; i < 60; i++ {
		s.seedCase(fmt.Sprintf("P%03d", i), "DJ1")
	}

	cases, err := s.svc.ListCases(s.ctx, "", 0, 0)
	s.Require().NoError(err)
	s.Len(cases, 50, "omitted limit caps the page at 50 rows")
}

func (s *ServiceSuite) TestGetOrCreateStatus() {
	s.Run("first read creates the default", func() {
		st, err := s.svc.GetOrCreateStatus(s.ctx, "P1", "DJ1")
		s.Require().NoError(err)
		s.Equal(models.CaseStatusUnreviewed, st.CaseStatus)
		s.Empty(st.AspectsStatus)
		s.NotNil(st.AspectsStatus)
		s.Nil(st.LastUpdatedBy)
	})

	s.Run("second read returns the same row", func() {
		first, err := s.svc.GetOrCreateStatus(s.ctx, "P2", "DJ2")
		s.Require().NoError(err)
		second, err := s.svc.GetOrCreateStatus(s.ctx, "P2", "DJ2")
		s.Require().NoError(err)
		s.Equal(first.ID, second.ID)
	})
}

func (s *ServiceSuite) TestUpdateStatus() {
	s.Run("rejects empty patch", func() {
		_, err := s.svc.UpdateStatus(s.ctx, "P1", "DJ1", models.StatusPatch{}, json.RawMessage(`{}`))
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeInvalidInput, "no fields to update"))
	})

	s.Run("creates the row when missing", func() {
		newStatus := "reviewed"
		body := json.RawMessage(`{"case_status":"reviewed"}`)
		st, err := s.svc.UpdateStatus(s.ctx, "P1", "DJ1", models.StatusPatch{CaseStatus: &newStatus}, body)
		s.Require().NoError(err)
		s.Equal("reviewed", st.CaseStatus)
		s.Require().NotNil(st.LastUpdatedBy)
		s.Equal(testOperatorID, *st.LastUpdatedBy)
	})

	s.Run("nil fields leave stored values untouched", func() {
		escalated := "escalated"
		_, err := s.svc.UpdateStatus(s.ctx, "P2", "DJ2", models.StatusPatch{
			CaseStatus:    &escalated,
			AspectsStatus: map[string]string{"name": "confirmed"},
		}, json.RawMessage(`{}`))
		s.Require().NoError(err)

		st, err := s.svc.UpdateStatus(s.ctx, "P2", "DJ2", models.StatusPatch{
			AspectsStatus: map[string]string{"age": "cleared"},
		}, json.RawMessage(`{}`))
		s.Require().NoError(err)
		s.Equal("escalated", st.CaseStatus, "case_status untouched by aspect-only patch")
		s.Equal(map[string]string{"age": "cleared"}, st.AspectsStatus, "aspect map replaced wholesale")
	})

	s.Run("appends a status_change log carrying the patch body", func() {
		reviewed := "reviewed"
		body := json.RawMessage(`{"case_status":"reviewed","note":"checked"}`)
		_, err := s.svc.UpdateStatus(s.ctx, "P3", "DJ3", models.StatusPatch{CaseStatus: &reviewed}, body)
		s.Require().NoError(err)

		logs, err := s.svc.ListLogs(s.ctx, "P3", "DJ3")
		s.Require().NoError(err)
		s.Require().Len(logs, 1)
		s.Equal(models.EventTypeStatusChange, logs[0].EventType)
		s.JSONEq(string(body), string(logs[0].Payload))
		s.Require().NotNil(logs[0].OperatorID)
		s.Equal(testOperatorID, *logs[0].OperatorID)
	})
}

func (s *ServiceSuite) TestUpsertFeedback() {
	s.Run("rejects missing aspect_type", func() {
		_, err := s.svc.UpsertFeedback(s.ctx, "P1", "DJ1", models.FeedbackUpsert{})
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeInvalidInput, "aspect_type is required"))
	})

	s.Run("creates then partially overwrites", func() {
		output := `{"reasoning":"match"}`
		score := 0.91
		fb, err := s.svc.UpsertFeedback(s.ctx, "P1", "DJ1", models.FeedbackUpsert{
			AspectType:      "name",
			LLMOutput:       &output,
			LLMVerdictScore: &score,
		})
		s.Require().NoError(err)
		s.Equal(testOperatorID, fb.OperatorID)

		verdict := "agree"
		updated, err := s.svc.UpsertFeedback(s.ctx, "P1", "DJ1", models.FeedbackUpsert{
			AspectType:       "name",
			OperatorFeedback: &verdict,
		})
		s.Require().NoError(err)
		s.Equal(fb.ID, updated.ID, "same row, not a duplicate")
		s.Require().NotNil(updated.LLMOutput)
		s.Equal(output, *updated.LLMOutput, "omitted field keeps stored value")
		s.Require().NotNil(updated.OperatorFeedback)
		s.Equal("agree", *updated.OperatorFeedback)
	})
}

func (s *ServiceSuite) TestListFeedback() {
	comment := "mine"
	_, err := s.svc.UpsertFeedback(s.ctx, "P1", "DJ1", models.FeedbackUpsert{
		AspectType:      "name",
		OperatorComment: &comment,
	})
	s.Require().NoError(err)

	otherCtx := requestcontext.WithOperatorID(context.Background(), testOperatorID+1)
	otherComment := "theirs"
	_, err = s.svc.UpsertFeedback(otherCtx, "P1", "DJ1", models.FeedbackUpsert{
		AspectType:      "name",
		OperatorComment: &otherComment,
	})
	s.Require().NoError(err)

	s.Run("returns only the acting operator's rows", func() {
		feedback, err := s.svc.ListFeedback(s.ctx, "P1", "DJ1")
		s.Require().NoError(err)
		s.Require().Len(feedback, 1)
		s.Equal(testOperatorID, feedback[0].OperatorID)
		s.Equal("mine", *feedback[0].OperatorComment)
	})

	s.Run("empty result is a slice, not nil", func() {
		feedback, err := s.svc.ListFeedback(s.ctx, "P-none", "DJ-none")
		s.Require().NoError(err)
		s.NotNil(feedback)
		s.Empty(feedback)
	})
}

func (s *ServiceSuite) TestAppendLog() {
	s.Run("defaults the event type and keeps the payload null", func() {
		log, err := s.svc.AppendLog(s.ctx, "P1", "DJ1", models.AppendLogRequest{})
		s.Require().NoError(err)
		s.Equal(models.EventTypeComment, log.EventType)
		s.Nil(log.Payload)
		s.Require().NotNil(log.OperatorID)
		s.Equal(testOperatorID, *log.OperatorID)
	})

	s.Run("keeps explicit event type and payload", func() {
		log, err := s.svc.AppendLog(s.ctx, "P1", "DJ1", models.AppendLogRequest{
			EventType: "escalation",
			Payload:   json.RawMessage(`{"to":"supervisor"}`),
		})
		s.Require().NoError(err)
		s.Equal("escalation", log.EventType)
		s.JSONEq(`{"to":"supervisor"}`, string(log.Payload))
	})
}

func (s *ServiceSuite) TestListLogs() {
	for _, note := range []string{"first", "second", "third"} {
		_, err := s.svc.AppendLog(s.ctx, "P1", "DJ1", models.AppendLogRequest{
			Payload: json.RawMessage(`{"note":"` + note + `"}`),
		})
		s.Require().NoError(err)
	}

	logs, err := s.svc.ListLogs(s.ctx, "P1", "DJ1")
	s.Require().NoError(err)
	s.Require().Len(logs, 3)
	s.JSONEq(`{"note":"third"}`, string(logs[0].Payload), "newest first")
	s.JSONEq(`{"note":"first"}`, string(logs[2].Payload))
}

func (s *ServiceSuite) TestBatchStatuses() {
	s.Run("empty request yields empty response", func() {
		resp, err := s.svc.BatchStatuses(s.ctx, models.BatchStatusRequest{})
		s.Require().NoError(err)
		s.NotNil(resp.Items)
		s.Empty(resp.Items)
	})

	s.Run("mixes existing and freshly initialized rows in request order", func() {
		reviewed := "reviewed"
		_, err := s.svc.UpdateStatus(s.ctx, "P1", "DJ1", models.StatusPatch{CaseStatus: &reviewed}, json.RawMessage(`{}`))
		s.Require().NoError(err)

		resp, err := s.svc.BatchStatuses(s.ctx, models.BatchStatusRequest{Pairs: []models.CaseKey{
			{ProfileUniqueID: "P9", DJProfileID: "DJ9"},
			{ProfileUniqueID: "P1", DJProfileID: "DJ1"},
			{ProfileUniqueID: "P1", DJProfileID: "DJ2"},
		}})
		s.Require().NoError(err)
		s.Require().Len(resp.Items, 3)

		s.Equal("P9", resp.Items[0].ProfileUniqueID)
		s.Equal(models.CaseStatusUnreviewed, resp.Items[0].Status.CaseStatus)

		s.Equal("P1", resp.Items[1].ProfileUniqueID)
		s.Equal("DJ1", resp.Items[1].DJProfileID)
		s.Equal("reviewed", resp.Items[1].Status.CaseStatus)

		s.Equal("DJ2", resp.Items[2].DJProfileID)
		s.Equal(models.CaseStatusUnreviewed, resp.Items[2].Status.CaseStatus)
	})

	s.Run("repeated pairs resolve to the same row", func() {
		resp, err := s.svc.BatchStatuses(s.ctx, models.BatchStatusRequest{Pairs: []models.CaseKey{
			{ProfileUniqueID: "P7", DJProfileID: "DJ7"},
			{ProfileUniqueID: "P7", DJProfileID: "DJ7"},
		}})
		s.Require().NoError(err)
		s.Require().Len(resp.Items, 2)
		s.Equal(resp.Items[0].Status.ID, resp.Items[1].Status.ID)
	})
}
