package handler_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	jwttoken "caseview/internal/jwt_token"
	"caseview/internal/review/handler"
	"caseview/internal/review/models"
	"caseview/internal/review/service"
	"caseview/internal/review/store/caselog"
	"caseview/internal/review/store/feedback"
	"caseview/internal/review/store/source"
	"caseview/internal/review/store/status"
	"caseview/pkg/platform/tx"
	"caseview/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router  *chi.Mux
	sources *source.InMemoryStore
	token   string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.sources = source.New()
	svc := service.New(s.sources, status.New(), feedback.New(), caselog.New(), tx.PassthroughRunner{}, nil)

	jwtService := jwttoken.NewJWTService("test-signing-key", "caseview", "caseview")
	token, err := jwtService.GenerateAccessToken(1, "analyst@example.com", "analyst", time.Hour)
	s.Require().NoError(err)
	s.token = token

	logger := slog.New(slog.DiscardHandler)
	s.router = chi.NewRouter()
	handler.New(svc, logger, jwttoken.NewJWTServiceAdapter(jwtService)).Register(s.router)
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = testutil.NewRequest(s.T(), method, path)
	} else {
		req = testutil.NewRequestWithBody(s.T(), method, path, body)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) seedCase(profileID, hitID string) {
	err := s.sources.Upsert(s.T().Context(), &models.SourceCase{
		ProfileUniqueID:  profileID,
		DJProfileID:      hitID,
		ProfileInfo:      json.RawMessage(`{"name":"Jane Doe"}`),
		StructuredRecord: "Name.fullName: Jane Doe",
		HitRecord:        json.RawMessage(`{}`),
	})
	s.Require().NoError(err)
}

func (s *HandlerSuite) TestAuthRequired() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/v2/cases/P1/DJ1/status")
	rr := testutil.DoRequest(s.router, req)
	s.Equal(http.StatusUnauthorized, rr.Code)
}

func (s *HandlerSuite) TestListCases() {
	s.seedCase("P1", "DJ1")
	s.seedCase("P2", "DJ1")

	rr := s.do(http.MethodGet, "/v2/cases?profile_unique_id=P1", "")
	s.Require().Equal(http.StatusOK, rr.Code)

	cases := testutil.UnmarshalResponse[[]models.SourceCase](s.T(), rr)
	s.Require().Len(*cases, 1)
	s.Equal("P1", (*cases)[0].ProfileUniqueID)
}

func (s *HandlerSuite) TestListCasesRejectsBadPagination() {
	rr := s.do(http.MethodGet, "/v2/cases?skip=abc", "")
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestGetCase() {
	s.Run("missing case answers 404", func() {
		rr := s.do(http.MethodGet, "/v2/cases/P1/DJ1", "")
		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("existing case round-trips", func() {
		s.seedCase("P1", "DJ1")
		rr := s.do(http.MethodGet, "/v2/cases/P1/DJ1", "")
		s.Require().Equal(http.StatusOK, rr.Code)

		c := testutil.UnmarshalResponse[models.SourceCase](s.T(), rr)
		s.Equal("DJ1", c.DJProfileID)
	})
}

func (s *HandlerSuite) TestGetStatusCreatesDefault() {
	rr := s.do(http.MethodGet, "/v2/cases/P1/DJ1/status", "")
	s.Require().Equal(http.StatusOK, rr.Code)

	st := testutil.UnmarshalResponse[models.CaseStatus](s.T(), rr)
	s.Equal(models.CaseStatusUnreviewed, st.CaseStatus)
	s.NotNil(st.AspectsStatus)
}

func (s *HandlerSuite) TestPatchStatus() {
	s.Run("invalid body answers 400", func() {
		rr := s.do(http.MethodPatch, "/v2/cases/P1/DJ1/status", "{not json")
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("empty patch answers 400", func() {
		rr := s.do(http.MethodPatch, "/v2/cases/P1/DJ1/status", "{}")
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("patch updates status and writes the audit log", func() {
		body := `{"case_status":"reviewed","aspects_status":{"name":"confirmed"}}`
		rr := s.do(http.MethodPatch, "/v2/cases/P1/DJ1/status", body)
		s.Require().Equal(http.StatusOK, rr.Code)

		st := testutil.UnmarshalResponse[models.CaseStatus](s.T(), rr)
		s.Equal("reviewed", st.CaseStatus)
		s.Equal(map[string]string{"name": "confirmed"}, st.AspectsStatus)
		s.Require().NotNil(st.LastUpdatedBy)
		s.Equal(int64(1), *st.LastUpdatedBy)

		logsRR := s.do(http.MethodGet, "/v2/cases/P1/DJ1/logs", "")
		s.Require().Equal(http.StatusOK, logsRR.Code)

		logs := testutil.UnmarshalResponse[[]models.CaseLog](s.T(), logsRR)
		s.Require().Len(*logs, 1)
		s.Equal(models.EventTypeStatusChange, (*logs)[0].EventType)
		s.JSONEq(body, string((*logs)[0].Payload))
	})
}

func (s *HandlerSuite) TestFeedback() {
	s.Run("missing aspect_type answers 400", func() {
		rr := s.do(http.MethodPost, "/v2/cases/P1/DJ1/feedback", `{"operator_comment":"x"}`)
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("upsert then list", func() {
		rr := s.do(http.MethodPost, "/v2/cases/P1/DJ1/feedback",
			`{"aspect_type":"name","operator_feedback":"agree"}`)
		s.Require().Equal(http.StatusOK, rr.Code)

		listRR := s.do(http.MethodGet, "/v2/cases/P1/DJ1/feedback", "")
		s.Require().Equal(http.StatusOK, listRR.Code)

		feedback := testutil.UnmarshalResponse[[]models.AspectFeedback](s.T(), listRR)
		s.Require().Len(*feedback, 1)
		s.Equal("name", (*feedback)[0].AspectType)
		s.Equal(int64(1), (*feedback)[0].OperatorID)
	})
}

func (s *HandlerSuite) TestAppendLog() {
	rr := s.do(http.MethodPost, "/v2/cases/P1/DJ1/logs", `{"payload":{"note":"checked sanctions list"}}`)
	s.Require().Equal(http.StatusOK, rr.Code)

	log := testutil.UnmarshalResponse[models.CaseLog](s.T(), rr)
	s.Equal(models.EventTypeComment, log.EventType)
	s.JSONEq(`{"note":"checked sanctions list"}`, string(log.Payload))
}

func (s *HandlerSuite) TestBatchStatuses() {
	rr := s.do(http.MethodPost, "/v2/cases/status:batch",
		`{"pairs":[{"profile_unique_id":"P1","dj_profile_id":"DJ1"},{"profile_unique_id":"P2","dj_profile_id":"DJ2"}]}`)
	s.Require().Equal(http.StatusOK, rr.Code)

	batch := testutil.UnmarshalResponse[models.BatchStatusResponse](s.T(), rr)
	s.Require().Len(batch.Items, 2)
	s.Equal("P1", batch.Items[0].ProfileUniqueID)
	s.Equal("P2", batch.Items[1].ProfileUniqueID)
	s.Equal(models.CaseStatusUnreviewed, batch.Items[0].Status.CaseStatus)
}
