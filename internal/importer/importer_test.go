package importer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"caseview/internal/auth/store/operator"
	"caseview/internal/review/store/feedback"
	"caseview/internal/review/store/source"
	"caseview/internal/review/store/status"
	"caseview/pkg/platform/tx"
)

type ImporterSuite struct {
	suite.Suite
	operators *operator.InMemoryStore
	sources   *source.InMemoryStore
	feedback  *feedback.InMemoryStore
	statuses  *status.InMemoryStore
	imp       *Importer
	ctx       context.Context
}

func TestImporterSuite(t *testing.T) {
	suite.Run(t, new(ImporterSuite))
}

func (s *ImporterSuite) SetupTest() {
	s.operators = operator.New()
	s.sources = source.New()
	s.feedback = feedback.New()
	s.statuses = status.New()
	s.imp = New(s.operators, s.sources, s.feedback, s.statuses, tx.PassthroughRunner{},
		slog.New(slog.DiscardHandler), 2)
	s.ctx = context.Background()
}

func (s *ImporterSuite) writeCSV(content string) string {
	path := filepath.Join(s.T().TempDir(), "export.csv")
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o644))
	return path
}

const csvHeader = "profile_unique_id,dj_profile_id,profile_info,structured_record,name_llm_output,age_llm_output,nationality_llm_output,risk_llm_output,final_score,reference_id\n"

func (s *ImporterSuite) TestRunImportsRows() {
	path := s.writeCSV(csvHeader +
		`P1,DJ1,"{""profile_sourceofname"": ""watchlist""}","Name.fullName: Jane Doe","{""reasoning"": ""match"", ""claims"": []}",,,,0.95,REF-1` + "\n" +
		`P2,DJ2,"{}","Name.fullName: John Roe",,,,"{""reasoning"": ""pep"", ""claims"": []}",,` + "\n")

	summary, err := s.imp.Run(s.ctx, path)
	s.Require().NoError(err)
	s.Equal(2, summary.RowsOK)
	s.Equal(0, summary.RowsErr)

	s.Run("bootstraps the default operator", func() {
		op, err := s.operators.FindByEmail(s.ctx, DefaultOperatorEmail)
		s.Require().NoError(err)
		s.Equal("Default Operator", op.Name)
	})

	s.Run("upserts the source case", func() {
		c, err := s.sources.FindByKey(s.ctx, "P1", "DJ1")
		s.Require().NoError(err)
		s.Require().NotNil(c.CandidateName)
		s.Equal("Jane Doe", *c.CandidateName)
		s.Require().NotNil(c.FinalScore)
		s.InDelta(0.95, *c.FinalScore, 1e-9)
		s.Require().NotNil(c.ReferenceID)
		s.Equal("REF-1", *c.ReferenceID)
		s.Require().NotNil(c.AspectNameJSON)
		s.Nil(c.AspectRiskJSON)
	})

	s.Run("seeds feedback only for populated aspects", func() {
		op, err := s.operators.FindByEmail(s.ctx, DefaultOperatorEmail)
		s.Require().NoError(err)

		fb, err := s.feedback.ListByCaseAndOperator(s.ctx, "P1", "DJ1", op.ID)
		s.Require().NoError(err)
		s.Require().Len(fb, 1)
		s.Equal("name", fb[0].AspectType)
		s.Require().NotNil(fb[0].LLMVerdictScore)
		s.InDelta(0.95, *fb[0].LLMVerdictScore, 1e-9)

		fb2, err := s.feedback.ListByCaseAndOperator(s.ctx, "P2", "DJ2", op.ID)
		s.Require().NoError(err)
		s.Require().Len(fb2, 1)
		s.Equal("risk", fb2[0].AspectType)
		s.Nil(fb2[0].LLMVerdictScore)
	})

	s.Run("initializes case status", func() {
		st, err := s.statuses.Find(s.ctx, "P1", "DJ1")
		s.Require().NoError(err)
		s.Equal("unreviewed", st.CaseStatus)
	})
}

func (s *ImporterSuite) TestRunSkipsBadRows() {
	path := s.writeCSV(csvHeader +
		`P1,DJ1,"{}","Name.fullName: OK Row",,,,,,` + "\n" +
		`,DJ2,"{}","missing profile id",,,,,,` + "\n")

	summary, err := s.imp.Run(s.ctx, path)
	s.Require().NoError(err)
	s.Equal(1, summary.RowsOK)
	s.Equal(1, summary.RowsErr)

	_, err = s.sources.FindByKey(s.ctx, "P1", "DJ1")
	s.NoError(err, "good row still imported")
}

func (s *ImporterSuite) TestRunIsIdempotent() {
	path := s.writeCSV(csvHeader +
		`P1,DJ1,"{}","Name.fullName: Jane Doe","{""reasoning"": ""m"", ""claims"": []}",,,,0.9,` + "\n")

	_, err := s.imp.Run(s.ctx, path)
	s.Require().NoError(err)
	summary, err := s.imp.Run(s.ctx, path)
	s.Require().NoError(err)
	s.Equal(1, summary.RowsOK)

	op, err := s.operators.FindByEmail(s.ctx, DefaultOperatorEmail)
	s.Require().NoError(err)
	fb, err := s.feedback.ListByCaseAndOperator(s.ctx, "P1", "DJ1", op.ID)
	s.Require().NoError(err)
	s.Len(fb, 1, "re-import does not duplicate feedback")

	cases, err := s.sources.List(s.ctx, "", 0, 10)
	s.Require().NoError(err)
	s.Len(cases, 1, "re-import does not duplicate source cases")
}

func (s *ImporterSuite) TestReadRowsRejectsUnknownFormat() {
	path := filepath.Join(s.T().TempDir(), "export.txt")
	s.Require().NoError(os.WriteFile(path, []byte("x"), 0o644))
	_, err := ReadRows(path)
	s.Require().Error(err)
}
