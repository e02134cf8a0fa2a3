//go:build integration

package feedback_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"caseview/internal/review/models"
	"caseview/internal/review/store/feedback"
	"caseview/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *feedback.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = feedback.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "aspect_feedback"))
}

func strPtr(v string) *string     { return &v }
func floatPtr(v float64) *float64 { return &v }

func (s *PostgresStoreSuite) TestUpsertMergesPartialUpdates() {
	ctx := context.Background()

	first := &models.AspectFeedback{
		ProfileUniqueID: "P1",
		DJProfileID:     "DJ1",
		AspectType:      "name",
		OperatorID:      1,
		LLMOutput:       strPtr(`{"reasoning":"match"}`),
		LLMVerdictScore: floatPtr(0.9),
	}
	s.Require().NoError(s.store.Upsert(ctx, first))
	s.NotZero(first.ID)

	second := &models.AspectFeedback{
		ProfileUniqueID:  "P1",
		DJProfileID:      "DJ1",
		AspectType:       "name",
		OperatorID:       1,
		OperatorFeedback: strPtr("agree"),
	}
	s.Require().NoError(s.store.Upsert(ctx, second))

	s.Equal(first.ID, second.ID, "merged into the existing row")
	s.Require().NotNil(second.LLMOutput)
	s.Equal(*first.LLMOutput, *second.LLMOutput, "omitted fields keep stored values")
	s.Require().NotNil(second.OperatorFeedback)
	s.Equal("agree", *second.OperatorFeedback)
	s.True(second.UpdatedAt.After(second.CreatedAt) || second.UpdatedAt.Equal(second.CreatedAt))
}

func (s *PostgresStoreSuite) TestListScopedToOperator() {
	ctx := context.Background()

	for _, fb := range []*models.AspectFeedback{
		{ProfileUniqueID: "P1", DJProfileID: "DJ1", AspectType: "name", OperatorID: 1},
		{ProfileUniqueID: "P1", DJProfileID: "DJ1", AspectType: "age", OperatorID: 1},
		{ProfileUniqueID: "P1", DJProfileID: "DJ1", AspectType: "name", OperatorID: 2},
		{ProfileUniqueID: "P2", DJProfileID: "DJ1", AspectType: "name", OperatorID: 1},
	} {
		s.Require().NoError(s.store.Upsert(ctx, fb))
	}

	mine, err := s.store.ListByCaseAndOperator(ctx, "P1", "DJ1", 1)
	s.Require().NoError(err)
	s.Require().Len(mine, 2)
	for _, fb := range mine {
		s.Equal(int64(1), fb.OperatorID)
	}
	s.Less(mine[0].ID, mine[1].ID, "ordered by id")
}
