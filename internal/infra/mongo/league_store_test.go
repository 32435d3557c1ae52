package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
)

var joined = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func leagueBSON(id string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: "Office pool"},
		{Key: "question_set_id", Value: "set-1"},
		{Key: "results", Value: bson.D{
			{Key: "winner", Value: "Seahawks"},
			{Key: "total", Value: int32(45)},
		}},
		{Key: "submissions_closed", Value: false},
		{Key: "created_at", Value: joined},
	}
}

func participantBSON(id, team string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "league_id", Value: "l1"},
		{Key: "team_name", Value: team},
		{Key: "team_key", Value: team},
		{Key: "answers", Value: bson.D{
			{Key: "winner", Value: "Seahawks"},
			{Key: "total", Value: int64(41)},
		}},
		{Key: "score", Value: int32(5)},
		{Key: "tiebreak_diff", Value: int32(4)},
		{Key: "submitted", Value: false},
		{Key: "joined_at", Value: joined},
		{Key: "updated_at", Value: joined},
	}
}

func TestGetLeague(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes results into answers", func(mt *mtest.T) {
		store := NewLeagueStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.leagues", mtest.FirstBatch, leagueBSON("l1")))

		league, err := store.GetLeague(context.Background(), "l1")
		require.NoError(t, err)
		assert.Equal(t, "Office pool", league.Name)
		assert.Equal(t, domain.Answers{
			"winner": domain.TextAnswer("Seahawks"),
			"total":  domain.NumberAnswer(45),
		}, league.Results)
	})

	mt.Run("maps no documents to ErrLeagueNotFound", func(mt *mtest.T) {
		store := NewLeagueStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.leagues", mtest.FirstBatch))

		_, err := store.GetLeague(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrLeagueNotFound)
	})
}

func TestUpdateResults(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns the merged league", func(mt *mtest.T) {
		store := NewLeagueStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: leagueBSON("l1")}))

		league, err := store.UpdateResults(context.Background(), "l1", domain.Answers{"total": domain.NumberAnswer(45)})
		require.NoError(t, err)
		assert.Equal(t, domain.NumberAnswer(45), league.Results["total"])
	})

	mt.Run("unknown league", func(mt *mtest.T) {
		store := NewLeagueStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := store.UpdateResults(context.Background(), "missing", domain.Answers{"total": domain.NumberAnswer(45)})
		assert.ErrorIs(t, err, domain.ErrLeagueNotFound)
	})
}

func TestSetSubmissionsClosedUnknownLeague(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("no match", func(mt *mtest.T) {
		store := NewLeagueStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := store.SetSubmissionsClosed(context.Background(), "missing", true)
		assert.ErrorIs(t, err, domain.ErrLeagueNotFound)
	})
}

func TestAddParticipant(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	p := domain.Participant{ID: "p1", LeagueID: "l1", TeamName: "Hawks Nest", JoinedAt: joined, UpdatedAt: joined}

	mt.Run("inserts", func(mt *mtest.T) {
		store := NewLeagueStore(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "test.leagues", mtest.FirstBatch, leagueBSON("l1")),
			mtest.CreateSuccessResponse(),
		)

		assert.NoError(t, store.AddParticipant(context.Background(), p, "hawks-nest"))
	})

	mt.Run("duplicate team key", func(mt *mtest.T) {
		store := NewLeagueStore(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "test.leagues", mtest.FirstBatch, leagueBSON("l1")),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}),
		)

		err := store.AddParticipant(context.Background(), p, "hawks-nest")
		assert.ErrorIs(t, err, domain.ErrTeamNameTaken)
	})
}

func TestListParticipants(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns participants in cursor order", func(mt *mtest.T) {
		store := NewLeagueStore(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "test.leagues", mtest.FirstBatch, leagueBSON("l1")),
			mtest.CreateCursorResponse(0, "test.participants", mtest.FirstBatch,
				participantBSON("p1", "Hawks Nest"),
				participantBSON("p2", "Pats Fans"),
			),
		)

		list, err := store.ListParticipants(context.Background(), "l1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "p1", list[0].ID)
		assert.Equal(t, "Pats Fans", list[1].TeamName)
		assert.Equal(t, domain.NumberAnswer(41), list[0].Answers["total"])
		require.NotNil(t, list[0].TiebreakDiff)
		assert.Equal(t, 4, *list[0].TiebreakDiff)
	})
}

func TestUpdateAnswersUnknownParticipant(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("league exists", func(mt *mtest.T) {
		store := NewLeagueStore(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "test.leagues", mtest.FirstBatch, leagueBSON("l1")),
		)

		_, err := store.UpdateAnswers(context.Background(), "l1", "nobody", domain.Answers{"winner": domain.TextAnswer("Patriots")}, joined)
		assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
	})
}

func TestFieldUpdate(t *testing.T) {
	at := joined.Add(time.Minute)
	update := fieldUpdate("answers", domain.Answers{
		"winner": domain.TextAnswer("Seahawks"),
		"total":  {},
	}, bson.M{"updated_at": at})

	assert.Equal(t, bson.M{
		"$set":   bson.M{"answers.winner": "Seahawks", "updated_at": at},
		"$unset": bson.M{"answers.total": ""},
	}, update)

	assert.Empty(t, fieldUpdate("results", domain.Answers{}, nil))
}
