package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
)

// LeagueStore is a MongoDB implementation of app.LeagueStore.
// Leagues and participants live in separate collections; answers and
// results are embedded documents keyed by question id so edits can be
// applied with per-field $set/$unset.
type LeagueStore struct {
	leagues      *mongo.Collection
	participants *mongo.Collection
}

type leagueDoc struct {
	ID                string         `bson:"_id"`
	Name              string         `bson:"name"`
	QuestionSetID     string         `bson:"question_set_id"`
	Results           map[string]any `bson:"results"`
	SubmissionsClosed bool           `bson:"submissions_closed"`
	CreatedAt         time.Time      `bson:"created_at"`
}

type participantDoc struct {
	ID           string         `bson:"_id"`
	LeagueID     string         `bson:"league_id"`
	TeamName     string         `bson:"team_name"`
	TeamKey      string         `bson:"team_key"`
	Answers      map[string]any `bson:"answers"`
	Score        int            `bson:"score"`
	TiebreakDiff *int           `bson:"tiebreak_diff"`
	Submitted    bool           `bson:"submitted"`
	JoinedAt     time.Time      `bson:"joined_at"`
	UpdatedAt    time.Time      `bson:"updated_at"`
}

// Connect opens a client and returns the named database.
func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, client.Database(dbName), nil
}

func NewLeagueStore(db *mongo.Database) *LeagueStore {
	return &LeagueStore{
		leagues:      db.Collection("leagues"),
		participants: db.Collection("participants"),
	}
}

// EnsureIndexes creates the unique team-name index and the join-order index.
func (s *LeagueStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.participants.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "league_id", Value: 1}, {Key: "team_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "league_id", Value: 1}, {Key: "joined_at", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create participant indexes: %w", err)
	}
	return nil
}

func (s *LeagueStore) CreateLeague(ctx context.Context, league domain.League) error {
	_, err := s.leagues.InsertOne(ctx, leagueDoc{
		ID:                league.ID,
		Name:              league.Name,
		QuestionSetID:     league.QuestionSetID,
		Results:           toValues(league.Results),
		SubmissionsClosed: league.SubmissionsClosed,
		CreatedAt:         league.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert league: %w", err)
	}
	return nil
}

func (s *LeagueStore) GetLeague(ctx context.Context, leagueID string) (domain.League, error) {
	var doc leagueDoc
	err := s.leagues.FindOne(ctx, bson.M{"_id": leagueID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.League{}, domain.ErrLeagueNotFound
		}
		return domain.League{}, fmt.Errorf("find league: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *LeagueStore) UpdateResults(ctx context.Context, leagueID string, edits domain.Answers) (domain.League, error) {
	update := fieldUpdate("results", edits, nil)
	if len(update) == 0 {
		return s.GetLeague(ctx, leagueID)
	}
	var doc leagueDoc
	err := s.leagues.FindOneAndUpdate(ctx, bson.M{"_id": leagueID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.League{}, domain.ErrLeagueNotFound
		}
		return domain.League{}, fmt.Errorf("update results: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *LeagueStore) SetSubmissionsClosed(ctx context.Context, leagueID string, closed bool) error {
	res, err := s.leagues.UpdateOne(ctx, bson.M{"_id": leagueID}, bson.M{"$set": bson.M{"submissions_closed": closed}})
	if err != nil {
		return fmt.Errorf("update league: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrLeagueNotFound
	}
	return nil
}

func (s *LeagueStore) AddParticipant(ctx context.Context, p domain.Participant, teamKey string) error {
	if _, err := s.GetLeague(ctx, p.LeagueID); err != nil {
		return err
	}
	_, err := s.participants.InsertOne(ctx, participantDoc{
		ID:           p.ID,
		LeagueID:     p.LeagueID,
		TeamName:     p.TeamName,
		TeamKey:      teamKey,
		Answers:      toValues(p.Answers),
		Score:        p.Score,
		TiebreakDiff: p.TiebreakDiff,
		Submitted:    p.Submitted,
		JoinedAt:     p.JoinedAt,
		UpdatedAt:    p.UpdatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrTeamNameTaken
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *LeagueStore) GetParticipant(ctx context.Context, leagueID, participantID string) (domain.Participant, error) {
	var doc participantDoc
	err := s.participants.FindOne(ctx, bson.M{"_id": participantID, "league_id": leagueID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Participant{}, s.missing(ctx, leagueID)
		}
		return domain.Participant{}, fmt.Errorf("find participant: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *LeagueStore) ListParticipants(ctx context.Context, leagueID string) ([]domain.Participant, error) {
	if _, err := s.GetLeague(ctx, leagueID); err != nil {
		return nil, err
	}
	cursor, err := s.participants.Find(ctx, bson.M{"league_id": leagueID},
		options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find participants: %w", err)
	}
	var docs []participantDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	out := make([]domain.Participant, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

func (s *LeagueStore) UpdateAnswers(ctx context.Context, leagueID, participantID string, edits domain.Answers, at time.Time) (domain.Participant, error) {
	return s.updateParticipant(ctx, leagueID, participantID, fieldUpdate("answers", edits, bson.M{"updated_at": at}))
}

func (s *LeagueStore) MarkSubmitted(ctx context.Context, leagueID, participantID string, at time.Time) (domain.Participant, error) {
	return s.updateParticipant(ctx, leagueID, participantID, bson.M{"$set": bson.M{"submitted": true, "updated_at": at}})
}

func (s *LeagueStore) SaveScore(ctx context.Context, leagueID, participantID string, score int, tiebreakDiff *int) error {
	_, err := s.updateParticipant(ctx, leagueID, participantID, bson.M{"$set": bson.M{"score": score, "tiebreak_diff": tiebreakDiff}})
	return err
}

func (s *LeagueStore) updateParticipant(ctx context.Context, leagueID, participantID string, update bson.M) (domain.Participant, error) {
	var doc participantDoc
	err := s.participants.FindOneAndUpdate(ctx, bson.M{"_id": participantID, "league_id": leagueID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Participant{}, s.missing(ctx, leagueID)
		}
		return domain.Participant{}, fmt.Errorf("update participant: %w", err)
	}
	return doc.toDomain(), nil
}

// missing picks the not-found error for a participant lookup that matched nothing.
func (s *LeagueStore) missing(ctx context.Context, leagueID string) error {
	if _, err := s.GetLeague(ctx, leagueID); err != nil {
		return err
	}
	return domain.ErrParticipantNotFound
}

// fieldUpdate builds a $set/$unset document touching only the edited
// question fields under prefix.
func fieldUpdate(prefix string, edits domain.Answers, extra bson.M) bson.M {
	set := bson.M{}
	unset := bson.M{}
	for k, v := range extra {
		set[k] = v
	}
	for qid, a := range edits {
		if !a.IsSet() {
			unset[prefix+"."+qid] = ""
			continue
		}
		set[prefix+"."+qid] = a.Value()
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func toValues(answers domain.Answers) map[string]any {
	out := make(map[string]any, len(answers))
	for k, a := range answers {
		if a.IsSet() {
			out[k] = a.Value()
		}
	}
	return out
}

func fromValues(values map[string]any) domain.Answers {
	out := make(domain.Answers, len(values))
	for k, v := range values {
		if a := domain.AnswerFromValue(v); a.IsSet() {
			out[k] = a
		}
	}
	return out
}

func (d leagueDoc) toDomain() domain.League {
	return domain.League{
		ID:                d.ID,
		Name:              d.Name,
		QuestionSetID:     d.QuestionSetID,
		Results:           fromValues(d.Results),
		SubmissionsClosed: d.SubmissionsClosed,
		CreatedAt:         d.CreatedAt,
	}
}

func (d participantDoc) toDomain() domain.Participant {
	return domain.Participant{
		ID:           d.ID,
		LeagueID:     d.LeagueID,
		TeamName:     d.TeamName,
		Answers:      fromValues(d.Answers),
		Score:        d.Score,
		TiebreakDiff: d.TiebreakDiff,
		Submitted:    d.Submitted,
		JoinedAt:     d.JoinedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
