package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
	"github.com/redis/go-redis/v9"
)

// LeagueStore is a Redis implementation of app.LeagueStore.
// Layout:
//
//	league:{id}                         hash  name, question_set_id, submissions_closed, created_at
//	league:{id}:results                 hash  questionID -> answer JSON
//	league:{id}:teams                   hash  normalized team name -> participantID
//	league:{id}:participants            list  participantIDs in join order
//	league:{id}:participant:{pid}       hash  team_name, score, tiebreak_diff, submitted, joined_at, updated_at
//	league:{id}:participant:{pid}:answers hash questionID -> answer JSON
//
// Answers and results are stored one field per question so concurrent edits
// to different questions never overwrite each other.
type LeagueStore struct {
	client *redis.Client
}

func NewLeagueStore(client *redis.Client) *LeagueStore {
	return &LeagueStore{client: client}
}

func (s *LeagueStore) CreateLeague(ctx context.Context, league domain.League) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, leagueKey(league.ID),
			"name", league.Name,
			"question_set_id", league.QuestionSetID,
			"submissions_closed", strconv.FormatBool(league.SubmissionsClosed),
			"created_at", league.CreatedAt.Format(time.RFC3339Nano),
		)
		return writeAnswers(ctx, pipe, resultsKey(league.ID), league.Results)
	})
	return err
}

func (s *LeagueStore) GetLeague(ctx context.Context, leagueID string) (domain.League, error) {
	fields, err := s.client.HGetAll(ctx, leagueKey(leagueID)).Result()
	if err != nil {
		return domain.League{}, err
	}
	if len(fields) == 0 {
		return domain.League{}, domain.ErrLeagueNotFound
	}
	results, err := s.readAnswers(ctx, resultsKey(leagueID))
	if err != nil {
		return domain.League{}, err
	}
	closed, _ := strconv.ParseBool(fields["submissions_closed"])
	created, _ := time.Parse(time.RFC3339Nano, fields["created_at"])
	return domain.League{
		ID:                leagueID,
		Name:              fields["name"],
		QuestionSetID:     fields["question_set_id"],
		Results:           results,
		SubmissionsClosed: closed,
		CreatedAt:         created,
	}, nil
}

func (s *LeagueStore) UpdateResults(ctx context.Context, leagueID string, edits domain.Answers) (domain.League, error) {
	if err := s.requireLeague(ctx, leagueID); err != nil {
		return domain.League{}, err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return writeAnswers(ctx, pipe, resultsKey(leagueID), edits)
	})
	if err != nil {
		return domain.League{}, err
	}
	return s.GetLeague(ctx, leagueID)
}

func (s *LeagueStore) SetSubmissionsClosed(ctx context.Context, leagueID string, closed bool) error {
	if err := s.requireLeague(ctx, leagueID); err != nil {
		return err
	}
	return s.client.HSet(ctx, leagueKey(leagueID), "submissions_closed", strconv.FormatBool(closed)).Err()
}

func (s *LeagueStore) AddParticipant(ctx context.Context, p domain.Participant, teamKey string) error {
	if err := s.requireLeague(ctx, p.LeagueID); err != nil {
		return err
	}
	ok, err := s.client.HSetNX(ctx, teamsKey(p.LeagueID), teamKey, p.ID).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrTeamNameTaken
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, participantKey(p.LeagueID, p.ID),
			"team_name", p.TeamName,
			"score", p.Score,
			"submitted", strconv.FormatBool(p.Submitted),
			"joined_at", p.JoinedAt.Format(time.RFC3339Nano),
			"updated_at", p.UpdatedAt.Format(time.RFC3339Nano),
		)
		if p.TiebreakDiff != nil {
			pipe.HSet(ctx, participantKey(p.LeagueID, p.ID), "tiebreak_diff", *p.TiebreakDiff)
		}
		if err := writeAnswers(ctx, pipe, answersKey(p.LeagueID, p.ID), p.Answers); err != nil {
			return err
		}
		pipe.RPush(ctx, participantsKey(p.LeagueID), p.ID)
		return nil
	})
	if err != nil {
		// MULTI does not roll back, so release the team name and drop
		// whatever part of the participant was written.
		cleanup := context.WithoutCancel(ctx)
		_, _ = s.client.TxPipelined(cleanup, func(pipe redis.Pipeliner) error {
			pipe.HDel(cleanup, teamsKey(p.LeagueID), teamKey)
			pipe.Del(cleanup, participantKey(p.LeagueID, p.ID), answersKey(p.LeagueID, p.ID))
			return nil
		})
		return err
	}
	return nil
}

func (s *LeagueStore) GetParticipant(ctx context.Context, leagueID, participantID string) (domain.Participant, error) {
	if err := s.requireLeague(ctx, leagueID); err != nil {
		return domain.Participant{}, err
	}
	return s.readParticipant(ctx, leagueID, participantID)
}

func (s *LeagueStore) ListParticipants(ctx context.Context, leagueID string) ([]domain.Participant, error) {
	if err := s.requireLeague(ctx, leagueID); err != nil {
		return nil, err
	}
	ids, err := s.client.LRange(ctx, participantsKey(leagueID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Participant, 0, len(ids))
	for _, id := range ids {
		p, err := s.readParticipant(ctx, leagueID, id)
		if err != nil {
			return nil, fmt.Errorf("read participant %s: %w", id, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *LeagueStore) UpdateAnswers(ctx context.Context, leagueID, participantID string, edits domain.Answers, at time.Time) (domain.Participant, error) {
	if err := s.requireParticipant(ctx, leagueID, participantID); err != nil {
		return domain.Participant{}, err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if err := writeAnswers(ctx, pipe, answersKey(leagueID, participantID), edits); err != nil {
			return err
		}
		pipe.HSet(ctx, participantKey(leagueID, participantID), "updated_at", at.Format(time.RFC3339Nano))
		return nil
	})
	if err != nil {
		return domain.Participant{}, err
	}
	return s.readParticipant(ctx, leagueID, participantID)
}

func (s *LeagueStore) MarkSubmitted(ctx context.Context, leagueID, participantID string, at time.Time) (domain.Participant, error) {
	if err := s.requireParticipant(ctx, leagueID, participantID); err != nil {
		return domain.Participant{}, err
	}
	err := s.client.HSet(ctx, participantKey(leagueID, participantID),
		"submitted", "true",
		"updated_at", at.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return domain.Participant{}, err
	}
	return s.readParticipant(ctx, leagueID, participantID)
}

func (s *LeagueStore) SaveScore(ctx context.Context, leagueID, participantID string, score int, tiebreakDiff *int) error {
	if err := s.requireParticipant(ctx, leagueID, participantID); err != nil {
		return err
	}
	key := participantKey(leagueID, participantID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "score", score)
		if tiebreakDiff != nil {
			pipe.HSet(ctx, key, "tiebreak_diff", *tiebreakDiff)
		} else {
			pipe.HDel(ctx, key, "tiebreak_diff")
		}
		return nil
	})
	return err
}

func (s *LeagueStore) requireLeague(ctx context.Context, leagueID string) error {
	n, err := s.client.Exists(ctx, leagueKey(leagueID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrLeagueNotFound
	}
	return nil
}

func (s *LeagueStore) requireParticipant(ctx context.Context, leagueID, participantID string) error {
	if err := s.requireLeague(ctx, leagueID); err != nil {
		return err
	}
	n, err := s.client.Exists(ctx, participantKey(leagueID, participantID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

func (s *LeagueStore) readParticipant(ctx context.Context, leagueID, participantID string) (domain.Participant, error) {
	fields, err := s.client.HGetAll(ctx, participantKey(leagueID, participantID)).Result()
	if err != nil {
		return domain.Participant{}, err
	}
	if len(fields) == 0 {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	answers, err := s.readAnswers(ctx, answersKey(leagueID, participantID))
	if err != nil {
		return domain.Participant{}, err
	}

	p := domain.Participant{
		ID:       participantID,
		LeagueID: leagueID,
		TeamName: fields["team_name"],
		Answers:  answers,
	}
	p.Score, _ = strconv.Atoi(fields["score"])
	if raw, ok := fields["tiebreak_diff"]; ok {
		if diff, err := strconv.Atoi(raw); err == nil {
			p.TiebreakDiff = &diff
		}
	}
	p.Submitted, _ = strconv.ParseBool(fields["submitted"])
	p.JoinedAt, _ = time.Parse(time.RFC3339Nano, fields["joined_at"])
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return p, nil
}

func (s *LeagueStore) readAnswers(ctx context.Context, key string) (domain.Answers, error) {
	raw, err := s.client.HGetAll(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	out := make(domain.Answers, len(raw))
	for qid, v := range raw {
		var a domain.Answer
		if err := json.Unmarshal([]byte(v), &a); err != nil {
			return nil, fmt.Errorf("decode answer %s: %w", qid, err)
		}
		if a.IsSet() {
			out[qid] = a
		}
	}
	return out, nil
}

// writeAnswers queues one HSET per set answer and one HDEL per cleared answer.
func writeAnswers(ctx context.Context, pipe redis.Pipeliner, key string, edits domain.Answers) error {
	for qid, a := range edits {
		if !a.IsSet() {
			pipe.HDel(ctx, key, qid)
			continue
		}
		raw, err := json.Marshal(a)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, key, qid, raw)
	}
	return nil
}

func leagueKey(id string) string       { return "league:" + id }
func resultsKey(id string) string      { return leagueKey(id) + ":results" }
func teamsKey(id string) string        { return leagueKey(id) + ":teams" }
func participantsKey(id string) string { return leagueKey(id) + ":participants" }
func participantKey(leagueID, participantID string) string {
	return leagueKey(leagueID) + ":participant:" + participantID
}
func answersKey(leagueID, participantID string) string {
	return participantKey(leagueID, participantID) + ":answers"
}
