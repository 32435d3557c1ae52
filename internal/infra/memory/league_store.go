package memory

import (
	"context"
	"sync"
	"time"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
)

// LeagueStore is an in-memory implementation of app.LeagueStore.
type LeagueStore struct {
	mu      sync.RWMutex
	leagues map[string]*leagueState
}

type leagueState struct {
	league       domain.League
	participants map[string]*domain.Participant
	order        []string
	teams        map[string]string
}

func NewLeagueStore() *LeagueStore {
	return &LeagueStore{leagues: make(map[string]*leagueState)}
}

func (s *LeagueStore) CreateLeague(_ context.Context, league domain.League) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	league.Results = league.Results.Clone()
	s.leagues[league.ID] = &leagueState{
		league:       league,
		participants: make(map[string]*domain.Participant),
		teams:        make(map[string]string),
	}
	return nil
}

func (s *LeagueStore) GetLeague(_ context.Context, leagueID string) (domain.League, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.leagues[leagueID]
	if !ok {
		return domain.League{}, domain.ErrLeagueNotFound
	}
	return copyLeague(st.league), nil
}

func (s *LeagueStore) UpdateResults(_ context.Context, leagueID string, edits domain.Answers) (domain.League, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.leagues[leagueID]
	if !ok {
		return domain.League{}, domain.ErrLeagueNotFound
	}
	st.league.Results = st.league.Results.Merge(edits)
	return copyLeague(st.league), nil
}

func (s *LeagueStore) SetSubmissionsClosed(_ context.Context, leagueID string, closed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.leagues[leagueID]
	if !ok {
		return domain.ErrLeagueNotFound
	}
	st.league.SubmissionsClosed = closed
	return nil
}

func (s *LeagueStore) AddParticipant(_ context.Context, p domain.Participant, teamKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.leagues[p.LeagueID]
	if !ok {
		return domain.ErrLeagueNotFound
	}
	if _, taken := st.teams[teamKey]; taken {
		return domain.ErrTeamNameTaken
	}
	p.Answers = p.Answers.Clone()
	st.teams[teamKey] = p.ID
	st.participants[p.ID] = &p
	st.order = append(st.order, p.ID)
	return nil
}

func (s *LeagueStore) GetParticipant(_ context.Context, leagueID, participantID string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.participantLocked(leagueID, participantID)
	if err != nil {
		return domain.Participant{}, err
	}
	return copyParticipant(*p), nil
}

func (s *LeagueStore) ListParticipants(_ context.Context, leagueID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.leagues[leagueID]
	if !ok {
		return nil, domain.ErrLeagueNotFound
	}
	out := make([]domain.Participant, 0, len(st.order))
	for _, id := range st.order {
		out = append(out, copyParticipant(*st.participants[id]))
	}
	return out, nil
}

func (s *LeagueStore) UpdateAnswers(_ context.Context, leagueID, participantID string, edits domain.Answers, at time.Time) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.participantLocked(leagueID, participantID)
	if err != nil {
		return domain.Participant{}, err
	}
	p.Answers = p.Answers.Merge(edits)
	p.UpdatedAt = at
	return copyParticipant(*p), nil
}

func (s *LeagueStore) MarkSubmitted(_ context.Context, leagueID, participantID string, at time.Time) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.participantLocked(leagueID, participantID)
	if err != nil {
		return domain.Participant{}, err
	}
	p.Submitted = true
	p.UpdatedAt = at
	return copyParticipant(*p), nil
}

func (s *LeagueStore) SaveScore(_ context.Context, leagueID, participantID string, score int, tiebreakDiff *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.participantLocked(leagueID, participantID)
	if err != nil {
		return err
	}
	p.Score = score
	p.TiebreakDiff = copyInt(tiebreakDiff)
	return nil
}

func (s *LeagueStore) participantLocked(leagueID, participantID string) (*domain.Participant, error) {
	st, ok := s.leagues[leagueID]
	if !ok {
		return nil, domain.ErrLeagueNotFound
	}
	p, ok := st.participants[participantID]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	return p, nil
}

func copyLeague(l domain.League) domain.League {
	l.Results = l.Results.Clone()
	return l
}

func copyParticipant(p domain.Participant) domain.Participant {
	p.Answers = p.Answers.Clone()
	p.TiebreakDiff = copyInt(p.TiebreakDiff)
	return p
}

func copyInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
