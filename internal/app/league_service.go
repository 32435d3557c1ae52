package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/scoring"
)

// LeagueStore persists leagues, participants and actual results
// (in-memory, Redis, MongoDB).
type LeagueStore interface {
	CreateLeague(ctx context.Context, league domain.League) error
	GetLeague(ctx context.Context, leagueID string) (domain.League, error)
	// UpdateResults merges edits into the league's actual results field by field.
	UpdateResults(ctx context.Context, leagueID string, edits domain.Answers) (domain.League, error)
	SetSubmissionsClosed(ctx context.Context, leagueID string, closed bool) error

	// AddParticipant fails with domain.ErrTeamNameTaken when teamKey is in use.
	AddParticipant(ctx context.Context, p domain.Participant, teamKey string) error
	GetParticipant(ctx context.Context, leagueID, participantID string) (domain.Participant, error)
	// ListParticipants returns participants in join order.
	ListParticipants(ctx context.Context, leagueID string) ([]domain.Participant, error)
	// UpdateAnswers merges edits into the participant's answers field by field.
	UpdateAnswers(ctx context.Context, leagueID, participantID string, edits domain.Answers, at time.Time) (domain.Participant, error)
	MarkSubmitted(ctx context.Context, leagueID, participantID string, at time.Time) (domain.Participant, error)
	SaveScore(ctx context.Context, leagueID, participantID string, score int, tiebreakDiff *int) error
}

// QuestionRepository loads question sets (from cache/backing store).
type QuestionRepository interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// HubRepository keeps the live leaderboard hubs (in-memory, Redis-marked).
type HubRepository interface {
	GetOrCreate(leagueID string) *Hub
	Get(leagueID string) (*Hub, bool)
	DeleteIfIdle(leagueID string)
}

// RecalculationRecorder observes bulk recalculations, e.g. for metrics.
type RecalculationRecorder interface {
	ObserveRecalculation(participants int, elapsed time.Duration, err error)
}

// Option configures a LeagueService.
type Option func(*LeagueService)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *LeagueService) { s.logger = logger }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *LeagueService) { s.now = now }
}

// WithIDGenerator replaces uuid-based ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *LeagueService) { s.newID = newID }
}

// WithRecalculationRecorder registers a recorder for bulk recalculations.
func WithRecalculationRecorder(r RecalculationRecorder) Option {
	return func(s *LeagueService) { s.recorder = r }
}

// LeagueService contains the league use cases.
type LeagueService struct {
	store     LeagueStore
	questions QuestionRepository
	hubs      HubRepository
	logger    *slog.Logger
	recorder  RecalculationRecorder
	now       func() time.Time
	newID     func() string

	// scoreLocks serializes rescoring per league. Inputs are read inside the
	// lock, so the last rescore to finish always sees the latest writes.
	scoreLocks sync.Map // leagueID -> *sync.Mutex
}

func NewLeagueService(store LeagueStore, questions QuestionRepository, hubs HubRepository, opts ...Option) *LeagueService {
	s := &LeagueService{
		store:     store,
		questions: questions,
		hubs:      hubs,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateLeague registers a new league for an existing question set.
func (s *LeagueService) CreateLeague(ctx context.Context, name, questionSetID string) (domain.League, error) {
	if _, err := s.questions.GetQuestionSet(ctx, questionSetID); err != nil {
		return domain.League{}, err
	}
	league := domain.League{
		ID:            s.newID(),
		Name:          strings.TrimSpace(name),
		QuestionSetID: questionSetID,
		Results:       domain.Answers{},
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateLeague(ctx, league); err != nil {
		return domain.League{}, fmt.Errorf("create league: %w", err)
	}
	s.logger.InfoContext(ctx, "league created",
		slog.String("league_id", league.ID),
		slog.String("question_set_id", questionSetID),
	)
	return league, nil
}

// GetLeague returns the league.
func (s *LeagueService) GetLeague(ctx context.Context, leagueID string) (domain.League, error) {
	return s.store.GetLeague(ctx, leagueID)
}

// Questions returns the league's questions in display order.
func (s *LeagueService) Questions(ctx context.Context, leagueID string) ([]domain.Question, error) {
	league, err := s.store.GetLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	set, err := s.questions.GetQuestionSet(ctx, league.QuestionSetID)
	if err != nil {
		return nil, err
	}
	questions := append([]domain.Question(nil), set.Questions...)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].SortOrder < questions[j].SortOrder
	})
	return questions, nil
}

// Join registers a team in the league.
func (s *LeagueService) Join(ctx context.Context, leagueID, teamName string) (domain.Participant, error) {
	teamName = strings.TrimSpace(teamName)
	if teamName == "" {
		return domain.Participant{}, domain.ErrInvalidTeamName
	}
	if _, err := s.store.GetLeague(ctx, leagueID); err != nil {
		return domain.Participant{}, err
	}

	now := s.now()
	p := domain.Participant{
		ID:        s.newID(),
		LeagueID:  leagueID,
		TeamName:  teamName,
		Answers:   domain.Answers{},
		JoinedAt:  now,
		UpdatedAt: now,
	}
	if err := s.store.AddParticipant(ctx, p, scoring.Normalize(teamName)); err != nil {
		return domain.Participant{}, err
	}
	s.logger.InfoContext(ctx, "participant joined",
		slog.String("league_id", leagueID),
		slog.String("participant_id", p.ID),
	)
	s.broadcast(ctx, leagueID)
	return p, nil
}

// GetParticipant returns a participant of the league.
func (s *LeagueService) GetParticipant(ctx context.Context, leagueID, participantID string) (domain.Participant, error) {
	return s.store.GetParticipant(ctx, leagueID, participantID)
}

// SavePredictions merges edits into the participant's answers and rescores
// that participant only.
func (s *LeagueService) SavePredictions(ctx context.Context, leagueID, participantID string, edits domain.Answers) (domain.Participant, error) {
	league, err := s.store.GetLeague(ctx, leagueID)
	if err != nil {
		return domain.Participant{}, err
	}
	if league.SubmissionsClosed {
		return domain.Participant{}, domain.ErrSubmissionsClosed
	}
	set, err := s.questions.GetQuestionSet(ctx, league.QuestionSetID)
	if err != nil {
		return domain.Participant{}, err
	}

	if _, err := s.store.UpdateAnswers(ctx, leagueID, participantID, edits, s.now()); err != nil {
		return domain.Participant{}, err
	}
	p, err := s.rescoreParticipant(ctx, leagueID, participantID, set)
	if err != nil {
		return domain.Participant{}, err
	}

	s.broadcast(ctx, leagueID)
	return p, nil
}

// rescoreParticipant scores one participant against the stored results.
func (s *LeagueService) rescoreParticipant(ctx context.Context, leagueID, participantID string, set domain.QuestionSet) (domain.Participant, error) {
	unlock := s.lockScoring(leagueID)
	defer unlock()

	league, err := s.store.GetLeague(ctx, leagueID)
	if err != nil {
		return domain.Participant{}, err
	}
	p, err := s.store.GetParticipant(ctx, leagueID, participantID)
	if err != nil {
		return domain.Participant{}, err
	}
	res, err := scoring.ScoreParticipant(set.Questions, p.Answers, league.Results)
	if err != nil {
		return domain.Participant{}, err
	}
	if err := s.store.SaveScore(ctx, leagueID, participantID, res.Score, res.TiebreakDiff); err != nil {
		return domain.Participant{}, fmt.Errorf("save score: %w", err)
	}
	p.Score, p.TiebreakDiff = res.Score, res.TiebreakDiff
	return p, nil
}

func (s *LeagueService) lockScoring(leagueID string) func() {
	v, _ := s.scoreLocks.LoadOrStore(leagueID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Submit marks the participant's predictions as submitted.
func (s *LeagueService) Submit(ctx context.Context, leagueID, participantID string) (domain.Participant, error) {
	league, err := s.store.GetLeague(ctx, leagueID)
	if err != nil {
		return domain.Participant{}, err
	}
	if league.SubmissionsClosed {
		return domain.Participant{}, domain.ErrSubmissionsClosed
	}
	return s.store.MarkSubmitted(ctx, leagueID, participantID, s.now())
}

// SaveResults merges actual results and rescores every participant.
func (s *LeagueService) SaveResults(ctx context.Context, leagueID string, edits domain.Answers) (domain.Leaderboard, error) {
	if _, err := s.store.UpdateResults(ctx, leagueID, edits); err != nil {
		return domain.Leaderboard{}, err
	}
	s.logger.InfoContext(ctx, "results updated",
		slog.String("league_id", leagueID),
		slog.Int("fields", len(edits)),
	)
	return s.recalculate(ctx, leagueID)
}

// Recalculate rescores every participant from the current results.
func (s *LeagueService) Recalculate(ctx context.Context, leagueID string) (domain.Leaderboard, error) {
	return s.recalculate(ctx, leagueID)
}

// SetSubmissionsClosed locks or unlocks prediction edits.
func (s *LeagueService) SetSubmissionsClosed(ctx context.Context, leagueID string, closed bool) (domain.League, error) {
	if err := s.store.SetSubmissionsClosed(ctx, leagueID, closed); err != nil {
		return domain.League{}, err
	}
	return s.store.GetLeague(ctx, leagueID)
}

// Leaderboard returns the ranked leaderboard of the league.
func (s *LeagueService) Leaderboard(ctx context.Context, leagueID string) (domain.Leaderboard, error) {
	participants, err := s.store.ListParticipants(ctx, leagueID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return s.leaderboard(leagueID, participants), nil
}

// Subscribe returns a channel that receives leaderboard updates for a league.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LeagueService) Subscribe(ctx context.Context, leagueID string) (<-chan domain.Leaderboard, func(), error) {
	lb, err := s.Leaderboard(ctx, leagueID)
	if err != nil {
		return nil, nil, err
	}
	hub := s.hubs.GetOrCreate(leagueID)
	ch, unsubscribe := hub.subscribe(lb)
	cancel := func() {
		unsubscribe()
		s.hubs.DeleteIfIdle(leagueID)
	}
	return ch, cancel, nil
}

func (s *LeagueService) recalculate(ctx context.Context, leagueID string) (lb domain.Leaderboard, err error) {
	unlock := s.lockScoring(leagueID)
	defer unlock()

	start := time.Now()
	var participants []domain.Participant
	defer func() {
		if s.recorder != nil {
			s.recorder.ObserveRecalculation(len(participants), time.Since(start), err)
		}
	}()

	league, err := s.store.GetLeague(ctx, leagueID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	set, err := s.questions.GetQuestionSet(ctx, league.QuestionSetID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	participants, err = s.store.ListParticipants(ctx, league.ID)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	changed := 0
	for i := range participants {
		p := &participants[i]
		res, err := scoring.ScoreParticipant(set.Questions, p.Answers, league.Results)
		if err != nil {
			return domain.Leaderboard{}, err
		}
		if res.Score == p.Score && equalDiff(res.TiebreakDiff, p.TiebreakDiff) {
			continue
		}
		if err := s.store.SaveScore(ctx, league.ID, p.ID, res.Score, res.TiebreakDiff); err != nil {
			return domain.Leaderboard{}, fmt.Errorf("save score for %s: %w", p.ID, err)
		}
		p.Score, p.TiebreakDiff = res.Score, res.TiebreakDiff
		changed++
	}

	s.logger.InfoContext(ctx, "scores recalculated",
		slog.String("league_id", league.ID),
		slog.Int("participants", len(participants)),
		slog.Int("changed", changed),
		slog.Duration("elapsed", time.Since(start)),
	)

	lb = s.leaderboard(league.ID, participants)
	s.publish(league.ID, lb)
	return lb, nil
}

func (s *LeagueService) leaderboard(leagueID string, participants []domain.Participant) domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, domain.LeaderboardEntry{
			ParticipantID: p.ID,
			TeamName:      p.TeamName,
			Score:         p.Score,
			TiebreakDiff:  p.TiebreakDiff,
		})
	}
	return domain.Leaderboard{
		LeagueID:  leagueID,
		Entries:   scoring.Rank(entries),
		UpdatedAt: s.now(),
	}
}

func (s *LeagueService) broadcast(ctx context.Context, leagueID string) {
	if _, ok := s.hubs.Get(leagueID); !ok {
		return
	}
	lb, err := s.Leaderboard(ctx, leagueID)
	if err != nil {
		s.logger.WarnContext(ctx, "leaderboard broadcast failed",
			slog.String("league_id", leagueID),
			slog.Any("error", err),
		)
		return
	}
	s.publish(leagueID, lb)
}

func (s *LeagueService) publish(leagueID string, lb domain.Leaderboard) {
	if hub, ok := s.hubs.Get(leagueID); ok {
		hub.publish(lb)
	}
}

func equalDiff(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
