package domain

import "time"

// QuestionType tags how a question is answered and compared.
type QuestionType string

const (
	QuestionRadio  QuestionType = "radio"
	QuestionNumber QuestionType = "number"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	return t == QuestionRadio || t == QuestionNumber
}

// Question is a single scoring unit of a question set.
type Question struct {
	ID           string       `json:"questionId" yaml:"id" bson:"question_id" validate:"required"`
	Label        string       `json:"label" yaml:"label" bson:"label" validate:"required"`
	Type         QuestionType `json:"type" yaml:"type" bson:"type" validate:"required,oneof=radio number"`
	Options      []string     `json:"options,omitempty" yaml:"options,omitempty" bson:"options,omitempty" validate:"required_if=Type radio,dive,required"`
	Points       int          `json:"points" yaml:"points" bson:"points" validate:"gte=0"`
	SortOrder    int          `json:"sortOrder" yaml:"sort_order" bson:"sort_order"`
	IsTiebreaker bool         `json:"isTiebreaker,omitempty" yaml:"tiebreaker,omitempty" bson:"is_tiebreaker,omitempty"`
}

// QuestionSet is the ordered collection of questions for one event.
type QuestionSet struct {
	ID        string     `json:"id" yaml:"id" validate:"required"`
	Event     string     `json:"event" yaml:"event"`
	Questions []Question `json:"questions" yaml:"questions" validate:"required,min=1,dive"`
}

// Tiebreaker returns the question flagged as tiebreaker, if any.
func (s QuestionSet) Tiebreaker() (Question, bool) {
	for _, q := range s.Questions {
		if q.IsTiebreaker {
			return q, true
		}
	}
	return Question{}, false
}

// League is one prediction pool for an event.
type League struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	QuestionSetID     string    `json:"questionSetId"`
	Results           Answers   `json:"results"`
	SubmissionsClosed bool      `json:"submissionsClosed"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Participant is a registered team and its predictions.
// Score and TiebreakDiff are derived and only written from scoring output.
type Participant struct {
	ID           string    `json:"id"`
	LeagueID     string    `json:"leagueId"`
	TeamName     string    `json:"teamName"`
	Answers      Answers   `json:"answers"`
	Score        int       `json:"score"`
	TiebreakDiff *int      `json:"tiebreakDiff,omitempty"`
	Submitted    bool      `json:"submitted"`
	JoinedAt     time.Time `json:"joinedAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	TeamName      string `json:"teamName"`
	Score         int    `json:"score"`
	TiebreakDiff  *int   `json:"tiebreakDiff,omitempty"`
	Rank          int    `json:"rank"`
}

// Leaderboard captures the ranked scoreboard for a league.
type Leaderboard struct {
	LeagueID  string             `json:"leagueId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
