// Package scoring turns question definitions, predictions and actual results
// into scores and a ranked leaderboard. Everything here is pure.
package scoring

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
)

var (
	// ErrNilQuestionSet is returned when scoring is called without questions.
	ErrNilQuestionSet = errors.New("scoring: nil question set")
	// ErrInvalidQuestionType is returned for an unknown question type tag.
	ErrInvalidQuestionType = errors.New("scoring: invalid question type")
)

// Result is the derived score for one participant.
// TiebreakDiff is nil until both the prediction and the actual tiebreaker value exist.
type Result struct {
	Score        int
	TiebreakDiff *int
}

// Normalize returns the canonical comparable form of a radio value:
// lower case, with runs of whitespace, '-' and '_' collapsed to a single '-'.
func Normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})
	return strings.Join(fields, "-")
}

// ScoreQuestion returns the points earned on q. Unset answers or results,
// type mismatches and unknown radio options all score zero.
func ScoreQuestion(q domain.Question, answer, actual domain.Answer) int {
	if q.IsTiebreaker || !answer.IsSet() || !actual.IsSet() {
		return 0
	}
	switch q.Type {
	case domain.QuestionRadio:
		got, ok := answer.Text()
		if !ok {
			return 0
		}
		want, ok := actual.Text()
		if !ok {
			return 0
		}
		if g := Normalize(got); g != "" && g == Normalize(want) && isOption(q, g) {
			return q.Points
		}
	case domain.QuestionNumber:
		got, ok := answer.Number()
		if !ok {
			return 0
		}
		want, ok := actual.Number()
		if ok && got == want {
			return q.Points
		}
	}
	return 0
}

// ScoreParticipant sums ScoreQuestion over questions and computes the
// tiebreak distance. It fails only on programmer misuse.
func ScoreParticipant(questions []domain.Question, answers, results domain.Answers) (Result, error) {
	if questions == nil {
		return Result{}, ErrNilQuestionSet
	}
	var res Result
	for _, q := range questions {
		if !q.Type.Valid() {
			return Result{}, fmt.Errorf("%w: %q on question %s", ErrInvalidQuestionType, q.Type, q.ID)
		}
		res.Score += ScoreQuestion(q, answers[q.ID], results[q.ID])
		if q.IsTiebreaker && res.TiebreakDiff == nil {
			res.TiebreakDiff = tiebreakDiff(answers[q.ID], results[q.ID])
		}
	}
	return res, nil
}

// isOption reports whether the normalized value is one of q's options.
// Questions without options accept any value.
func isOption(q domain.Question, normalized string) bool {
	if len(q.Options) == 0 {
		return true
	}
	for _, opt := range q.Options {
		if Normalize(opt) == normalized {
			return true
		}
	}
	return false
}

func tiebreakDiff(answer, actual domain.Answer) *int {
	got, ok := answer.Number()
	if !ok {
		return nil
	}
	want, ok := actual.Number()
	if !ok {
		return nil
	}
	d := got - want
	if d < 0 {
		d = -d
	}
	return &d
}
