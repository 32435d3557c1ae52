package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/scoring"
)

func TestValidateQuestions(t *testing.T) {
	valid := domain.QuestionSet{ID: "sb", Questions: sampleQuestions()}
	require.NoError(t, scoring.ValidateQuestions(valid))

	tests := []struct {
		name   string
		mutate func([]domain.Question) []domain.Question
	}{
		{"empty set", func([]domain.Question) []domain.Question { return nil }},
		{"duplicate id", func(qs []domain.Question) []domain.Question {
			qs[1].ID = qs[0].ID
			return qs
		}},
		{"unknown type", func(qs []domain.Question) []domain.Question {
			qs[0].Type = "checkbox"
			return qs
		}},
		{"radio without options", func(qs []domain.Question) []domain.Question {
			qs[0].Options = nil
			return qs
		}},
		{"negative points", func(qs []domain.Question) []domain.Question {
			qs[2].Points = -1
			return qs
		}},
		{"radio tiebreaker", func(qs []domain.Question) []domain.Question {
			qs[3].IsTiebreaker = false
			qs[1].IsTiebreaker = true
			qs[1].Points = 0
			return qs
		}},
		{"tiebreaker with points", func(qs []domain.Question) []domain.Question {
			qs[3].Points = 2
			return qs
		}},
		{"two tiebreakers", func(qs []domain.Question) []domain.Question {
			qs[2].IsTiebreaker = true
			qs[2].Points = 0
			return qs
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := domain.QuestionSet{ID: "sb", Questions: tt.mutate(sampleQuestions())}
			assert.ErrorIs(t, scoring.ValidateQuestions(set), domain.ErrInvalidQuestionSet)
		})
	}
}
