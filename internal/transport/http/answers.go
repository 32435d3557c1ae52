package http

import (
	"errors"
	"fmt"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/questions"
)

var errInvalidAnswer = errors.New("invalid answer")

// resolveAnswer checks that a matches q's type and snaps free-typed radio
// text onto an option. Unset answers pass through and clear the field.
func resolveAnswer(q domain.Question, a domain.Answer) (domain.Answer, error) {
	if !a.IsSet() {
		return a, nil
	}
	switch q.Type {
	case domain.QuestionRadio:
		text, ok := a.Text()
		if !ok {
			return domain.Answer{}, fmt.Errorf("%w: %s expects text", errInvalidAnswer, q.ID)
		}
		return domain.TextAnswer(questions.ResolveOption(q, text)), nil
	case domain.QuestionNumber:
		if _, ok := a.Number(); !ok {
			return domain.Answer{}, fmt.Errorf("%w: %s expects a whole number", errInvalidAnswer, q.ID)
		}
		return a, nil
	default:
		return domain.Answer{}, fmt.Errorf("%w: %s has unknown type", errInvalidAnswer, q.ID)
	}
}

func resolveAnswers(qs []domain.Question, edits domain.Answers) (domain.Answers, error) {
	byID := indexQuestions(qs)
	out := make(domain.Answers, len(edits))
	for id, a := range edits {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown question %s", errInvalidAnswer, id)
		}
		resolved, err := resolveAnswer(q, a)
		if err != nil {
			return nil, err
		}
		out[id] = resolved
	}
	return out, nil
}

func indexQuestions(qs []domain.Question) map[string]domain.Question {
	byID := make(map[string]domain.Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	return byID
}
