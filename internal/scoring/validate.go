package scoring

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateQuestions checks a question set before it is used for scoring:
// field constraints, unique ids, and a single number-typed tiebreaker
// worth zero points.
func ValidateQuestions(set domain.QuestionSet) error {
	if err := structValidator().Struct(set); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", domain.ErrInvalidQuestionSet, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidQuestionSet, err)
	}

	seen := make(map[string]struct{}, len(set.Questions))
	tiebreakers := 0
	for _, q := range set.Questions {
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %s", domain.ErrInvalidQuestionSet, q.ID)
		}
		seen[q.ID] = struct{}{}

		if !q.IsTiebreaker {
			continue
		}
		tiebreakers++
		if q.Type != domain.QuestionNumber {
			return fmt.Errorf("%w: tiebreaker %s must be a number question", domain.ErrInvalidQuestionSet, q.ID)
		}
		if q.Points != 0 {
			return fmt.Errorf("%w: tiebreaker %s must be worth 0 points", domain.ErrInvalidQuestionSet, q.ID)
		}
	}
	if tiebreakers > 1 {
		return fmt.Errorf("%w: %d tiebreaker questions", domain.ErrInvalidQuestionSet, tiebreakers)
	}
	return nil
}
