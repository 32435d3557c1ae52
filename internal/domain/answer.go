package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type answerKind uint8

const (
	answerUnset answerKind = iota
	answerText
	answerNumber
)

// Answer is a single prediction or actual result: text for radio questions,
// an integer for number questions. The zero value means unanswered.
type Answer struct {
	kind   answerKind
	text   string
	number int
}

// TextAnswer builds a radio-style answer.
func TextAnswer(s string) Answer {
	return Answer{kind: answerText, text: s}
}

// NumberAnswer builds a numeric answer.
func NumberAnswer(n int) Answer {
	return Answer{kind: answerNumber, number: n}
}

// IsSet reports whether the answer carries a value.
func (a Answer) IsSet() bool { return a.kind != answerUnset }

// Text returns the text value and whether the answer is textual.
func (a Answer) Text() (string, bool) {
	return a.text, a.kind == answerText
}

// Number returns the numeric value and whether the answer is numeric.
func (a Answer) Number() (int, bool) {
	return a.number, a.kind == answerNumber
}

// Value returns the answer as string, int or nil.
func (a Answer) Value() any {
	switch a.kind {
	case answerText:
		return a.text
	case answerNumber:
		return a.number
	default:
		return nil
	}
}

func (a Answer) String() string {
	switch a.kind {
	case answerText:
		return a.text
	case answerNumber:
		return strconv.Itoa(a.number)
	default:
		return ""
	}
}

// AnswerFromValue converts a decoded JSON/BSON scalar into an Answer.
// Unsupported values yield an unset answer.
func AnswerFromValue(v any) Answer {
	switch val := v.(type) {
	case string:
		return TextAnswer(val)
	case int:
		return NumberAnswer(val)
	case int32:
		return NumberAnswer(int(val))
	case int64:
		return NumberAnswer(int(val))
	case float64:
		if val == float64(int(val)) {
			return NumberAnswer(int(val))
		}
	}
	return Answer{}
}

// MarshalJSON encodes the answer as a bare string, number or null.
func (a Answer) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Value())
}

// UnmarshalJSON accepts a string, an integer or null.
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Answer{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("answer must be a string or number: %w", err)
	}
	i, err := n.Int64()
	if err != nil {
		return fmt.Errorf("answer must be an integer: %w", err)
	}
	*a = NumberAnswer(int(i))
	return nil
}

// Answers maps question ids to answers. It is used for both a participant's
// predictions and a league's actual results.
type Answers map[string]Answer

// Clone returns an independent copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Merge returns a copy of a with edits applied field by field. Unset edits
// clear the field.
func (a Answers) Merge(edits Answers) Answers {
	out := a.Clone()
	for k, v := range edits {
		if !v.IsSet() {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}
