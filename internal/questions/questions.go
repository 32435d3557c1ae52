// Package questions ships the default question set and helpers for
// interpreting typed answers.
package questions

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
)

//go:embed superbowl.yaml
var defaultSetYAML []byte

// DefaultSetID is the id of the embedded question set.
const DefaultSetID = "superbowl-seahawks-patriots"

// Default returns the embedded Super Bowl question set.
func Default() domain.QuestionSet {
	set, err := Parse(defaultSetYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded question set: %v", err))
	}
	return set
}

// Parse decodes a YAML question set.
func Parse(data []byte) (domain.QuestionSet, error) {
	var set domain.QuestionSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("parse question set: %w", err)
	}
	return set, nil
}

// LoadFile reads a YAML question set from disk.
func LoadFile(path string) (domain.QuestionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return Parse(data)
}

// FileLoader serves question sets parsed from YAML files plus the embedded default.
type FileLoader struct {
	sets map[string]domain.QuestionSet
}

// NewFileLoader parses every path; the embedded default is always available.
func NewFileLoader(paths ...string) (*FileLoader, error) {
	l := &FileLoader{sets: map[string]domain.QuestionSet{}}
	def := Default()
	l.sets[def.ID] = def
	for _, path := range paths {
		set, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		l.sets[set.ID] = set
	}
	return l, nil
}

func (l *FileLoader) LoadQuestionSet(_ context.Context, setID string) (domain.QuestionSet, error) {
	if set, ok := l.sets[setID]; ok {
		return set, nil
	}
	return domain.QuestionSet{}, domain.ErrQuestionSetNotFound
}

// ResolveOption snaps free-typed text onto one of q's options. Exact
// case-insensitive matches win; otherwise the input must fuzzy-match exactly
// one option. Unresolved input is returned unchanged and will simply not score.
func ResolveOption(q domain.Question, input string) string {
	trimmed := strings.TrimSpace(input)
	if q.Type != domain.QuestionRadio || trimmed == "" {
		return input
	}
	for _, opt := range q.Options {
		if strings.EqualFold(opt, trimmed) {
			return opt
		}
	}
	matches := fuzzy.FindNormalizedFold(trimmed, q.Options)
	if len(matches) == 1 {
		return matches[0]
	}
	return input
}
