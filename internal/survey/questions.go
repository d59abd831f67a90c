// Package survey runs the poll-based drive questionnaire started with /new_drive.
package survey

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// OtherOption is appended to questions that accept a free-text answer
const OtherOption = "Other"

// Question types
const (
	TypePoll = "poll"
	TypeText = "text"
)

// Telegram poll limits
const (
	minPollOptions = 2
	maxPollOptions = 10
)

var ErrEmptyQuestionnaire = errors.New("questionnaire has no questions")

// Question is one entry of the questionnaire file
type Question struct {
	Question  string   `json:"question"`
	Type      string   `json:"type,omitempty"`
	Options   []string `json:"options,omitempty"`
	Reference string   `json:"reference,omitempty"`
	AllowText bool     `json:"allow_text,omitempty"`
}

// IsText reports whether the question is answered by typing
func (q Question) IsText() bool {
	return q.Type == TypeText
}

// IsOther reports whether option is the appended free-text choice
func (q Question) IsOther(option int) bool {
	return q.AllowText && option == len(q.Options)-1
}

type reference struct {
	Options []string `json:"options"`
}

// Questionnaire is a loaded, validated list of questions with references resolved
type Questionnaire struct {
	Questions []Question
}

// Len returns the number of questions
func (q *Questionnaire) Len() int {
	return len(q.Questions)
}

// Load reads a questionnaire from path. A question with a reference takes its
// options from questions_<reference>.json in the same directory.
func Load(path string) (*Questionnaire, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questionnaire: %w", err)
	}

	var questions []Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse questionnaire %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	resolve := func(ref string) ([]string, error) {
		refPath := filepath.Join(dir, "questions_"+ref+".json")
		data, err := os.ReadFile(refPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read reference %q: %w", ref, err)
		}
		var r reference
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("failed to parse reference %s: %w", refPath, err)
		}
		return r.Options, nil
	}

	return New(questions, resolve)
}

// New validates questions and resolves references through resolve, which may
// be nil when no question uses a reference.
func New(questions []Question, resolve func(ref string) ([]string, error)) (*Questionnaire, error) {
	if len(questions) == 0 {
		return nil, ErrEmptyQuestionnaire
	}

	out := make([]Question, 0, len(questions))
	for i, q := range questions {
		if q.Question == "" {
			return nil, fmt.Errorf("question %d has no text", i+1)
		}
		if q.Type == "" {
			q.Type = TypePoll
		}

		switch q.Type {
		case TypeText:
			q.Options = nil
			q.AllowText = false
		case TypePoll:
			options := q.Options
			if q.Reference != "" {
				if resolve == nil {
					return nil, fmt.Errorf("question %d: no resolver for reference %q", i+1, q.Reference)
				}
				ref, err := resolve(q.Reference)
				if err != nil {
					return nil, fmt.Errorf("question %d: %w", i+1, err)
				}
				options = ref
			}
			options = append([]string(nil), options...)
			if q.AllowText {
				options = append(options, OtherOption)
			}
			if len(options) < minPollOptions || len(options) > maxPollOptions {
				return nil, fmt.Errorf("question %d: poll needs %d-%d options, got %d",
					i+1, minPollOptions, maxPollOptions, len(options))
			}
			q.Options = options
		default:
			return nil, fmt.Errorf("question %d: unknown type %q", i+1, q.Type)
		}
		out = append(out, q)
	}

	return &Questionnaire{Questions: out}, nil
}
