package survey

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoRun         = errors.New("no questionnaire in progress")
	ErrUnknownPoll   = errors.New("poll does not belong to a questionnaire")
	ErrInvalidOption = errors.New("option out of range")
	ErrNotAwaiting   = errors.New("not waiting for a typed answer")
	ErrNotConfirming = errors.New("questionnaire is not finished")
)

// NoAnswer is recorded when a poll answer carries no option
const NoAnswer = "No answer"

// PromptKind tells the bot how to ask the next question
type PromptKind int

const (
	PromptPoll PromptKind = iota + 1
	PromptText
	PromptOther // typed answer after picking OtherOption
	PromptConfirm
	PromptRevote // the Other vote was retracted, the poll above is open again
)

// Prompt is what the user should see next
type Prompt struct {
	Kind     PromptKind
	ChatID   int64
	Index    int
	Question Question
	Summary  []Entry // set for PromptConfirm
}

// Entry pairs a question with its answer
type Entry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Response is a confirmed questionnaire
type Response struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	Answers     []Entry   `json:"answers"`
	StartedAt   time.Time `json:"started_at"`
	ConfirmedAt time.Time `json:"timestamp"`
}

type run struct {
	chatID       int64
	current      int
	answers      []string
	awaitingText bool
	confirming   bool
	pollID       string
	startedAt    time.Time
}

// Tracker holds questionnaire runs by user. Safe for concurrent use.
type Tracker struct {
	questionnaire *Questionnaire

	mu    sync.Mutex
	runs  map[int64]*run
	polls map[string]int64
	now   func() time.Time
}

// NewTracker creates a tracker for q
func NewTracker(q *Questionnaire) *Tracker {
	return &Tracker{
		questionnaire: q,
		runs:          make(map[int64]*run),
		polls:         make(map[string]int64),
		now:           time.Now,
	}
}

// Start begins a new run for the user, discarding any previous one
func (t *Tracker) Start(userID, chatID int64) Prompt {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dropLocked(userID)
	r := &run{chatID: chatID, startedAt: t.now()}
	t.runs[userID] = r
	return t.promptLocked(r)
}

// Active reports whether the user has a run in progress
func (t *Tracker) Active(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.runs[userID]
	return ok
}

// AwaitingText reports whether the next message from the user is an answer
func (t *Tracker) AwaitingText(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.runs[userID]
	return ok && r.awaitingText
}

// Next returns the current question, or the confirmation once all are answered
func (t *Tracker) Next(userID int64) (Prompt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.runs[userID]
	if !ok {
		return Prompt{}, ErrNoRun
	}
	return t.promptLocked(r), nil
}

// BindPoll associates a sent poll with the user's current question
func (t *Tracker) BindPoll(userID int64, pollID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.runs[userID]
	if !ok {
		return ErrNoRun
	}
	if r.pollID != "" {
		delete(t.polls, r.pollID)
	}
	r.pollID = pollID
	t.polls[pollID] = userID
	return nil
}

// AnswerPoll records the chosen option. Picking OtherOption switches the run
// to a typed answer for the same question.
func (t *Tracker) AnswerPoll(pollID string, optionIDs []int) (int64, Prompt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	userID, ok := t.polls[pollID]
	if !ok {
		return 0, Prompt{}, ErrUnknownPoll
	}
	r, ok := t.runs[userID]
	if !ok || r.pollID != pollID || r.current >= t.questionnaire.Len() {
		delete(t.polls, pollID)
		return 0, Prompt{}, ErrUnknownPoll
	}

	q := t.questionnaire.Questions[r.current]
	if len(optionIDs) == 0 && r.awaitingText {
		r.awaitingText = false
		return userID, Prompt{Kind: PromptRevote, ChatID: r.chatID, Index: r.current, Question: q}, nil
	}

	answer := NoAnswer
	if len(optionIDs) > 0 {
		option := optionIDs[0]
		if option < 0 || option >= len(q.Options) {
			return userID, Prompt{}, fmt.Errorf("%w: %d", ErrInvalidOption, option)
		}
		if q.IsOther(option) {
			r.awaitingText = true
			return userID, Prompt{Kind: PromptOther, ChatID: r.chatID, Index: r.current, Question: q}, nil
		}
		answer = q.Options[option]
	}

	delete(t.polls, pollID)
	r.pollID = ""
	r.awaitingText = false
	r.answers = append(r.answers, answer)
	r.current++
	return userID, t.promptLocked(r), nil
}

// AnswerText records a typed answer for a text question or after OtherOption
func (t *Tracker) AnswerText(userID int64, text string) (Prompt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.runs[userID]
	if !ok {
		return Prompt{}, ErrNoRun
	}
	if !r.awaitingText || r.current >= t.questionnaire.Len() {
		return Prompt{}, ErrNotAwaiting
	}

	if r.pollID != "" {
		delete(t.polls, r.pollID)
		r.pollID = ""
	}
	r.answers = append(r.answers, text)
	r.awaitingText = false
	r.current++
	return t.promptLocked(r), nil
}

// Confirm finishes the run and returns the response to store
func (t *Tracker) Confirm(userID int64) (*Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.runs[userID]
	if !ok {
		return nil, ErrNoRun
	}
	if !r.confirming {
		return nil, ErrNotConfirming
	}

	resp := &Response{
		ID:          uuid.NewString(),
		UserID:      userID,
		Answers:     t.summary(r),
		StartedAt:   r.startedAt,
		ConfirmedAt: t.now(),
	}
	t.dropLocked(userID)
	return resp, nil
}

// Restart discards the user's answers and returns the first question
func (t *Tracker) Restart(userID int64) (Prompt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old, ok := t.runs[userID]
	if !ok {
		return Prompt{}, ErrNoRun
	}
	t.dropLocked(userID)
	r := &run{chatID: old.chatID, startedAt: t.now()}
	t.runs[userID] = r
	return t.promptLocked(r), nil
}

// Cancel drops the user's run and reports whether one existed
func (t *Tracker) Cancel(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.runs[userID]
	t.dropLocked(userID)
	return ok
}

func (t *Tracker) dropLocked(userID int64) {
	r, ok := t.runs[userID]
	if !ok {
		return
	}
	if r.pollID != "" {
		delete(t.polls, r.pollID)
	}
	delete(t.runs, userID)
}

func (t *Tracker) promptLocked(r *run) Prompt {
	if r.current >= t.questionnaire.Len() {
		r.confirming = true
		return Prompt{Kind: PromptConfirm, ChatID: r.chatID, Index: r.current, Summary: t.summary(r)}
	}

	q := t.questionnaire.Questions[r.current]
	if q.IsText() {
		r.awaitingText = true
		return Prompt{Kind: PromptText, ChatID: r.chatID, Index: r.current, Question: q}
	}
	return Prompt{Kind: PromptPoll, ChatID: r.chatID, Index: r.current, Question: q}
}

func (t *Tracker) summary(r *run) []Entry {
	entries := make([]Entry, 0, len(r.answers))
	for i, a := range r.answers {
		if i >= t.questionnaire.Len() {
			break
		}
		entries = append(entries, Entry{Question: t.questionnaire.Questions[i].Question, Answer: a})
	}
	return entries
}
