package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Result describes the state after a successful Advance
type Result struct {
	Session *Session
	Prompt  string // next question, empty once Done
	Done    bool
}

// Tracker drives sessions through their flows
type Tracker struct {
	store Store
	now   func() time.Time
}

// NewTracker creates a tracker backed by store
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// Begin discards any previous session of the user, starts flow and returns the first prompt.
// eventID is the event a registration refers to; pass zero for event creation.
func (t *Tracker) Begin(userID, chatID int64, flow Flow, eventID int64) (*Session, string, error) {
	first, err := FirstStep(flow)
	if err != nil {
		return nil, "", err
	}
	prompt, err := Prompt(first)
	if err != nil {
		return nil, "", err
	}

	now := t.now()
	session := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ChatID:    chatID,
		Flow:      flow,
		Step:      first,
		EventID:   eventID,
		StartedAt: now,
		UpdatedAt: now,
	}
	t.store.Put(session)
	return session.clone(), prompt, nil
}

// Chain moves a finished session on to flow, keeping its answers and event.
// It fails with ErrNotDone unless the session reached StepDone.
func (t *Tracker) Chain(userID int64, flow Flow) (*Session, string, error) {
	session, ok := t.store.Get(userID)
	if !ok {
		return nil, "", ErrNoSession
	}
	if session.Step != StepDone {
		return nil, "", fmt.Errorf("%w: at %s", ErrNotDone, session.Step)
	}
	first, err := FirstStep(flow)
	if err != nil {
		return nil, "", err
	}
	prompt, err := Prompt(first)
	if err != nil {
		return nil, "", err
	}

	session.Flow = flow
	session.Step = first
	session.UpdatedAt = t.now()
	t.store.Put(session)
	return session.clone(), prompt, nil
}

// Current returns the user's session, if any
func (t *Tracker) Current(userID int64) (*Session, bool) {
	return t.store.Get(userID)
}

// Advance validates input against the current step. On success the answer is
// recorded and the session moves to the next step. A *ValidationError leaves
// the session unchanged.
func (t *Tracker) Advance(userID int64, input string) (*Result, error) {
	session, ok := t.store.Get(userID)
	if !ok {
		return nil, ErrNoSession
	}
	if session.Step == StepDone {
		return &Result{Session: session, Done: true}, nil
	}

	next, err := NextStep(session.Flow, session.Step)
	if err != nil {
		return nil, err
	}

	value, err := Validate(session.Step, input)
	if err != nil {
		return nil, err
	}

	session.Answers = append(session.Answers, Answer{Step: session.Step, Value: value})
	session.Step = next
	session.UpdatedAt = t.now()
	t.store.Put(session)

	if next == StepDone {
		return &Result{Session: session, Done: true}, nil
	}
	prompt, err := Prompt(next)
	if err != nil {
		return nil, err
	}
	return &Result{Session: session, Prompt: prompt}, nil
}

// Complete returns the finished session and clears it
func (t *Tracker) Complete(userID int64) (*Session, error) {
	session, ok := t.store.Get(userID)
	if !ok {
		return nil, ErrNoSession
	}
	if session.Step != StepDone {
		return nil, fmt.Errorf("%w: at %s", ErrNotDone, session.Step)
	}
	t.store.Delete(userID)
	return session, nil
}

// Cancel clears the user's session and reports whether one existed
func (t *Tracker) Cancel(userID int64) bool {
	_, ok := t.store.Get(userID)
	t.store.Delete(userID)
	return ok
}
