package conversation

import (
	"errors"
	"fmt"
)

var (
	ErrNoSession   = errors.New("no active conversation")
	ErrUnknownFlow = errors.New("unknown conversation flow")
	ErrUnknownStep = errors.New("unknown conversation step")
	ErrNotDone     = errors.New("conversation is not finished")
)

// ValidationError reports input that does not fit the current step.
// Prompt is the text to show before asking again.
type ValidationError struct {
	Step   Step
	Prompt string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid input for %s", e.Step)
	}
	return fmt.Sprintf("invalid input for %s: %v", e.Step, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
