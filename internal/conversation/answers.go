package conversation

import (
	"fmt"
	"time"

	"eventbot/internal/models"
)

// Answer is one validated input
type Answer struct {
	Step  Step
	Value any
}

// Answers holds validated inputs in the order they were given
type Answers []Answer

// Value returns the answer recorded for step
func (a Answers) Value(step Step) (any, bool) {
	for _, ans := range a {
		if ans.Step == step {
			return ans.Value, true
		}
	}
	return nil, false
}

func answerAs[T any](a Answers, step Step) (T, error) {
	var zero T
	v, ok := a.Value(step)
	if !ok {
		return zero, fmt.Errorf("missing answer for %s", step)
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("answer for %s has type %T", step, v)
	}
	return typed, nil
}

// Event builds the event described by a completed creation dialogue
func (a Answers) Event() (models.Event, error) {
	var (
		event models.Event
		err   error
	)
	if event.Name, err = answerAs[string](a, StepEventName); err != nil {
		return event, err
	}
	date, err := answerAs[time.Time](a, StepEventDate)
	if err != nil {
		return event, err
	}
	event.Date = models.Day(date)
	if event.Time, err = answerAs[string](a, StepEventTime); err != nil {
		return event, err
	}
	if event.LocationName, err = answerAs[string](a, StepLocationName); err != nil {
		return event, err
	}
	if event.Coordinates, err = answerAs[*models.Coordinates](a, StepLocationCoordinates); err != nil {
		return event, err
	}
	if event.MinLevel, err = answerAs[string](a, StepMinLevel); err != nil {
		return event, err
	}
	return event, nil
}

// Confirmation returns the action chosen at the confirm step
func (a Answers) Confirmation() (ConfirmAction, error) {
	return answerAs[ConfirmAction](a, StepConfirm)
}

// Registration builds the registration described by a completed registration dialogue
func (a Answers) Registration(userID, eventID int64) (models.Registration, error) {
	reg := models.Registration{UserID: userID, EventID: eventID}
	var err error
	if reg.ShortName, err = answerAs[string](a, StepShortName); err != nil {
		return reg, err
	}
	if reg.Drives, err = answerAs[int](a, StepDriveCount); err != nil {
		return reg, err
	}
	if reg.SafetyEquipment, err = answerAs[string](a, StepSafetyEquipment); err != nil {
		return reg, err
	}
	if reg.CarDetails, err = answerAs[string](a, StepCarDetails); err != nil {
		return reg, err
	}
	if reg.ConsentAccepted, err = answerAs[bool](a, StepConsent); err != nil {
		return reg, err
	}
	return reg, nil
}

// Template builds the template saved at the end of a creation dialogue
func (a Answers) Template() (models.Template, error) {
	event, err := a.Event()
	if err != nil {
		return models.Template{}, err
	}
	name, err := answerAs[string](a, StepTemplateName)
	if err != nil {
		return models.Template{}, err
	}
	return models.TemplateFrom(name, event), nil
}

// DriveChange returns the new drive count, or false when the user kept the old one
func (a Answers) DriveChange() (int, bool, error) {
	change, err := answerAs[DriveChange](a, StepUpdateDrives)
	if err != nil {
		return 0, false, err
	}
	if change == KeepDrives {
		return 0, false, nil
	}
	return int(change), true, nil
}
