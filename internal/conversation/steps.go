package conversation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"eventbot/internal/models"
)

// ConfirmAction is the admin's decision at the end of event creation
type ConfirmAction string

const (
	ConfirmPublish  ConfirmAction = "publish"
	ConfirmDraft    ConfirmAction = "draft"
	ConfirmCancel   ConfirmAction = "cancel"
	ConfirmTemplate ConfirmAction = "template"
)

// DriveChange is the answer to the drive count update; KeepDrives leaves it as is
type DriveChange int

const KeepDrives DriveChange = -1

type stepDef struct {
	prompt   string
	reprompt string
	parse    func(input string) (any, error)
}

var errEmpty = errors.New("empty input")

var steps = map[Step]stepDef{
	StepEventName: {
		prompt:   "Enter the event name:",
		reprompt: "The event name cannot be empty. Enter the event name:",
		parse:    parseText,
	},
	StepEventDate: {
		prompt:   "Enter the event date (YYYY-MM-DD):",
		reprompt: "Invalid date format. Please use YYYY-MM-DD\n\nExample: 2025-06-01",
		parse:    parseDate,
	},
	StepEventTime: {
		prompt:   "Enter the start time (HH:MM):",
		reprompt: "Invalid time format. Please use HH:MM\n\nExample: 09:00",
		parse:    parseClock,
	},
	StepLocationName: {
		prompt: "Enter the location name (or - to skip):",
		parse:  parseOptional,
	},
	StepLocationCoordinates: {
		prompt:   "Enter the location coordinates as lat,lon (or - to skip):",
		reprompt: "Invalid coordinates. Please use lat,lon\n\nExample: 50.3356,6.9475",
		parse:    parseCoordinates,
	},
	StepMinLevel: {
		prompt: "Enter the minimum level required (or - to skip):",
		parse:  parseOptional,
	},
	StepConfirm: {
		prompt:   "Publish the event now, save it as a draft, save it as a template, or cancel? (publish/draft/template/cancel)",
		reprompt: "Please answer publish, draft, template or cancel.",
		parse:    parseConfirm,
	},
	StepShortName: {
		prompt:   "Please provide your shortname for the registration.",
		reprompt: "The shortname cannot be empty. Please provide your shortname.",
		parse:    parseText,
	},
	StepDriveCount: {
		prompt:   "How many drives would you like to register for? (Reply with a number)",
		reprompt: "Please enter a valid number.",
		parse:    parseCount,
	},
	StepSafetyEquipment: {
		prompt:   "Do you have safety equipment? (Reply with 'yes' or 'no')",
		reprompt: "Please describe your safety equipment or reply 'no'.",
		parse:    parseText,
	},
	StepCarDetails: {
		prompt:   "Please provide your car details (make, model, year, etc.)",
		reprompt: "The car details cannot be empty. Please provide your car details.",
		parse:    parseText,
	},
	StepConsent: {
		prompt: "Please read and accept the consent form: 'I consent to participating in this event " +
			"and follow all safety regulations.' (Reply with 'yes' to accept)",
		reprompt: "Please reply 'yes' to accept or 'no' to decline.",
		parse:    parseYesNo,
	},
	StepTemplateName: {
		prompt:   "Enter template name:",
		reprompt: "The template name cannot be empty. Enter template name:",
		parse:    parseText,
	},
	StepUpdateDrives: {
		prompt:   "Would you like to update the number of drives? (Reply with the new number of drives or type 'no' to cancel)",
		reprompt: "Please enter a valid number.",
		parse:    parseDriveChange,
	},
}

// Prompt returns the question asked at step
func Prompt(step Step) (string, error) {
	def, ok := steps[step]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStep, step)
	}
	return def.prompt, nil
}

// Validate parses input for step. On failure it returns a *ValidationError.
func Validate(step Step, input string) (any, error) {
	def, ok := steps[step]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStep, step)
	}
	value, err := def.parse(input)
	if err != nil {
		prompt := def.reprompt
		if prompt == "" {
			prompt = def.prompt
		}
		return nil, &ValidationError{Step: step, Prompt: prompt, Err: err}
	}
	return value, nil
}

func parseText(input string) (any, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil, errEmpty
	}
	return s, nil
}

func isSkip(s string) bool {
	switch strings.ToLower(s) {
	case "", "-", "skip", "none":
		return true
	}
	return false
}

func parseOptional(input string) (any, error) {
	s := strings.TrimSpace(input)
	if isSkip(s) {
		return "", nil
	}
	return s, nil
}

func parseDate(input string) (any, error) {
	return time.Parse(models.DateLayout, strings.TrimSpace(input))
}

func parseClock(input string) (any, error) {
	t, err := time.Parse(models.TimeLayout, strings.TrimSpace(input))
	if err != nil {
		return nil, err
	}
	return t.Format(models.TimeLayout), nil
}

func parseCoordinates(input string) (any, error) {
	s := strings.TrimSpace(input)
	if isSkip(s) {
		return (*models.Coordinates)(nil), nil
	}
	return models.ParseCoordinates(s)
}

func parseCount(input string) (any, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

func parseYesNo(input string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return nil, fmt.Errorf("expected yes or no, got %q", input)
}

func parseConfirm(input string) (any, error) {
	switch a := ConfirmAction(strings.ToLower(strings.TrimSpace(input))); a {
	case ConfirmPublish, ConfirmDraft, ConfirmCancel, ConfirmTemplate:
		return a, nil
	}
	return nil, fmt.Errorf("unknown action %q", input)
}

func parseDriveChange(input string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "no", "n":
		return KeepDrives, nil
	}
	n, err := parseCount(input)
	if err != nil {
		return nil, err
	}
	return DriveChange(n.(int)), nil
}
