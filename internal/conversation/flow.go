// Package conversation tracks where each user is in a multi-step dialogue.
//
// A Flow is a fixed sequence of Steps. Each step validates its input before
// the answer is recorded and the session moves on; invalid input leaves the
// session untouched so the same step can be prompted again.
package conversation

import "fmt"

// Flow identifies a dialogue
type Flow int

const (
	FlowCreateEvent Flow = iota + 1
	FlowRegister
	FlowSaveTemplate
	FlowUpdateDrives
)

func (f Flow) String() string {
	switch f {
	case FlowCreateEvent:
		return "create_event"
	case FlowRegister:
		return "register"
	case FlowSaveTemplate:
		return "save_template"
	case FlowUpdateDrives:
		return "update_drives"
	default:
		return fmt.Sprintf("flow(%d)", int(f))
	}
}

// Step identifies a position within a flow
type Step int

const (
	StepNone Step = iota

	// Event creation
	StepEventName
	StepEventDate
	StepEventTime
	StepLocationName
	StepLocationCoordinates
	StepMinLevel
	StepConfirm

	// Registration
	StepShortName
	StepDriveCount
	StepSafetyEquipment
	StepCarDetails
	StepConsent

	// Follow-ups
	StepTemplateName
	StepUpdateDrives

	StepDone
)

var stepNames = map[Step]string{
	StepNone:                "none",
	StepEventName:           "event_name",
	StepEventDate:           "event_date",
	StepEventTime:           "event_time",
	StepLocationName:        "location_name",
	StepLocationCoordinates: "location_coordinates",
	StepMinLevel:            "min_level",
	StepConfirm:             "confirm",
	StepShortName:           "shortname",
	StepDriveCount:          "drive_count",
	StepSafetyEquipment:     "safety_equipment",
	StepCarDetails:          "car_details",
	StepConsent:             "consent",
	StepTemplateName:        "template_name",
	StepUpdateDrives:        "update_drives",
	StepDone:                "done",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// transitions lists the steps of each flow in order. StepDone follows the last one.
var transitions = map[Flow][]Step{
	FlowCreateEvent: {
		StepEventName,
		StepEventDate,
		StepEventTime,
		StepLocationName,
		StepLocationCoordinates,
		StepMinLevel,
		StepConfirm,
	},
	FlowRegister: {
		StepShortName,
		StepDriveCount,
		StepSafetyEquipment,
		StepCarDetails,
		StepConsent,
	},
	// Continues a finished creation dialogue, see Tracker.Chain
	FlowSaveTemplate: {
		StepTemplateName,
	},
	FlowUpdateDrives: {
		StepUpdateDrives,
	},
}

// Steps returns the ordered steps of flow
func Steps(flow Flow) ([]Step, error) {
	steps, ok := transitions[flow]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, flow)
	}
	return append([]Step(nil), steps...), nil
}

// ParseStep returns the step named name
func ParseStep(name string) (Step, bool) {
	for step, n := range stepNames {
		if n == name {
			return step, true
		}
	}
	return StepNone, false
}

// FirstStep returns the entry step of flow
func FirstStep(flow Flow) (Step, error) {
	steps, ok := transitions[flow]
	if !ok {
		return StepNone, fmt.Errorf("%w: %s", ErrUnknownFlow, flow)
	}
	return steps[0], nil
}

// NextStep returns the step after current in flow, or StepDone after the last one
func NextStep(flow Flow, current Step) (Step, error) {
	steps, ok := transitions[flow]
	if !ok {
		return StepNone, fmt.Errorf("%w: %s", ErrUnknownFlow, flow)
	}
	for i, s := range steps {
		if s != current {
			continue
		}
		if i == len(steps)-1 {
			return StepDone, nil
		}
		return steps[i+1], nil
	}
	return StepNone, fmt.Errorf("%w: %s in %s", ErrUnknownStep, current, flow)
}
