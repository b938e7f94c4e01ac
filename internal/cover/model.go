package cover

import (
	"strings"
)

// Model tags a device family with its own movement-reporting behavior.
type Model int

const (
	ModelUnknown Model = iota
	RollerBBL
	MicromoduleShutter
	MicromoduleAwning
	MicromoduleBlinds
)

// ParseModel maps a controller device model string to a Model.
func ParseModel(s string) Model {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BBL", "SHUTTER_CONTROL", "ROLLER_BBL":
		return RollerBBL
	case "MICROMODULE_SHUTTER":
		return MicromoduleShutter
	case "MICROMODULE_AWNING":
		return MicromoduleAwning
	case "MICROMODULE_BLINDS":
		return MicromoduleBlinds
	}

	return ModelUnknown
}

func (m Model) String() string {
	switch m {
	case RollerBBL:
		return "BBL"
	case MicromoduleShutter:
		return "MICROMODULE_SHUTTER"
	case MicromoduleAwning:
		return "MICROMODULE_AWNING"
	case MicromoduleBlinds:
		return "MICROMODULE_BLINDS"
	}

	return "UNKNOWN"
}

// DeviceClass is the Home Assistant cover device class.
func (m Model) DeviceClass() string {
	switch m {
	case MicromoduleAwning:
		return "awning"
	case MicromoduleBlinds:
		return "blind"
	}

	return "shutter"
}

// SupportsTilt reports whether the model has slats to tilt.
func (m Model) SupportsTilt() bool {
	return m == MicromoduleBlinds
}

type OperationState int

const (
	OperationUnknown OperationState = iota
	Stopped
	Moving
)

// ParseOperationState accepts the direction-specific states older
// controllers report as plain Moving.
func ParseOperationState(s string) OperationState {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STOPPED":
		return Stopped
	case "MOVING", "OPENING", "CLOSING":
		return Moving
	}

	return OperationUnknown
}

func (s OperationState) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Moving:
		return "MOVING"
	}

	return "UNKNOWN"
}

// EventType is the keypad event reported by micromodule shutters when the
// wired wall switch is operated.
type EventType int

const (
	EventUnknown EventType = iota
	SwitchOn
	SwitchOff
)

// ParseEventType maps a keypad event type string, EventUnknown otherwise.
func ParseEventType(s string) EventType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SWITCH_ON":
		return SwitchOn
	case "SWITCH_OFF":
		return SwitchOff
	}

	return EventUnknown
}

func (e EventType) String() string {
	switch e {
	case SwitchOn:
		return "SWITCH_ON"
	case SwitchOff:
		return "SWITCH_OFF"
	}

	return "UNKNOWN"
}

const (
	KeyCodeUp   = 1
	KeyCodeDown = 2
)
