package cover

import (
	"fmt"
)

type CommandKind int

const (
	CommandOpen CommandKind = iota + 1
	CommandClose
	CommandStop
	CommandSetPosition
	CommandSetTilt
	CommandOpenTilt
	CommandCloseTilt
	CommandStopTilt
)

func (k CommandKind) String() string {
	switch k {
	case CommandOpen:
		return "open"
	case CommandClose:
		return "close"
	case CommandStop:
		return "stop"
	case CommandSetPosition:
		return "set position"
	case CommandSetTilt:
		return "set tilt"
	case CommandOpenTilt:
		return "open tilt"
	case CommandCloseTilt:
		return "close tilt"
	case CommandStopTilt:
		return "stop tilt"
	}

	return "unknown command"
}

func (k CommandKind) isTilt() bool {
	return k == CommandSetTilt || k == CommandOpenTilt || k == CommandCloseTilt || k == CommandStopTilt
}

// Command is an application-issued intent. Value carries the percentage for
// CommandSetPosition and CommandSetTilt.
type Command struct {
	Kind  CommandKind
	Value int
}

func (c Command) String() string {
	if c.Kind == CommandSetPosition || c.Kind == CommandSetTilt {
		return fmt.Sprintf("%s to %d", c.Kind, c.Value)
	}

	return c.Kind.String()
}

// AuxWrite is an extra device write that must precede the command's own write.
type AuxWrite int

const (
	// AuxKeypadSwitchOff resets a latched wall switch event on micromodule
	// shutters.
	AuxKeypadSwitchOff AuxWrite = iota + 1
)
