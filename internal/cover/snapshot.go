package cover

import (
	"math"
)

type KeypadEvent struct {
	Type    EventType
	KeyCode int
	// Timestamp is the controller event time, zero when not reported.
	Timestamp int64
}

// Snapshot is the latest known raw state of one cover device as delivered by
// a telemetry push.
type Snapshot struct {
	// Level is 0.0 (closed) to 1.0 (open). NaN means the device did not
	// report a readable level.
	Level          float64
	OperationState OperationState
	Model          Model

	// Keypad is reported by micromodule shutters only.
	Keypad *KeypadEvent
	// CurrentAngle is reported by blinds only, 0.0 is fully open slats.
	CurrentAngle *float64
}

// Attributes are the values published for a cover.
type Attributes struct {
	Position       int
	IsOpening      bool
	IsClosing      bool
	IsClosed       bool
	Tilt           *int
	OperationState OperationState
}

func (a Attributes) State() string {
	switch {
	case a.IsOpening:
		return OpeningState
	case a.IsClosing:
		return ClosingState
	case a.IsClosed:
		return ClosedState
	}

	return OpenState
}

func (a Attributes) Equal(b Attributes) bool {
	if a.Position != b.Position ||
		a.IsOpening != b.IsOpening ||
		a.IsClosing != b.IsClosing ||
		a.IsClosed != b.IsClosed ||
		a.OperationState != b.OperationState {
		return false
	}
	if a.Tilt == nil || b.Tilt == nil {
		return a.Tilt == nil && b.Tilt == nil
	}

	return *a.Tilt == *b.Tilt
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// levelToPercent converts a 0..1 level to a 0..100 value. Out of range levels
// are clamped first; NaN and infinities are reported as unreadable.
func levelToPercent(level float64) (int, bool) {
	if math.IsNaN(level) || math.IsInf(level, 0) {
		return 0, false
	}
	level = math.Max(0, math.Min(1, level))

	return clampPercent(int(math.Round(level * 100))), true
}
