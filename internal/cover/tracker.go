package cover

import (
	"strconv"

	"github.com/sirupsen/logrus"
)

// TrackerState is the state owned by one Tracker.
type TrackerState struct {
	CurrentPosition  int
	LastPosition     int
	PreviousPosition int
	TargetPosition   *int

	IsOpening bool
	IsClosing bool

	// SkipNextStopSettle keeps the first Stopped report after a command from
	// being recorded as a resting position, it may echo the pre-command state.
	SkipNextStopSettle bool
	AppCommandPending  bool

	OperationState OperationState
	Seeded         bool

	CurrentTilt *int
	TargetAngle *float64

	keypad     KeypadEvent
	keypadSeen bool
}

type transition func(t *Tracker, s Snapshot, levelKnown bool)

var transitions = map[Model]transition{
	RollerBBL:          rollerTransition,
	MicromoduleAwning:  rollerTransition,
	MicromoduleBlinds:  rollerTransition,
	MicromoduleShutter: shutterTransition,
}

// Tracker infers the movement direction and true position of one cover from
// sparse snapshots and the commands issued to it.
//
// A Tracker is not safe for concurrent use. OnCommandIssued and OnSnapshot
// must be serialized per device.
type Tracker struct {
	name  string
	model Model
	step  transition

	state TrackerState
}

func NewTracker(name string, model Model) *Tracker {
	step, ok := transitions[model]
	if !ok {
		logrus.Warnf("%s: unknown cover model %s, tracking as %s", name, model, RollerBBL)
		step = rollerTransition
	}

	return &Tracker{name: name, model: model, step: step}
}

func (t *Tracker) Model() Model {
	return t.model
}

// State returns a copy of the tracker state.
func (t *Tracker) State() TrackerState {
	s := t.state
	if s.TargetPosition != nil {
		v := *s.TargetPosition
		s.TargetPosition = &v
	}
	if s.CurrentTilt != nil {
		v := *s.CurrentTilt
		s.CurrentTilt = &v
	}
	if s.TargetAngle != nil {
		v := *s.TargetAngle
		s.TargetAngle = &v
	}
	return s
}

// OnCommandIssued records an application command. It must run before the
// device write so that telemetry caused by the write is attributed to it. The
// returned writes have to be sent ahead of the command's own write.
func (t *Tracker) OnCommandIssued(cmd Command) []AuxWrite {
	st := &t.state

	if cmd.Kind.isTilt() {
		t.onTiltCommand(cmd)
		return nil
	}

	if st.Seeded && st.OperationState == Stopped && st.CurrentPosition != st.LastPosition {
		// a suppressed stop left the resting position unsettled, travel starts here
		st.PreviousPosition = st.LastPosition
		st.LastPosition = st.CurrentPosition
	}

	st.AppCommandPending = true
	st.SkipNextStopSettle = true

	switch cmd.Kind {
	case CommandOpen:
		t.setTarget(100)
	case CommandClose:
		t.setTarget(0)
	case CommandSetPosition:
		t.setTarget(clampPercent(cmd.Value))
	case CommandStop:
		st.TargetPosition = nil
		st.IsOpening, st.IsClosing = false, false
		if t.model == MicromoduleShutter {
			return []AuxWrite{AuxKeypadSwitchOff}
		}
	}

	logrus.Debugf("%s: %s issued, target %s", t.name, cmd, formatTarget(st.TargetPosition))
	return nil
}

// OnSnapshot applies one telemetry push and returns the derived attributes.
// Delivering the same snapshot twice yields the same attributes.
func (t *Tracker) OnSnapshot(s Snapshot) Attributes {
	st := &t.state

	if s.Model != ModelUnknown && s.Model != t.model {
		logrus.Debugf("%s: snapshot reports model %s, tracking as %s", t.name, s.Model, t.model)
	}

	pos, levelKnown := levelToPercent(s.Level)
	if !levelKnown {
		logrus.Warnf("%s: unreadable level %v, keeping position %d", t.name, s.Level, st.CurrentPosition)
		pos = st.CurrentPosition
	}

	st.OperationState = s.OperationState
	t.trackTilt(s)

	if !st.Seeded {
		t.seed(s, pos, levelKnown)
		return t.Attributes()
	}

	st.CurrentPosition = pos
	t.step(t, s, levelKnown)

	logrus.Debugf("%s: %s at %d, opening %t, closing %t, last %d",
		t.name, s.OperationState, st.CurrentPosition, st.IsOpening, st.IsClosing, st.LastPosition)

	return t.Attributes()
}

func (t *Tracker) Attributes() Attributes {
	st := &t.state
	a := Attributes{
		Position:       clampPercent(st.CurrentPosition),
		IsOpening:      st.IsOpening,
		IsClosing:      st.IsClosing,
		IsClosed:       t.isClosed(),
		OperationState: st.OperationState,
	}
	if t.model.SupportsTilt() && st.CurrentTilt != nil {
		v := *st.CurrentTilt
		a.Tilt = &v
	}
	return a
}

// isClosed is strict: a cover moving or in an unknown state is never closed.
func (t *Tracker) isClosed() bool {
	st := &t.state
	if !st.Seeded || st.OperationState != Stopped || st.CurrentPosition != 0 {
		return false
	}
	if t.model == MicromoduleShutter {
		return true
	}
	return st.LastPosition == 0
}

// seed takes the first snapshot as the baseline. Without a baseline there is
// no direction to report.
func (t *Tracker) seed(s Snapshot, pos int, levelKnown bool) {
	st := &t.state
	if !levelKnown {
		return
	}

	st.Seeded = true
	st.CurrentPosition = pos
	st.LastPosition = pos
	st.PreviousPosition = pos
	st.IsOpening, st.IsClosing = false, false
	t.consumeKeypad(s.Keypad)

	logrus.Debugf("%s: baseline position %d", t.name, pos)
}

// settle handles a Stopped report.
func (t *Tracker) settle(levelKnown bool) {
	st := &t.state
	st.IsOpening, st.IsClosing = false, false

	if st.SkipNextStopSettle {
		st.SkipNextStopSettle = false
		if st.TargetPosition == nil {
			st.AppCommandPending = false
		}
		logrus.Debugf("%s: stop at %d not settled, waiting for next stop", t.name, st.CurrentPosition)
		return
	}
	if !levelKnown {
		return
	}

	if st.LastPosition != st.CurrentPosition {
		st.PreviousPosition = st.LastPosition
		st.LastPosition = st.CurrentPosition
	}
	st.TargetPosition = nil
	st.AppCommandPending = false
}

// direction compares a position against a reference. Equal values keep the
// previous direction so noisy repeated reads do not flicker.
func (t *Tracker) direction(position, reference int) {
	st := &t.state
	switch {
	case position > reference:
		st.IsOpening, st.IsClosing = true, false
	case position < reference:
		st.IsOpening, st.IsClosing = false, true
	}
}

func (t *Tracker) clearDirection() {
	t.state.IsOpening, t.state.IsClosing = false, false
}

func (t *Tracker) setTarget(v int) {
	t.state.TargetPosition = &v
}

// rollerTransition serves devices that report live intermediate levels.
func rollerTransition(t *Tracker, s Snapshot, levelKnown bool) {
	st := &t.state

	switch s.OperationState {
	case Stopped:
		t.settle(levelKnown)
	case Moving:
		// the device has started, the next stop is genuine
		st.SkipNextStopSettle = false
		if !levelKnown {
			t.clearDirection()
			return
		}
		t.direction(st.CurrentPosition, st.LastPosition)
	}
}

func formatTarget(target *int) string {
	if target == nil {
		return "none"
	}
	return strconv.Itoa(*target)
}
