package cover

import (
	"github.com/sirupsen/logrus"
)

// shutterTransition serves micromodule shutters. Their level is stale or
// jumps while travelling, so direction comes from the wall switch keypad when
// the move was started by hand, and from the commanded target otherwise. A
// fresh keypad event wins over the level-based guess when the two disagree.
func shutterTransition(t *Tracker, s Snapshot, levelKnown bool) {
	st := &t.state

	if ev := t.consumeKeypad(s.Keypad); ev != nil && !st.AppCommandPending {
		if t.onPhysicalTrigger(*ev, s, levelKnown) {
			return
		}
	}

	switch s.OperationState {
	case Stopped:
		t.settle(levelKnown)
	case Moving:
		st.SkipNextStopSettle = false
		if !levelKnown {
			t.clearDirection()
			return
		}
		if st.TargetPosition != nil {
			t.direction(*st.TargetPosition, st.CurrentPosition)
			return
		}
		t.direction(st.CurrentPosition, st.LastPosition)
	}
}

// onPhysicalTrigger starts a full travel for a wall switch press. The level
// reported with the press is the pre-move resting position.
func (t *Tracker) onPhysicalTrigger(ev KeypadEvent, s Snapshot, levelKnown bool) bool {
	st := &t.state

	var target int
	switch ev.KeyCode {
	case KeyCodeUp:
		target = 100
	case KeyCodeDown:
		target = 0
	default:
		logrus.Warnf("%s: ignoring keypad event with key code %d", t.name, ev.KeyCode)
		return false
	}

	if levelKnown && st.LastPosition != st.CurrentPosition {
		st.PreviousPosition = st.LastPosition
		st.LastPosition = st.CurrentPosition
	}
	t.setTarget(target)
	st.SkipNextStopSettle = false

	if s.OperationState != Moving {
		t.clearDirection()
		logrus.Debugf("%s: wall switch pressed, travel to %d pending", t.name, target)
		return true
	}

	st.IsOpening, st.IsClosing = target == 100, target == 0
	logrus.Debugf("%s: wall switch travel to %d", t.name, target)
	return true
}

// consumeKeypad remembers the event and returns it when it is a fresh switch
// on. An event is fresh when its timestamp, type or key changed since the last
// one seen.
func (t *Tracker) consumeKeypad(ev *KeypadEvent) *KeypadEvent {
	if ev == nil {
		return nil
	}
	st := &t.state

	prev, seen := st.keypad, st.keypadSeen
	st.keypad, st.keypadSeen = *ev, true

	if ev.Type != SwitchOn {
		return nil
	}
	if seen && prev == *ev {
		return nil
	}

	e := *ev
	return &e
}
