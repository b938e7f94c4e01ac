package cover

import (
	"math"
)

// Tilt is tracked for blinds only and never touches the vertical axis flags.

func (t *Tracker) onTiltCommand(cmd Command) {
	st := &t.state

	var angle float64
	switch cmd.Kind {
	case CommandOpenTilt:
		angle = 0
	case CommandCloseTilt:
		angle = 1
	case CommandSetTilt:
		angle = tiltToAngle(cmd.Value)
	case CommandStopTilt:
		st.TargetAngle = nil
		return
	}

	st.TargetAngle = &angle
}

func (t *Tracker) trackTilt(s Snapshot) {
	if !t.model.SupportsTilt() || s.CurrentAngle == nil {
		return
	}

	tilt, ok := angleToTilt(*s.CurrentAngle)
	if !ok {
		return
	}
	t.state.CurrentTilt = &tilt
}

func tiltToAngle(tilt int) float64 {
	return 1 - float64(clampPercent(tilt))/100
}

func angleToTilt(angle float64) (int, bool) {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return 0, false
	}
	return levelToPercent(1 - math.Max(0, math.Min(1, angle)))
}
