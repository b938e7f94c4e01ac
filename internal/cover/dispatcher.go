package cover

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type commandIssuer interface {
	OnCommandIssued(cmd Command) []AuxWrite
}

// Dispatcher turns cover intents into device writes. The issuer always learns
// about a command before the sink is written to.
type Dispatcher struct {
	name   string
	model  Model
	issuer commandIssuer
	sink   Sink
}

func NewDispatcher(name string, model Model, issuer commandIssuer, sink Sink) *Dispatcher {
	return &Dispatcher{name: name, model: model, issuer: issuer, sink: sink}
}

func (d *Dispatcher) Open(ctx context.Context) error {
	return d.dispatch(ctx, Command{Kind: CommandOpen})
}

func (d *Dispatcher) Close(ctx context.Context) error {
	return d.dispatch(ctx, Command{Kind: CommandClose})
}

func (d *Dispatcher) Stop(ctx context.Context) error {
	return d.dispatch(ctx, Command{Kind: CommandStop})
}

// SetPosition moves to position percent, clamped to 0..100.
func (d *Dispatcher) SetPosition(ctx context.Context, position int) error {
	return d.dispatch(ctx, Command{Kind: CommandSetPosition, Value: clampPercent(position)})
}

// SetTilt turns the slats to tilt percent, clamped to 0..100.
func (d *Dispatcher) SetTilt(ctx context.Context, tilt int) error {
	return d.dispatch(ctx, Command{Kind: CommandSetTilt, Value: clampPercent(tilt)})
}

func (d *Dispatcher) OpenTilt(ctx context.Context) error {
	return d.dispatch(ctx, Command{Kind: CommandOpenTilt})
}

func (d *Dispatcher) CloseTilt(ctx context.Context) error {
	return d.dispatch(ctx, Command{Kind: CommandCloseTilt})
}

func (d *Dispatcher) StopTilt(ctx context.Context) error {
	return d.dispatch(ctx, Command{Kind: CommandStopTilt})
}

func (d *Dispatcher) dispatch(ctx context.Context, cmd Command) error {
	if cmd.Kind.isTilt() && !d.model.SupportsTilt() {
		return errors.Wrapf(ErrUnsupported, "%s: %s", d.name, cmd)
	}

	logrus.Infof("%s: %s", d.name, cmd)

	for _, w := range d.issuer.OnCommandIssued(cmd) {
		if err := d.writeAux(ctx, w); err != nil {
			// a failed guard must not hold back the command itself
			logrus.Errorf("%s: auxiliary write before %s failed: %s", d.name, cmd, err)
		}
	}

	if err := d.write(ctx, cmd); err != nil {
		return errors.Wrapf(err, "%s: %s failed", d.name, cmd)
	}

	return nil
}

func (d *Dispatcher) write(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CommandOpen:
		return d.setLevel(ctx, 1)
	case CommandClose:
		return d.setLevel(ctx, 0)
	case CommandSetPosition:
		return d.setLevel(ctx, float64(cmd.Value)/100)
	case CommandStop:
		return d.sink.Stop(ctx)
	case CommandSetTilt:
		return d.sink.SetTargetAngle(ctx, tiltToAngle(cmd.Value))
	case CommandOpenTilt:
		return d.sink.SetTargetAngle(ctx, 0)
	case CommandCloseTilt:
		return d.sink.SetTargetAngle(ctx, 1)
	case CommandStopTilt:
		return d.sink.StopBlinds(ctx)
	}

	return errors.Errorf("unsupported command %d", cmd.Kind)
}

// setLevel drives the vertical axis. Blinds take it through the blinds level.
func (d *Dispatcher) setLevel(ctx context.Context, level float64) error {
	if d.model == MicromoduleBlinds {
		return d.sink.SetBlindsLevel(ctx, level)
	}
	return d.sink.SetLevel(ctx, level)
}

func (d *Dispatcher) writeAux(ctx context.Context, w AuxWrite) error {
	switch w {
	case AuxKeypadSwitchOff:
		return d.sink.SetKeypadEventType(ctx, SwitchOff)
	}

	return errors.Errorf("unsupported auxiliary write %d", w)
}
