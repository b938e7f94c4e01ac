package relay

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/jkaflik/cover2mqtt/internal/cover"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Device is a roller cover driven by an up and a down relay. The level is
// derived from travel time and reported live while moving, the way a BBL
// roller controller reports it, so the device serves as its own Sink and
// Feed.
type Device struct {
	id          string
	rUp         Relay
	rDown       Relay
	timeToClose time.Duration

	mu       sync.Mutex
	level    float64
	state    cover.OperationState
	handlers map[uint64]cover.SnapshotHandler
	nextID   uint64

	// gen identifies the current move; updates from older moves are dropped
	gen                  uint64
	cancelCurrentContext context.CancelFunc

	emitMu sync.Mutex
}

func NewDevice(id string, up Relay, down Relay, timeToClose time.Duration) *Device {
	return &Device{
		id:          id,
		rUp:         up,
		rDown:       down,
		timeToClose: timeToClose,
		state:       cover.Stopped,
		handlers:    map[uint64]cover.SnapshotHandler{},
	}
}

func (d *Device) ID() string {
	return d.id
}

func (d *Device) Snapshot() cover.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.snapshotLocked()
}

// Subscribe delivers the current state right away and every change after.
func (d *Device) Subscribe(deviceID string, h cover.SnapshotHandler) (func(), error) {
	if deviceID != d.id {
		return nil, errors.Wrapf(cover.ErrUnknownDevice, "%s: relay device cannot serve %s", d.id, deviceID)
	}

	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.handlers[id] = h
	s := d.snapshotLocked()
	d.mu.Unlock()

	h(s)

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.handlers, id)
	}, nil
}

// ResetLevel sets the level of a resting cover, e.g. restored after restart.
func (d *Device) ResetLevel(level float64) error {
	if math.IsNaN(level) || level < 0 || level > 1 {
		return errors.Errorf("%s: level %v is out of range 0..1", d.id, level)
	}

	d.mu.Lock()
	if d.state == cover.Moving {
		d.mu.Unlock()
		return errors.Errorf("%s: cannot reset level while moving", d.id)
	}
	d.level = level
	d.state = cover.Stopped
	d.emitLocked()

	logrus.Infof("%s: level reset to %.2f", d.id, level)
	return nil
}

func (d *Device) SetLevel(ctx context.Context, level float64) error {
	if math.IsNaN(level) {
		return errors.Errorf("%s: level is not a number", d.id)
	}
	level = math.Max(0, math.Min(1, level))
	logrus.Infof("%s: set level to %.2f", d.id, level)

	d.mu.Lock()
	ctx, gen := d.retainContextLocked(ctx)
	from := d.level

	if math.Abs(from-level) < 0.005 {
		logrus.Debugf("%s: already at level %.2f", d.id, level)
		d.cancelCurrentContext()
		d.cancelCurrentContext = nil
		d.state = cover.Stopped
		d.emitLocked()
		return nil
	}
	d.mu.Unlock()

	go d.move(ctx, gen, from, level)

	return nil
}

func (d *Device) Stop(_ context.Context) error {
	logrus.Infof("%s: stop", d.id)

	d.mu.Lock()
	if d.cancelCurrentContext != nil {
		d.cancelCurrentContext()
		d.cancelCurrentContext = nil
	}
	d.gen++
	d.state = cover.Stopped
	d.emitLocked()

	return nil
}

func (d *Device) SetBlindsLevel(context.Context, float64) error {
	return errors.Wrapf(cover.ErrUnsupported, "%s: relay cover has no blinds level", d.id)
}

func (d *Device) StopBlinds(context.Context) error {
	return errors.Wrapf(cover.ErrUnsupported, "%s: relay cover has no blinds", d.id)
}

func (d *Device) SetTargetAngle(context.Context, float64) error {
	return errors.Wrapf(cover.ErrUnsupported, "%s: relay cover has no slats", d.id)
}

func (d *Device) SetKeypadEventType(context.Context, cover.EventType) error {
	return errors.Wrapf(cover.ErrUnsupported, "%s: relay cover has no keypad", d.id)
}

func (d *Device) retainContextLocked(parent context.Context) (context.Context, uint64) {
	if d.cancelCurrentContext != nil {
		logrus.Debugf("%s: found previous move, cancel", d.id)
		d.cancelCurrentContext()
	}

	var ctx context.Context
	ctx, d.cancelCurrentContext = context.WithCancel(parent)
	d.gen++

	return ctx, d.gen
}

func (d *Device) move(ctx context.Context, gen uint64, from, to float64) {
	timeToMove := time.Duration(math.Abs(to-from) * float64(d.timeToClose))
	logrus.Debugf("%s: move from %.2f to %.2f (%s)", d.id, from, to, timeToMove.String())

	relay := d.rDown
	if to > from {
		relay = d.rUp
	}

	if !d.update(gen, from, cover.Moving) {
		return
	}

	done := make(chan struct{})
	go d.trackLevelDuringMove(ctx, gen, to, done)

	err := relay.EnableFor(ctx, timeToMove)
	close(done)

	if ctx.Err() != nil {
		logrus.Infof("%s: move to %.2f interrupted", d.id, to)
		return
	}
	if err != nil {
		logrus.Errorf("%s: enable relay error: %s", d.id, err)
		d.update(gen, d.Snapshot().Level, cover.Stopped)
		return
	}

	if d.update(gen, to, cover.Stopped) {
		logrus.Infof("%s: reached level %.2f", d.id, to)
	}
}

// trackLevelDuringMove advances the level one percent per tick.
func (d *Device) trackLevelDuringMove(ctx context.Context, gen uint64, to float64, done <-chan struct{}) {
	step := d.timeToClose / 100
	if step <= 0 {
		step = time.Millisecond
	}
	every := time.NewTicker(step)
	defer every.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-every.C:
			d.mu.Lock()
			if d.gen != gen || d.state != cover.Moving {
				d.mu.Unlock()
				return
			}
			if d.level < to {
				d.level = math.Min(to, d.level+0.01)
			} else {
				d.level = math.Max(to, d.level-0.01)
			}
			logrus.Tracef("%s: level %.2f", d.id, d.level)
			d.emitLocked()
		}
	}
}

// update applies a move state unless a newer move took over.
func (d *Device) update(gen uint64, level float64, state cover.OperationState) bool {
	d.mu.Lock()
	if d.gen != gen {
		d.mu.Unlock()
		return false
	}
	d.level = level
	d.state = state
	if state == cover.Stopped {
		d.cancelCurrentContext = nil
	}
	d.emitLocked()

	return true
}

func (d *Device) snapshotLocked() cover.Snapshot {
	return cover.Snapshot{
		Level:          d.level,
		OperationState: d.state,
		Model:          cover.RollerBBL,
	}
}

// emitLocked must be called with mu held and releases it.
func (d *Device) emitLocked() {
	s := d.snapshotLocked()
	handlers := make([]cover.SnapshotHandler, 0, len(d.handlers))
	for _, h := range d.handlers {
		handlers = append(handlers, h)
	}

	d.emitMu.Lock()
	defer d.emitMu.Unlock()
	d.mu.Unlock()

	for _, h := range handlers {
		h(s)
	}
}
