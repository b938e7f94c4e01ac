package relay

import (
	"context"
	"time"

	"github.com/racerxdl/go-mcp23017"
	"github.com/sirupsen/logrus"
)

type SetPin interface {
	High() error
	Low() error
}

type Mcp23017Pin struct {
	device *mcp23017.Device
	pin    uint8
}

func NewMcp23017Pin(device *mcp23017.Device, pin uint8) (*Mcp23017Pin, error) {
	p := &Mcp23017Pin{device: device, pin: pin}
	if err := p.device.PinMode(pin, mcp23017.OUTPUT); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mcp23017Pin) High() error {
	return m.device.DigitalWrite(m.pin, mcp23017.HIGH)
}

func (m *Mcp23017Pin) Low() error {
	return m.device.DigitalWrite(m.pin, mcp23017.LOW)
}

// Wired is a relay switched through a GPIO pin. Relay boards are usually
// active low, NormalClosed flips that.
type Wired struct {
	Pin          SetPin
	NormalClosed bool

	isEnabled bool
}

// EnableFor returns nil when ctx ends early; callers check ctx themselves.
func (p *Wired) EnableFor(ctx context.Context, duration time.Duration) error {
	t := time.NewTimer(duration)
	defer t.Stop()

	if err := p.enable(); err != nil {
		return err
	}
	p.isEnabled = true
	defer func() {
		if err := p.disable(); err != nil {
			logrus.Errorf("wired relay release failed: %s", err)
		}
		p.isEnabled = false
	}()

	select {
	case <-t.C:
	case <-ctx.Done():
		logrus.Debug("wired relay interrupted")
	}

	return nil
}

func (p *Wired) IsEnabled() bool {
	return p.isEnabled
}

func (p *Wired) enable() error {
	if !p.NormalClosed {
		return p.Pin.Low()
	}

	return p.Pin.High()
}

func (p *Wired) disable() error {
	if !p.NormalClosed {
		return p.Pin.High()
	}

	return p.Pin.Low()
}
