package relay

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type Relay interface {
	EnableFor(ctx context.Context, duration time.Duration) error
	IsEnabled() bool
}

// Pool limits how many relays may be energized at once.
type Pool chan struct{}

func NewPool(size int) Pool {
	if size <= 0 {
		return nil
	}
	return make(Pool, size)
}

type PoolProxy struct {
	r    Relay
	pool Pool
}

func NewPoolProxy(r Relay, pool Pool) *PoolProxy {
	return &PoolProxy{r: r, pool: pool}
}

func (p *PoolProxy) EnableFor(ctx context.Context, duration time.Duration) error {
	if p.pool == nil {
		return p.r.EnableFor(ctx, duration)
	}

	select {
	case p.pool <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() {
		<-p.pool
	}()

	return p.r.EnableFor(ctx, duration)
}

func (p *PoolProxy) IsEnabled() bool {
	return p.r.IsEnabled()
}

// Dumb only logs, for covers without wired relays.
type Dumb struct {
	Name string

	isEnabled bool
}

func (r *Dumb) EnableFor(ctx context.Context, duration time.Duration) error {
	r.isEnabled = true
	defer func() { r.isEnabled = false }()

	t := time.NewTimer(duration)
	defer t.Stop()

	logrus.Debugf("%s: dumb relay on for %s", r.Name, duration.String())

	select {
	case <-t.C:
		logrus.Debugf("%s: dumb relay off", r.Name)
		return nil
	case <-ctx.Done():
		logrus.Debugf("%s: dumb relay interrupted", r.Name)
		return ctx.Err()
	}
}

func (r *Dumb) IsEnabled() bool {
	return r.isEnabled
}
