package relay

import (
	"context"
	"sync"
	"time"
)

// NewRelayPair interlocks the up and down relays of one motor so they are
// never energized together.
func NewRelayPair(up, down Relay) (*PairedRelay, *PairedRelay) {
	l := &sync.Mutex{}

	return &PairedRelay{l, up}, &PairedRelay{l, down}
}

type PairedRelay struct {
	l *sync.Mutex
	r Relay
}

func (r *PairedRelay) EnableFor(ctx context.Context, duration time.Duration) error {
	r.l.Lock()
	defer r.l.Unlock()

	return r.r.EnableFor(ctx, duration)
}

func (r *PairedRelay) IsEnabled() bool {
	return r.r.IsEnabled()
}
