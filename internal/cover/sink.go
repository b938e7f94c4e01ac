package cover

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrUnsupported   = errors.New("operation not supported by device")
	ErrUnknownDevice = errors.New("unknown device")
)

// Sink writes to the device hardware. Calls may block; timeouts and retries
// are up to the implementation.
type Sink interface {
	SetLevel(ctx context.Context, level float64) error
	Stop(ctx context.Context) error

	SetBlindsLevel(ctx context.Context, level float64) error
	StopBlinds(ctx context.Context) error
	SetTargetAngle(ctx context.Context, angle float64) error

	SetKeypadEventType(ctx context.Context, eventType EventType) error
}

type SnapshotHandler func(s Snapshot)

// Feed delivers device snapshots at least once. Delivery order within a burst
// is not guaranteed.
type Feed interface {
	Subscribe(deviceID string, h SnapshotHandler) (unsubscribe func(), err error)
}
