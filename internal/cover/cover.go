package cover

import (
	"context"
)

const (
	OpenState    = "open"
	ClosedState  = "closed"
	OpeningState = "opening"
	ClosingState = "closing"
)

type UpdateHandler func(attrs Attributes)

type Cover interface {
	ID() string
	Name() string
	Model() Model

	Attributes() Attributes

	OnUpdate(h UpdateHandler)

	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Stop(ctx context.Context) error
	SetPosition(ctx context.Context, position int) error
}

// TiltCover is a Cover with an independent slat axis. Only blinds accept the
// tilt calls, other models fail with ErrUnsupported.
type TiltCover interface {
	Cover

	SetTilt(ctx context.Context, tilt int) error
	OpenTilt(ctx context.Context) error
	CloseTilt(ctx context.Context) error
	StopTilt(ctx context.Context) error
}

// Stateless is implemented by devices that cannot report their own level
// after a restart and need it restored from outside.
type Stateless interface {
	ResetLevel(level float64) error
}
