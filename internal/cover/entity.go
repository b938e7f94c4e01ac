package cover

import (
	"sync"
)

// Entity owns the tracker of one device and serializes telemetry and
// commands on it. Device writes happen outside the lock.
type Entity struct {
	*Dispatcher

	id    string
	name  string
	model Model

	mu       sync.Mutex
	tracker  *Tracker
	attrs    Attributes
	handlers []UpdateHandler

	// notifyMu keeps handler calls in the order the attributes were derived
	notifyMu sync.Mutex
}

func NewEntity(id, name string, model Model, sink Sink) *Entity {
	e := &Entity{
		id:      id,
		name:    name,
		model:   model,
		tracker: NewTracker(name, model),
	}
	e.attrs = e.tracker.Attributes()
	e.Dispatcher = NewDispatcher(name, model, e, sink)

	return e
}

func (e *Entity) ID() string {
	return e.id
}

func (e *Entity) Name() string {
	return e.name
}

func (e *Entity) Model() Model {
	return e.model
}

func (e *Entity) Attributes() Attributes {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.attrs
}

// TrackerState returns a copy of the tracker state.
func (e *Entity) TrackerState() TrackerState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.tracker.State()
}

// OnUpdate adds a handler for published attributes. Handlers run in order
// and must not call back into the Entity.
func (e *Entity) OnUpdate(h UpdateHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.handlers = append(e.handlers, h)
}

// HandleSnapshot is the telemetry callback. Every snapshot is published,
// repeated ones included.
func (e *Entity) HandleSnapshot(s Snapshot) {
	e.mu.Lock()
	e.attrs = e.tracker.OnSnapshot(s)
	e.notify(true)
}

func (e *Entity) OnCommandIssued(cmd Command) []AuxWrite {
	e.mu.Lock()
	aux := e.tracker.OnCommandIssued(cmd)
	attrs := e.tracker.Attributes()
	changed := !attrs.Equal(e.attrs)
	e.attrs = attrs
	e.notify(changed)

	return aux
}

// notify must be called with mu held and releases it.
func (e *Entity) notify(publish bool) {
	if !publish {
		e.mu.Unlock()
		return
	}

	attrs := e.attrs
	handlers := make([]UpdateHandler, len(e.handlers))
	copy(handlers, e.handlers)

	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	e.mu.Unlock()

	for _, h := range handlers {
		h(attrs)
	}
}
