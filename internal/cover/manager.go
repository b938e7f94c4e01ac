package cover

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Descriptor struct {
	ID    string
	Name  string
	Model Model
}

type registration struct {
	entity      *Entity
	unsubscribe func()
}

// Manager keeps exactly one Entity per device ID for as long as the device
// exists upstream. Tracker state is not persisted; a re-added device starts
// from its next snapshot.
type Manager struct {
	mu       sync.Mutex
	entities map[string]registration
}

func NewManager() *Manager {
	return &Manager{entities: map[string]registration{}}
}

// Add registers a discovered device and subscribes it to feed. Adding a
// device that is already known returns the existing Entity.
func (m *Manager) Add(d Descriptor, feed Feed, sink Sink) (*Entity, error) {
	if d.ID == "" {
		return nil, errors.Errorf("%s: device id is required", d.Name)
	}
	if d.Name == "" {
		d.Name = d.ID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.entities[d.ID]; ok {
		logrus.Debugf("%s: already registered", d.Name)
		return r.entity, nil
	}

	e := NewEntity(d.ID, d.Name, d.Model, sink)
	unsubscribe, err := feed.Subscribe(d.ID, e.HandleSnapshot)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: telemetry subscription failed", d.Name)
	}

	m.entities[d.ID] = registration{entity: e, unsubscribe: unsubscribe}
	logrus.Infof("%s: %s cover registered", d.Name, d.Model)

	return e, nil
}

func (m *Manager) Get(id string) (*Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.entities[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownDevice, "%s", id)
	}
	return r.entity, nil
}

// Remove unsubscribes the device and drops its tracker.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	r, ok := m.entities[id]
	delete(m.entities, id)
	m.mu.Unlock()

	if !ok {
		return errors.Wrapf(ErrUnknownDevice, "%s", id)
	}
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	logrus.Infof("%s: cover removed", r.entity.Name())

	return nil
}

func (m *Manager) List() []*Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]*Entity, 0, len(m.entities))
	for _, r := range m.entities {
		list = append(list, r.entity)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})

	return list
}

func (m *Manager) Close() {
	for _, e := range m.List() {
		if err := m.Remove(e.ID()); err != nil {
			logrus.Error(err)
		}
	}
}
