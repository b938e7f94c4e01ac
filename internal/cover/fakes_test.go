package cover

import (
	"context"
	"fmt"
	"sync"
)

type fakeSink struct {
	mu      sync.Mutex
	calls   []string
	err     map[string]error
	onWrite func(call string)
}

func (s *fakeSink) record(call string) error {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	onWrite := s.onWrite
	var err error
	if s.err != nil {
		for prefix, e := range s.err {
			if len(call) >= len(prefix) && call[:len(prefix)] == prefix {
				err = e
			}
		}
	}
	s.mu.Unlock()

	if onWrite != nil {
		onWrite(call)
	}
	return err
}

func (s *fakeSink) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.calls...)
}

func (s *fakeSink) SetLevel(_ context.Context, level float64) error {
	return s.record(fmt.Sprintf("set_level %.2f", level))
}

func (s *fakeSink) Stop(_ context.Context) error {
	return s.record("stop")
}

func (s *fakeSink) SetBlindsLevel(_ context.Context, level float64) error {
	return s.record(fmt.Sprintf("set_blinds_level %.2f", level))
}

func (s *fakeSink) StopBlinds(_ context.Context) error {
	return s.record("stop_blinds")
}

func (s *fakeSink) SetTargetAngle(_ context.Context, angle float64) error {
	return s.record(fmt.Sprintf("set_target_angle %.2f", angle))
}

func (s *fakeSink) SetKeypadEventType(_ context.Context, eventType EventType) error {
	return s.record("set_keypad_eventtype " + eventType.String())
}

type fakeFeed struct {
	mu           sync.Mutex
	handlers     map[string]SnapshotHandler
	unsubscribed []string
	err          error
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{handlers: map[string]SnapshotHandler{}}
}

func (f *fakeFeed) Subscribe(deviceID string, h SnapshotHandler) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[deviceID] = h

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, deviceID)
		f.unsubscribed = append(f.unsubscribed, deviceID)
	}, nil
}

func (f *fakeFeed) push(deviceID string, s Snapshot) bool {
	f.mu.Lock()
	h, ok := f.handlers[deviceID]
	f.mu.Unlock()

	if ok {
		h(s)
	}
	return ok
}
