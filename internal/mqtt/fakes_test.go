package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/cover2mqtt/internal/cover"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type published struct {
	topic    string
	retained bool
	payload  string
}

type fakeClient struct {
	mu            sync.Mutex
	published     []published
	subscriptions map[string]paho.MessageHandler
	subscribed    []string
	unsubscribed  []string
	publishErr    error
}

func newFakeClient() *fakeClient {
	return &fakeClient{subscriptions: map[string]paho.MessageHandler{}}
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() paho.Token    { return newFakeToken(nil) }
func (c *fakeClient) Disconnect(uint)        {}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	var p string
	switch v := payload.(type) {
	case string:
		p = v
	case []byte:
		p = string(v)
	}
	c.published = append(c.published, published{topic: topic, retained: retained, payload: p})

	return newFakeToken(c.publishErr)
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscriptions[topic] = callback
	c.subscribed = append(c.subscribed, topic)
	return newFakeToken(nil)
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token {
	for topic := range filters {
		c.Subscribe(topic, 0, callback)
	}
	return newFakeToken(nil)
}

func (c *fakeClient) Unsubscribe(topics ...string) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, topic := range topics {
		delete(c.subscriptions, topic)
		c.unsubscribed = append(c.unsubscribed, topic)
	}
	return newFakeToken(nil)
}

func (c *fakeClient) AddRoute(string, paho.MessageHandler) {}

func (c *fakeClient) OptionsReader() paho.ClientOptionsReader {
	return paho.ClientOptionsReader{}
}

// deliver calls the handler subscribed to topic, reporting whether there was
// one.
func (c *fakeClient) deliver(topic, payload string) bool {
	c.mu.Lock()
	h, ok := c.subscriptions[topic]
	c.mu.Unlock()

	if !ok {
		return false
	}
	h(c, &fakeMessage{topic: topic, payload: []byte(payload)})
	return true
}

func (c *fakeClient) lastPublished(topic string) (published, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.published) - 1; i >= 0; i-- {
		if c.published[i].topic == topic {
			return c.published[i], true
		}
	}
	return published{}, false
}

func (c *fakeClient) publishedTo(topic string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var payloads []string
	for _, p := range c.published {
		if p.topic == topic {
			payloads = append(payloads, p.payload)
		}
	}
	return payloads
}

// fakeCover records calls made by the bridge.
type fakeCover struct {
	id    string
	name  string
	model cover.Model

	mu       sync.Mutex
	calls    []string
	handlers []cover.UpdateHandler
	err      error
}

func (c *fakeCover) ID() string                     { return c.id }
func (c *fakeCover) Name() string                   { return c.name }
func (c *fakeCover) Model() cover.Model             { return c.model }
func (c *fakeCover) Attributes() cover.Attributes   { return cover.Attributes{} }
func (c *fakeCover) OnUpdate(h cover.UpdateHandler) { c.handlers = append(c.handlers, h) }

func (c *fakeCover) record(call string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return c.err
}

func (c *fakeCover) Open(context.Context) error  { return c.record("open") }
func (c *fakeCover) Close(context.Context) error { return c.record("close") }
func (c *fakeCover) Stop(context.Context) error  { return c.record("stop") }
func (c *fakeCover) SetPosition(_ context.Context, p int) error {
	return c.record(fmt.Sprintf("position %d", p))
}
func (c *fakeCover) SetTilt(_ context.Context, t int) error {
	return c.record(fmt.Sprintf("tilt %d", t))
}
func (c *fakeCover) OpenTilt(context.Context) error  { return c.record("open_tilt") }
func (c *fakeCover) CloseTilt(context.Context) error { return c.record("close_tilt") }
func (c *fakeCover) StopTilt(context.Context) error  { return c.record("stop_tilt") }

func (c *fakeCover) recorded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type fakeStateless struct {
	levels []float64
}

func (s *fakeStateless) ResetLevel(level float64) error {
	s.levels = append(s.levels, level)
	return nil
}
