package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/cover2mqtt/internal/cover"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const DefaultGatewayTopicPrefix = "shc"

// deviceState is the JSON a controller gateway publishes on
// <prefix>/<device id>/state.
type deviceState struct {
	Level          *float64 `json:"level"`
	OperationState string   `json:"operationState"`
	DeviceModel    string   `json:"deviceModel"`
	EventType      string   `json:"eventType,omitempty"`
	KeyCode        int      `json:"keyCode,omitempty"`
	EventTimestamp int64    `json:"eventTimestamp,omitempty"`
	CurrentAngle   *float64 `json:"currentAngle,omitempty"`
}

// deviceWrite is the JSON accepted on <prefix>/<device id>/set.
type deviceWrite struct {
	Level       *float64 `json:"level,omitempty"`
	BlindsLevel *float64 `json:"blindsLevel,omitempty"`
	TargetAngle *float64 `json:"targetAngle,omitempty"`
	Operation   string   `json:"operation,omitempty"`
	EventType   string   `json:"eventType,omitempty"`
}

const (
	operationStop       = "stop"
	operationStopBlinds = "stopBlinds"
)

func decodeSnapshot(payload []byte) (cover.Snapshot, error) {
	var st deviceState
	if err := json.Unmarshal(payload, &st); err != nil {
		return cover.Snapshot{}, errors.Wrap(err, "malformed device state")
	}

	s := cover.Snapshot{
		Level:          math.NaN(),
		OperationState: cover.ParseOperationState(st.OperationState),
		Model:          cover.ParseModel(st.DeviceModel),
		CurrentAngle:   st.CurrentAngle,
	}
	if st.Level != nil {
		s.Level = *st.Level
	}
	if st.EventType != "" {
		s.Keypad = &cover.KeypadEvent{
			Type:      cover.ParseEventType(st.EventType),
			KeyCode:   st.KeyCode,
			Timestamp: st.EventTimestamp,
		}
	}

	return s, nil
}

type feedSubscription struct {
	handlers map[uint64]cover.SnapshotHandler
}

// Feed receives device snapshots from a controller gateway over MQTT.
type Feed struct {
	mqtt   paho.Client
	prefix string

	mu     sync.Mutex
	subs   map[string]*feedSubscription
	nextID uint64
}

func NewFeed(client paho.Client, prefix string) *Feed {
	if prefix == "" {
		prefix = DefaultGatewayTopicPrefix
	}
	return &Feed{mqtt: client, prefix: prefix, subs: map[string]*feedSubscription{}}
}

func (f *Feed) stateTopic(deviceID string) string {
	return fmt.Sprintf("%s/%s/state", f.prefix, deviceID)
}

func (f *Feed) Subscribe(deviceID string, h cover.SnapshotHandler) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub, ok := f.subs[deviceID]
	if !ok {
		topic := f.stateTopic(deviceID)
		if token := f.mqtt.Subscribe(topic, 0, f.onStateHandler(deviceID)); token.Wait() && token.Error() != nil {
			return nil, errors.Wrapf(token.Error(), "%s: MQTT state topic subscription failed", deviceID)
		}
		logrus.Infof("%s: MQTT state topic %s subscribed", deviceID, topic)

		sub = &feedSubscription{handlers: map[uint64]cover.SnapshotHandler{}}
		f.subs[deviceID] = sub
	}

	id := f.nextID
	f.nextID++
	sub.handlers[id] = h

	return func() { f.unsubscribe(deviceID, id) }, nil
}

// Resubscribe restores the state subscriptions after a reconnect.
func (f *Feed) Resubscribe() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for deviceID := range f.subs {
		if token := f.mqtt.Subscribe(f.stateTopic(deviceID), 0, f.onStateHandler(deviceID)); token.Wait() && token.Error() != nil {
			return errors.Wrapf(token.Error(), "%s: MQTT state topic resubscription failed", deviceID)
		}
	}

	return nil
}

func (f *Feed) unsubscribe(deviceID string, id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub, ok := f.subs[deviceID]
	if !ok {
		return
	}
	delete(sub.handlers, id)
	if len(sub.handlers) > 0 {
		return
	}

	delete(f.subs, deviceID)
	if token := f.mqtt.Unsubscribe(f.stateTopic(deviceID)); token.Wait() && token.Error() != nil {
		logrus.Errorf("%s: MQTT state topic unsubscribe failed: %s", deviceID, token.Error())
	}
}

func (f *Feed) onStateHandler(deviceID string) paho.MessageHandler {
	return func(c paho.Client, msg paho.Message) {
		s, err := decodeSnapshot(msg.Payload())
		if err != nil {
			logrus.Warnf("%s: %s", deviceID, err)
			return
		}

		f.mu.Lock()
		var handlers []cover.SnapshotHandler
		if sub, ok := f.subs[deviceID]; ok {
			for _, h := range sub.handlers {
				handlers = append(handlers, h)
			}
		}
		f.mu.Unlock()

		for _, h := range handlers {
			h(s)
		}
	}
}

// RemoteDevice writes to a device behind a controller gateway.
type RemoteDevice struct {
	mqtt  paho.Client
	id    string
	topic string
}

func NewRemoteDevice(client paho.Client, prefix string, deviceID string) *RemoteDevice {
	if prefix == "" {
		prefix = DefaultGatewayTopicPrefix
	}
	return &RemoteDevice{mqtt: client, id: deviceID, topic: fmt.Sprintf("%s/%s/set", prefix, deviceID)}
}

func (d *RemoteDevice) SetLevel(ctx context.Context, level float64) error {
	return d.write(ctx, deviceWrite{Level: &level})
}

func (d *RemoteDevice) Stop(ctx context.Context) error {
	return d.write(ctx, deviceWrite{Operation: operationStop})
}

func (d *RemoteDevice) SetBlindsLevel(ctx context.Context, level float64) error {
	return d.write(ctx, deviceWrite{BlindsLevel: &level})
}

func (d *RemoteDevice) StopBlinds(ctx context.Context) error {
	return d.write(ctx, deviceWrite{Operation: operationStopBlinds})
}

func (d *RemoteDevice) SetTargetAngle(ctx context.Context, angle float64) error {
	return d.write(ctx, deviceWrite{TargetAngle: &angle})
}

func (d *RemoteDevice) SetKeypadEventType(ctx context.Context, eventType cover.EventType) error {
	return d.write(ctx, deviceWrite{EventType: eventType.String()})
}

// write publishes with QoS 0, so it completes without waiting on the broker
// and is safe to call from a message handler.
func (d *RemoteDevice) write(ctx context.Context, w deviceWrite) error {
	payload, err := json.Marshal(w)
	if err != nil {
		return err
	}

	logrus.Debugf("%s: MQTT write %s", d.id, payload)

	token := d.mqtt.Publish(d.topic, 0, false, payload)
	select {
	case <-token.Done():
		if token.Error() != nil {
			return errors.Wrapf(token.Error(), "%s: MQTT write publish failed", d.id)
		}
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "%s: MQTT write publish abandoned", d.id)
	}
}
