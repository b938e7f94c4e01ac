package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/cover2mqtt/internal/cover"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const DefaultTopicPrefix = "cover2mqtt"

const (
	mqttOpenCmd      = "open"
	mqttCloseCmd     = "close"
	mqttStopCmd      = "stop"
	mqttOpenTiltCmd  = "open_tilt"
	mqttCloseTiltCmd = "close_tilt"
	mqttStopTiltCmd  = "stop_tilt"
)

// attributesPayload is published to the JSON attributes topic.
type attributesPayload struct {
	Position       int    `json:"position"`
	Tilt           *int   `json:"tilt,omitempty"`
	IsOpening      bool   `json:"is_opening"`
	IsClosing      bool   `json:"is_closing"`
	IsClosed       bool   `json:"is_closed"`
	OperationState string `json:"operation_state"`
}

type Bridge struct {
	mqtt  paho.Client
	cover cover.TiltCover

	StateTopic      string
	PositionTopic   string
	TiltTopic       string
	AttributesTopic string
	MetadataTopic   string

	CommandTopic        string
	PositionChangeTopic string
	TiltChangeTopic     string

	releaseOnce sync.Once
}

func NewBridge(client paho.Client, prefix string, c cover.TiltCover) *Bridge {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	base := fmt.Sprintf("%s/%s", prefix, c.ID())

	bridge := &Bridge{mqtt: client, cover: c}
	bridge.StateTopic = base + "/state"
	bridge.PositionTopic = base + "/position"
	bridge.TiltTopic = base + "/tilt"
	bridge.AttributesTopic = base + "/attributes"
	bridge.MetadataTopic = base + "/metadata"
	bridge.CommandTopic = base + "/set"
	bridge.PositionChangeTopic = base + "/position/set"
	bridge.TiltChangeTopic = base + "/tilt/set"

	c.OnUpdate(bridge.Publish)

	return bridge
}

func (b *Bridge) SetMetadata(value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if token := b.mqtt.Publish(b.MetadataTopic, 0, true, payload); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT metadata publish failed", b.cover.Name())
	}

	return nil
}

// Subscribe listens on the command topics until ctx is done. It is called
// again after every reconnect.
func (b *Bridge) Subscribe(ctx context.Context) error {
	b.releaseOnce.Do(func() {
		go func() {
			<-ctx.Done()
			if token := b.mqtt.Unsubscribe(b.topics()...); token.Wait() && token.Error() != nil {
				logrus.Errorf("%s: MQTT topics unsubscribe failed: %s", b.cover.Name(), token.Error())
			}
		}()
	})

	if token := b.mqtt.Subscribe(b.CommandTopic, 0, b.onCommandHandler(ctx)); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT command topic subscription failed", b.cover.Name())
	}
	logrus.Infof("%s: MQTT command topic subscribed", b.cover.Name())

	if token := b.mqtt.Subscribe(b.PositionChangeTopic, 0, b.onPositionChangeHandler(ctx)); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT position change topic subscription failed", b.cover.Name())
	}
	logrus.Infof("%s: MQTT position change topic subscribed", b.cover.Name())

	if !b.cover.Model().SupportsTilt() {
		return nil
	}

	if token := b.mqtt.Subscribe(b.TiltChangeTopic, 0, b.onTiltChangeHandler(ctx)); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT tilt change topic subscription failed", b.cover.Name())
	}
	logrus.Infof("%s: MQTT tilt change topic subscribed", b.cover.Name())

	return nil
}

// Publish sends attributes to the state topics. It is the cover update
// handler.
func (b *Bridge) Publish(attrs cover.Attributes) {
	b.publish(b.StateTopic, attrs.State())
	b.publish(b.PositionTopic, strconv.Itoa(attrs.Position))
	if attrs.Tilt != nil {
		b.publish(b.TiltTopic, strconv.Itoa(*attrs.Tilt))
	}

	payload, err := json.Marshal(newAttributesPayload(attrs))
	if err != nil {
		logrus.Errorf("%s: MQTT attributes encode failed: %s", b.cover.Name(), err)
		return
	}
	b.publish(b.AttributesTopic, payload)
}

func (b *Bridge) publish(topic string, payload interface{}) {
	if token := b.mqtt.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		logrus.Errorf("%s: MQTT %s publish failed: %s", b.cover.Name(), topic, token.Error())
	}
}

func (b *Bridge) onCommandHandler(ctx context.Context) paho.MessageHandler {
	return func(c paho.Client, msg paho.Message) {
		cmd := strings.ToLower(strings.TrimSpace(string(msg.Payload())))

		var err error
		switch cmd {
		case mqttOpenCmd:
			err = b.cover.Open(ctx)
		case mqttCloseCmd:
			err = b.cover.Close(ctx)
		case mqttStopCmd:
			err = b.cover.Stop(ctx)
		case mqttOpenTiltCmd:
			err = b.cover.OpenTilt(ctx)
		case mqttCloseTiltCmd:
			err = b.cover.CloseTilt(ctx)
		case mqttStopTiltCmd:
			err = b.cover.StopTilt(ctx)
		default:
			logrus.Errorf("%s: MQTT unsupported %s command received", b.cover.Name(), cmd)
			return
		}

		if err != nil {
			logrus.Error(err)
		}
	}
}

func (b *Bridge) onPositionChangeHandler(ctx context.Context) paho.MessageHandler {
	return func(c paho.Client, msg paho.Message) {
		pos, err := parseInt(msg.Payload())
		if err != nil {
			logrus.Errorf("%s: MQTT position change ignored: %s", b.cover.Name(), err)
			return
		}
		if err := b.cover.SetPosition(ctx, pos); err != nil {
			logrus.Error(err)
		}
	}
}

func (b *Bridge) onTiltChangeHandler(ctx context.Context) paho.MessageHandler {
	return func(c paho.Client, msg paho.Message) {
		payload := strings.ToLower(strings.TrimSpace(string(msg.Payload())))
		if payload == mqttStopCmd || payload == mqttStopTiltCmd {
			if err := b.cover.StopTilt(ctx); err != nil {
				logrus.Error(err)
			}
			return
		}

		tilt, err := parseInt(msg.Payload())
		if err != nil {
			logrus.Errorf("%s: MQTT tilt change ignored: %s", b.cover.Name(), err)
			return
		}
		if err := b.cover.SetTilt(ctx, tilt); err != nil {
			logrus.Error(err)
		}
	}
}

// RestorePosition reads the retained position once and resets the device
// level from it.
func (b *Bridge) RestorePosition(device cover.Stateless) error {
	restoreHandler := func(c paho.Client, msg paho.Message) {
		pos, err := parseInt(msg.Payload())
		if err != nil {
			logrus.Error(err)
			return
		}
		if err := device.ResetLevel(float64(pos) / 100); err != nil {
			logrus.Errorf("%s: MQTT position restore failed: %s", b.cover.Name(), err)
			return
		}

		logrus.Infof("%s: MQTT position restored to %d", b.cover.Name(), pos)

		if token := b.mqtt.Unsubscribe(b.PositionTopic); token.Wait() && token.Error() != nil {
			logrus.Errorf("%s: MQTT position restore topic unsubscribe failed: %s", b.cover.Name(), token.Error())
			return
		}

		logrus.Debugf("%s: MQTT position restore topic unsubscribed", b.cover.Name())
	}

	if token := b.mqtt.Subscribe(b.PositionTopic, 0, restoreHandler); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT position restore topic subscription failed", b.cover.Name())
	}

	return nil
}

func (b *Bridge) topics() []string {
	topics := []string{b.CommandTopic, b.PositionChangeTopic}
	if b.cover.Model().SupportsTilt() {
		topics = append(topics, b.TiltChangeTopic)
	}
	return topics
}

func newAttributesPayload(attrs cover.Attributes) attributesPayload {
	return attributesPayload{
		Position:       attrs.Position,
		Tilt:           attrs.Tilt,
		IsOpening:      attrs.IsOpening,
		IsClosing:      attrs.IsClosing,
		IsClosed:       attrs.IsClosed,
		OperationState: attrs.OperationState.String(),
	}
}

func parseInt(payload []byte) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid number %q", payload)
	}
	return v, nil
}
