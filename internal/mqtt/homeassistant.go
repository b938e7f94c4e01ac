package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/cover2mqtt/internal/cover"
	"github.com/pkg/errors"
)

type haDevice struct {
	Identifiers  []string `json:"ids,omitempty"`
	Manufacturer string   `json:"mf,omitempty"`
	Model        string   `json:"mdl,omitempty"`
	Name         string   `json:"name,omitempty"`
	SWVersion    string   `json:"sw,omitempty"`
}

type haEntity struct {
	AvailabilityTopic string `json:"avty_t,omitempty"`
	UniqueID          string `json:"uniq_id,omitempty"`
	Name              string `json:"name,omitempty"`
	DeviceClass       string `json:"device_class,omitempty"`

	Device haDevice `json:"device,omitempty"`
}

type haCover struct {
	haEntity
	StateTopic          string `json:"stat_t"`
	CommandTopic        string `json:"cmd_t"`
	PositionTopic       string `json:"pos_t"`
	SetPositionTopic    string `json:"set_pos_t"`
	JSONAttributesTopic string `json:"json_attr_t"`
	PositionOpen        int    `json:"pos_open"`
	PositionClosed      int    `json:"pos_clsd"`
	PayloadOpen         string `json:"pl_open"`
	PayloadStop         string `json:"pl_stop"`
	PayloadClose        string `json:"pl_cls"`
	StateOpen           string `json:"stat_open"`
	StateOpening        string `json:"stat_opening"`
	StateClosed         string `json:"stat_clsd"`
	StateClosing        string `json:"stat_closing"`

	TiltCommandTopic string `json:"tilt_cmd_t,omitempty"`
	PayloadStopTilt  string `json:"pl_stop_tilt,omitempty"`
	TiltStatusTopic  string `json:"tilt_status_t,omitempty"`
	TiltOpenedValue  *int   `json:"tilt_opnd_val,omitempty"`
	TiltClosedValue  *int   `json:"tilt_clsd_val,omitempty"`
}

func NewHACoverFromMQTTBridge(bridge *Bridge) haCover {
	c := bridge.cover

	ha := haCover{
		haEntity: haEntity{
			UniqueID:    objectID(c.ID()),
			Name:        c.Name(),
			DeviceClass: c.Model().DeviceClass(),

			Device: haDevice{
				Identifiers:  []string{objectID(c.ID())},
				Manufacturer: "Bosch",
				Model:        c.Model().String(),
				Name:         c.Name(),
				SWVersion:    "cover2mqtt",
			},
		},
		StateTopic:          bridge.StateTopic,
		CommandTopic:        bridge.CommandTopic,
		PositionTopic:       bridge.PositionTopic,
		SetPositionTopic:    bridge.PositionChangeTopic,
		JSONAttributesTopic: bridge.AttributesTopic,
		PositionOpen:        100,
		PositionClosed:      0,
		PayloadOpen:         mqttOpenCmd,
		PayloadStop:         mqttStopCmd,
		PayloadClose:        mqttCloseCmd,
		StateOpen:           cover.OpenState,
		StateOpening:        cover.OpeningState,
		StateClosed:         cover.ClosedState,
		StateClosing:        cover.ClosingState,
	}

	if c.Model().SupportsTilt() {
		opened, closed := 100, 0
		ha.TiltCommandTopic = bridge.TiltChangeTopic
		ha.PayloadStopTilt = mqttStopCmd
		ha.TiltStatusTopic = bridge.TiltTopic
		ha.TiltOpenedValue = &opened
		ha.TiltClosedValue = &closed
	}

	return ha
}

func PublishHAAutoDiscovery(client paho.Client, homeAssistantDiscoveryTopicPrefix string, haCover haCover) error {
	topic := discoveryTopic(homeAssistantDiscoveryTopicPrefix, haCover)

	payload, err := json.Marshal(haCover)
	if err != nil {
		return err
	}

	if token := client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: HA discovery publish failed", haCover.Name)
	}

	return nil
}

func discoveryTopic(prefix string, haCover haCover) string {
	return fmt.Sprintf("%s/cover/cover2mqtt/%s/config", prefix, haCover.UniqueID)
}

// objectID keeps only characters Home Assistant accepts in discovery ids.
func objectID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, id)
}
