package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/jkaflik/cover2mqtt/internal/cover"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHACoverFromMQTTBridge(t *testing.T) {
	client := newFakeClient()

	t.Run("shutter", func(t *testing.T) {
		b := NewBridge(client, "", &fakeCover{id: "hdm:ZigBee:0001", name: "Living room", model: cover.MicromoduleShutter})
		ha := NewHACoverFromMQTTBridge(b)

		assert.Equal(t, "hdm_ZigBee_0001", ha.UniqueID)
		assert.Equal(t, "shutter", ha.DeviceClass)
		assert.Equal(t, "MICROMODULE_SHUTTER", ha.Device.Model)
		assert.Equal(t, b.AttributesTopic, ha.JSONAttributesTopic)
		assert.Empty(t, ha.TiltCommandTopic)

		payload, err := json.Marshal(ha)
		require.NoError(t, err)
		assert.NotContains(t, string(payload), "tilt_cmd_t")
		assert.NotContains(t, string(payload), "pl_stop_tilt")
		assert.Contains(t, string(payload), `"stat_clsd":"closed"`)
	})

	t.Run("awning", func(t *testing.T) {
		b := NewBridge(client, "", &fakeCover{id: "terrace", model: cover.MicromoduleAwning})
		assert.Equal(t, "awning", NewHACoverFromMQTTBridge(b).DeviceClass)
	})

	t.Run("blinds get tilt topics", func(t *testing.T) {
		b := NewBridge(client, "", &fakeCover{id: "study", model: cover.MicromoduleBlinds})
		ha := NewHACoverFromMQTTBridge(b)

		assert.Equal(t, "blind", ha.DeviceClass)
		assert.Equal(t, b.TiltChangeTopic, ha.TiltCommandTopic)
		assert.Equal(t, b.TiltTopic, ha.TiltStatusTopic)
		assert.Equal(t, "stop", ha.PayloadStopTilt)
		require.NotNil(t, ha.TiltOpenedValue)
		assert.Equal(t, 100, *ha.TiltOpenedValue)
	})
}

func TestPublishHAAutoDiscovery(t *testing.T) {
	client := newFakeClient()
	b := NewBridge(client, "", &fakeCover{id: "garage", name: "Garage", model: cover.RollerBBL})

	require.NoError(t, PublishHAAutoDiscovery(client, "homeassistant", NewHACoverFromMQTTBridge(b)))

	msg, ok := client.lastPublished("homeassistant/cover/cover2mqtt/garage/config")
	require.True(t, ok)
	assert.True(t, msg.retained)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(msg.payload), &got))
	assert.Equal(t, "Garage", got["name"])
	assert.Equal(t, b.CommandTopic, got["cmd_t"])
}
