package mqtt

import (
	"context"
	"math"
	"testing"

	"github.com/jkaflik/cover2mqtt/internal/cover"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSnapshot(t *testing.T) {
	t.Run("roller", func(t *testing.T) {
		s, err := decodeSnapshot([]byte(`{"level":0.35,"operationState":"MOVING","deviceModel":"BBL"}`))
		require.NoError(t, err)

		assert.Equal(t, 0.35, s.Level)
		assert.Equal(t, cover.Moving, s.OperationState)
		assert.Equal(t, cover.RollerBBL, s.Model)
		assert.Nil(t, s.Keypad)
		assert.Nil(t, s.CurrentAngle)
	})

	t.Run("micromodule shutter with keypad", func(t *testing.T) {
		s, err := decodeSnapshot([]byte(`{"level":0.0,"operationState":"STOPPED","deviceModel":"MICROMODULE_SHUTTER","eventType":"SWITCH_ON","keyCode":1,"eventTimestamp":1700000000}`))
		require.NoError(t, err)

		assert.Equal(t, cover.MicromoduleShutter, s.Model)
		require.NotNil(t, s.Keypad)
		assert.Equal(t, cover.SwitchOn, s.Keypad.Type)
		assert.Equal(t, cover.KeyCodeUp, s.Keypad.KeyCode)
		assert.Equal(t, int64(1700000000), s.Keypad.Timestamp)
	})

	t.Run("blinds with angle", func(t *testing.T) {
		s, err := decodeSnapshot([]byte(`{"level":1,"operationState":"STOPPED","deviceModel":"MICROMODULE_BLINDS","currentAngle":0.25}`))
		require.NoError(t, err)

		require.NotNil(t, s.CurrentAngle)
		assert.Equal(t, 0.25, *s.CurrentAngle)
	})

	t.Run("missing level is unreadable", func(t *testing.T) {
		s, err := decodeSnapshot([]byte(`{"operationState":"OPENING"}`))
		require.NoError(t, err)

		assert.True(t, math.IsNaN(s.Level))
		assert.Equal(t, cover.Moving, s.OperationState)
		assert.Equal(t, cover.ModelUnknown, s.Model)
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := decodeSnapshot([]byte(`{"level":`))
		assert.Error(t, err)
	})
}

func TestFeed(t *testing.T) {
	client := newFakeClient()
	feed := NewFeed(client, "")

	var first, second []cover.Snapshot
	unsubscribeFirst, err := feed.Subscribe("garage", func(s cover.Snapshot) { first = append(first, s) })
	require.NoError(t, err)
	unsubscribeSecond, err := feed.Subscribe("garage", func(s cover.Snapshot) { second = append(second, s) })
	require.NoError(t, err)

	assert.Equal(t, []string{"shc/garage/state"}, client.subscribed)

	t.Run("snapshots fan out to every handler", func(t *testing.T) {
		require.True(t, client.deliver("shc/garage/state", `{"level":0.5,"operationState":"STOPPED","deviceModel":"BBL"}`))
		assert.Len(t, first, 1)
		assert.Len(t, second, 1)
	})

	t.Run("malformed state is dropped", func(t *testing.T) {
		require.True(t, client.deliver("shc/garage/state", `not json`))
		assert.Len(t, first, 1)
	})

	t.Run("resubscribe restores topics", func(t *testing.T) {
		require.NoError(t, feed.Resubscribe())
		assert.Equal(t, []string{"shc/garage/state", "shc/garage/state"}, client.subscribed)
	})

	t.Run("topic is released with the last handler", func(t *testing.T) {
		unsubscribeFirst()
		assert.Empty(t, client.unsubscribed)

		require.True(t, client.deliver("shc/garage/state", `{"level":0.4,"operationState":"MOVING"}`))
		assert.Len(t, first, 1)
		assert.Len(t, second, 2)

		unsubscribeSecond()
		assert.Equal(t, []string{"shc/garage/state"}, client.unsubscribed)
		assert.False(t, client.deliver("shc/garage/state", `{"level":0.4}`))
	})
}

func TestRemoteDevice(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	d := NewRemoteDevice(client, "shc", "study")

	require.NoError(t, d.SetLevel(ctx, 0))
	require.NoError(t, d.Stop(ctx))
	require.NoError(t, d.SetBlindsLevel(ctx, 0.35))
	require.NoError(t, d.StopBlinds(ctx))
	require.NoError(t, d.SetTargetAngle(ctx, 1))
	require.NoError(t, d.SetKeypadEventType(ctx, cover.SwitchOff))

	assert.Equal(t, []string{
		`{"level":0}`,
		`{"operation":"stop"}`,
		`{"blindsLevel":0.35}`,
		`{"operation":"stopBlinds"}`,
		`{"targetAngle":1}`,
		`{"eventType":"SWITCH_OFF"}`,
	}, client.publishedTo("shc/study/set"))

	t.Run("publish failure is returned", func(t *testing.T) {
		client.publishErr = assert.AnError
		defer func() { client.publishErr = nil }()

		assert.ErrorIs(t, d.Stop(ctx), assert.AnError)
	})
}

func TestGatewayDrivesEntity(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	feed := NewFeed(client, "shc")

	m := cover.NewManager()
	defer m.Close()

	e, err := m.Add(cover.Descriptor{ID: "hall", Name: "Hall", Model: cover.MicromoduleShutter}, feed, NewRemoteDevice(client, "shc", "hall"))
	require.NoError(t, err)
	b := NewBridge(client, "", e)

	require.True(t, client.deliver("shc/hall/state", `{"level":0,"operationState":"STOPPED","deviceModel":"MICROMODULE_SHUTTER"}`))
	state, _ := client.lastPublished(b.StateTopic)
	assert.Equal(t, "closed", state.payload)

	require.NoError(t, e.Open(ctx))
	assert.Equal(t, []string{`{"level":1}`}, client.publishedTo("shc/hall/set"))

	require.True(t, client.deliver("shc/hall/state", `{"level":0,"operationState":"MOVING","deviceModel":"MICROMODULE_SHUTTER"}`))
	state, _ = client.lastPublished(b.StateTopic)
	assert.Equal(t, "opening", state.payload)

	require.NoError(t, e.Stop(ctx))
	assert.Equal(t, []string{
		`{"level":1}`,
		`{"eventType":"SWITCH_OFF"}`,
		`{"operation":"stop"}`,
	}, client.publishedTo("shc/hall/set"))
}
