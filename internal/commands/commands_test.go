package commands

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiiuae/flightplanengine/internal/link/linktest"
	"github.com/tiiuae/flightplanengine/internal/log"
	"github.com/tiiuae/flightplanengine/internal/types"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		payload string
		want    interface{}
	}{
		{`{"message_type":"open-flightplan","message":{"uuid":"fp-1"}}`, types.OpenFlightPlan{UUID: "fp-1"}},
		{`{"message_type":"start-flightplan"}`, types.StartFlightPlan{}},
		{`{"message_type":"stop-flightplan","message":{}}`, types.StopFlightPlan{}},
		{`{"message_type":"pause-flightplan"}`, types.PauseFlightPlan{}},
		{`{"message_type":"reset-flightplan"}`, types.ResetFlightPlan{}},
		{`{"message_type":"force-editable"}`, types.ForceEditable{}},
		{`{"message_type":"finished-offline-flightplan","message":{"uuid":"fp-2"}}`, types.FinishedOfflineFlightPlan{UUID: "fp-2"}},
		{
			`{"message_type":"catchup-flightplan","message":{"uuid":"fp-3","last_mission_item_executed":4,"running_time":61.5}}`,
			types.CatchUpFlightPlan{UUID: "fp-3", LastMissionItemExecuted: 4, RunningTime: 61.5},
		},
	}
	for _, tt := range tests {
		msg, err := Decode([]byte(tt.payload))
		require.NoError(t, err, tt.payload)
		assert.Equal(t, tt.want, msg.Message)
		assert.Equal(t, "operator", msg.From)
		assert.NotEmpty(t, msg.ID)
		assert.False(t, msg.Timestamp.IsZero())
	}
}

func TestDecodeEdit(t *testing.T) {
	msg, err := Decode([]byte(`{
		"from": "ground-station",
		"message_type": "edit-flightplan",
		"message": {"uuid": "fp-1", "data_setting": {"waypoints": [{"lat": 60.1, "lon": 24.9, "alt": 30}], "buckled": true}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "ground-station", msg.From)
	edit := msg.Message.(types.EditFlightPlan)
	require.NotNil(t, edit.DataSetting)
	assert.True(t, edit.DataSetting.Buckled)
	assert.Equal(t, 30.0, edit.DataSetting.Waypoints[0].Altitude)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`{`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"message_type":"self-destruct"}`))
	assert.ErrorContains(t, err, "unknown command")

	_, err = Decode([]byte(`{"message_type":"open-flightplan","message":{"uuid":7}}`))
	assert.Error(t, err)
}

func TestCommandsArePosted(t *testing.T) {
	client := linktest.NewClient()
	h := New(client, "drone-7", 1, log.Discard())

	var mu sync.Mutex
	var posted []types.Message
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	go h.Run(ctx, &wg, func(msg types.Message) {
		mu.Lock()
		posted = append(posted, msg)
		mu.Unlock()
	})

	topic := "/devices/drone-7/commands/flightplan"
	require.Eventually(t, func() bool { return client.Subscribed(topic) }, time.Second, time.Millisecond)
	client.Deliver(topic, []byte(`{"message_type":"start-flightplan"}`))
	client.Deliver(topic, []byte(`{"message_type":"bogus"}`))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, posted, 1)
	assert.Equal(t, types.MsgStartFlightPlan, posted[0].MessageType)
	assert.Equal(t, "drone-7", posted[0].To)
}
