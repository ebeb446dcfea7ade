package link

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiiuae/flightplanengine/internal/config"
	"github.com/tiiuae/flightplanengine/internal/link/linktest"
	"github.com/tiiuae/flightplanengine/internal/log"
	"github.com/tiiuae/flightplanengine/internal/types"
)

const device = "drone-7"

func TestTelemetryIsPostedOnTheBus(t *testing.T) {
	client := linktest.NewClient()
	l := New(client, device, 1, log.Discard())

	var posted []types.Message
	require.NoError(t, l.Subscribe(func(msg types.Message) {
		posted = append(posted, msg)
	}))

	require.True(t, client.Deliver("/devices/drone-7/drone/state", []byte(`{"connected":true,"mission_state":"playing","flightplan_uuid":"fp-1"}`)))
	require.True(t, client.Deliver("/devices/drone-7/drone/mission-progress", []byte(`{"flightplan_uuid":"fp-1","seq_reached":3,"running_time":12.5}`)))
	require.True(t, client.Deliver("/devices/drone-7/drone/state", []byte(`not json`)))

	require.Len(t, posted, 2)
	assert.Equal(t, types.MsgDroneState, posted[0].MessageType)
	st := posted[0].Message.(types.DroneState)
	assert.True(t, st.Connected)
	assert.Equal(t, types.MissionPlaying, st.MissionState)

	p := posted[1].Message.(types.MissionProgress)
	assert.Equal(t, 3, p.SeqReached)
	assert.Equal(t, 12500*time.Millisecond, p.Duration())
}

func TestSubscribeError(t *testing.T) {
	client := linktest.NewClient()
	client.Err = assert.AnError
	l := New(client, device, 1, log.Discard())
	assert.ErrorIs(t, l.Subscribe(func(types.Message) {}), assert.AnError)
}

func TestSendMissionCommand(t *testing.T) {
	client := linktest.NewClient()
	l := New(client, device, 1, log.Discard())

	done := make(chan error, 1)
	l.SendMissionCommand(types.MissionCommand{Command: types.CommandPlay, FlightPlanUUID: "fp-1", FromItem: 2}, func(err error) {
		done <- err
	})
	require.NoError(t, <-done)

	published := client.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "/devices/drone-7/drone/commands", published[0].Topic)
	assert.JSONEq(t, `{"command":"play","flightplan_uuid":"fp-1","from_item":2}`, string(published[0].Payload))
}

func TestSendMissionCommandDoesNotWaitForBroker(t *testing.T) {
	client := linktest.NewClient()
	client.Hold = true
	l := New(client, device, 1, log.Discard())

	done := make(chan error, 1)
	start := time.Now()
	l.SendMissionCommand(types.MissionCommand{Command: types.CommandPlay, FlightPlanUUID: "fp-1"}, func(err error) {
		done <- err
	})
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, client.Published(), 1)

	select {
	case err := <-done:
		t.Fatalf("completed before the broker answered: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	client.Release(assert.AnError)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, assert.AnError)
	case <-time.After(time.Second):
		t.Fatal("no completion after the broker answered")
	}
}

func ackUploads(t *testing.T, client *linktest.Client, errText string) {
	client.OnPublish = func(p linktest.Published) {
		if p.Topic != "/devices/drone-7/drone/upload" {
			return
		}
		var req uploadRequest
		require.NoError(t, json.Unmarshal(p.Payload, &req))
		ack, _ := json.Marshal(uploadAck{ID: req.ID, Error: errText})
		// acks arrive on the client's own goroutine
		go client.Deliver("/devices/drone-7/drone/upload-ack", ack)
	}
}

func TestUploadWaitsForAck(t *testing.T) {
	client := linktest.NewClient()
	l := New(client, device, 1, log.Discard())
	require.NoError(t, l.Subscribe(func(types.Message) {}))
	ackUploads(t, client, "")

	err := l.Upload(context.Background(), "fp-1", []byte("QGC WPL 120\n"))
	require.NoError(t, err)

	var req uploadRequest
	require.NoError(t, json.Unmarshal(client.Published()[0].Payload, &req))
	assert.Equal(t, "fp-1", req.FlightPlanUUID)
	assert.Equal(t, "QGC WPL 120\n", req.Mission)
	assert.Empty(t, l.pending)
}

func TestUploadRejected(t *testing.T) {
	client := linktest.NewClient()
	l := New(client, device, 1, log.Discard())
	require.NoError(t, l.Subscribe(func(types.Message) {}))
	ackUploads(t, client, "mission too long")

	err := l.Upload(context.Background(), "fp-1", []byte("QGC WPL 120\n"))
	assert.ErrorContains(t, err, "mission too long")
}

func TestUploadCancelled(t *testing.T) {
	client := linktest.NewClient()
	l := New(client, device, 1, log.Discard())
	require.NoError(t, l.Subscribe(func(types.Message) {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Upload(ctx, "fp-1", []byte("QGC WPL 120\n"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// a late ack is ignored
	ack, _ := json.Marshal(uploadAck{ID: "unknown"})
	assert.True(t, client.Deliver("/devices/drone-7/drone/upload-ack", ack))
}

func TestRunStopsWithContext(t *testing.T) {
	client := linktest.NewClient()
	l := New(client, device, 1, log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	done := make(chan struct{})
	go func() {
		l.Run(ctx, &wg, func(types.Message) {})
		close(done)
	}()

	require.Eventually(t, func() bool {
		return client.Subscribed("/devices/drone-7/drone/state")
	}, time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestPassword(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "rsa_private.pem")
	pemData := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	require.NoError(t, os.WriteFile(path, pemData, 0o600))

	c := config.Default().MQTT
	c.PrivateKeyPath = path
	now := time.Now()
	pass, err := Password(c, now)
	require.NoError(t, err)

	claims := &jwt.StandardClaims{}
	parsed, err := jwt.ParseWithClaims(pass, claims, func(*jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "auto-fleet-mgnt", claims.Audience)
	assert.Equal(t, now.Add(24*time.Hour).Unix(), claims.ExpiresAt)

	c.Algorithm = "HS256"
	_, err = Password(c, now)
	assert.Error(t, err)

	c.PrivateKeyPath = filepath.Join(t.TempDir(), "missing.pem")
	_, err = Password(c, now)
	assert.Error(t, err)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "/devices/drone-7/drone/upload-ack", Topic(device, TopicUploadAck))
}
