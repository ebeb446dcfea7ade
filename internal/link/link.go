// Package link is the MQTT connection to the drone's mission computer.
// It turns drone telemetry into bus messages, sends mission commands and
// uploads mission files.
package link

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tiiuae/flightplanengine/internal/log"
	"github.com/tiiuae/flightplanengine/internal/types"
)

// Drone side topics, relative to /devices/<id>/.
const (
	TopicDroneState      = "drone/state"
	TopicMissionProgress = "drone/mission-progress"
	TopicDroneCommands   = "drone/commands"
	TopicUpload          = "drone/upload"
	TopicUploadAck       = "drone/upload-ack"
)

const publishTimeout = 5 * time.Second

type uploadRequest struct {
	ID             string `json:"id"`
	FlightPlanUUID string `json:"flightplan_uuid"`
	Mission        string `json:"mission"`
}

type uploadAck struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

type Link struct {
	client   Client
	deviceID string
	qos      byte
	lg       *log.Logger

	mu      sync.Mutex
	pending map[string]chan error
}

func New(client Client, deviceID string, qos byte, lg *log.Logger) *Link {
	return &Link{
		client:   client,
		deviceID: deviceID,
		qos:      qos,
		lg:       lg.Component("link"),
		pending:  make(map[string]chan error),
	}
}

func (l *Link) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	wg.Add(1)
	defer wg.Done()

	if err := l.Subscribe(post); err != nil {
		l.lg.Errorf("Link: %v", err)
		return
	}
	<-ctx.Done()
	l.lg.Infof("Link shutting down")
}

func (l *Link) Receive(message types.Message) {
}

// Subscribe starts forwarding drone telemetry to post.
func (l *Link) Subscribe(post types.PostFn) error {
	handlers := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{TopicDroneState, func(_ mqtt.Client, msg mqtt.Message) {
			var st types.DroneState
			if err := json.Unmarshal(msg.Payload(), &st); err != nil {
				l.lg.Warnf("Link: could not unmarshal drone state: %v", err)
				return
			}
			post(types.CreateMessage(types.MsgDroneState, "drone", l.deviceID, st))
		}},
		{TopicMissionProgress, func(_ mqtt.Client, msg mqtt.Message) {
			var p types.MissionProgress
			if err := json.Unmarshal(msg.Payload(), &p); err != nil {
				l.lg.Warnf("Link: could not unmarshal mission progress: %v", err)
				return
			}
			post(types.CreateMessage(types.MsgMissionProgress, "drone", l.deviceID, p))
		}},
		{TopicUploadAck, l.handleUploadAck},
	}

	for _, h := range handlers {
		topic := Topic(l.deviceID, h.topic)
		if err := wait(l.client.Subscribe(topic, l.qos, h.handler), publishTimeout); err != nil {
			return errors.WithMessagef(err, "subscribe %s", topic)
		}
	}
	return nil
}

// SendMissionCommand publishes cmd without waiting for the broker. done
// receives the outcome of the publication and may run on any goroutine.
func (l *Link) SendMissionCommand(cmd types.MissionCommand, done func(error)) {
	b, err := json.Marshal(cmd)
	if err != nil {
		done(err)
		return
	}
	l.lg.Infof("Link: %s %s from item %d", cmd.Command, cmd.FlightPlanUUID, cmd.FromItem)
	tok := l.client.Publish(Topic(l.deviceID, TopicDroneCommands), l.qos, false, b)
	go func() {
		done(errors.WithMessage(wait(tok, publishTimeout), "send mission command"))
	}()
}

// Upload sends a mission file and blocks until the drone acknowledges it
// or ctx is done.
func (l *Link) Upload(ctx context.Context, flightPlanUUID string, mission []byte) error {
	id := uuid.NewString()
	ack := make(chan error, 1)

	l.mu.Lock()
	l.pending[id] = ack
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(l.pending, id)
		l.mu.Unlock()
	}()

	b, err := json.Marshal(uploadRequest{ID: id, FlightPlanUUID: flightPlanUUID, Mission: string(mission)})
	if err != nil {
		return err
	}
	tok := l.client.Publish(Topic(l.deviceID, TopicUpload), l.qos, false, b)
	if err := wait(tok, publishTimeout); err != nil {
		return errors.WithMessage(err, "publish mission")
	}

	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Link) handleUploadAck(_ mqtt.Client, msg mqtt.Message) {
	var a uploadAck
	if err := json.Unmarshal(msg.Payload(), &a); err != nil {
		l.lg.Warnf("Link: could not unmarshal upload ack: %v", err)
		return
	}

	l.mu.Lock()
	ack, ok := l.pending[a.ID]
	l.mu.Unlock()
	if !ok {
		l.lg.Debugf("Link: ack for unknown upload %s", a.ID)
		return
	}

	var result error
	if a.Error != "" {
		result = errors.Errorf("drone rejected mission: %s", a.Error)
	}
	select {
	case ack <- result:
	default:
		// duplicate ack
	}
}
