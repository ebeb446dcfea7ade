// Package telemetry publishes the flight plan machine state and run
// progress to the cloud over MQTT and, when configured, to NATS.
package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tiiuae/flightplanengine/internal/link"
	"github.com/tiiuae/flightplanengine/internal/log"
	"github.com/tiiuae/flightplanengine/internal/types"
)

// Topics relative to /devices/<id>/.
const (
	TopicFlightPlanState    = "events/flightplan-state"
	TopicFlightPlanProgress = "events/flightplan-progress"
)

const retain = false

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type Options struct {
	DeviceID string
	QoS      byte
	// SubjectPrefix scopes NATS subjects as <prefix>.<device>.state.
	SubjectPrefix string
	// ProgressRate caps progress publications per second. A change of
	// running state is always published.
	ProgressRate float64
}

type telemetry struct {
	mqtt    link.Client
	nats    Publisher
	opts    Options
	limiter *rate.Limiter
	inbox   chan types.Message
	lg      *log.Logger

	lastRunningState string
}

// New returns the telemetry bus handler. nats may be nil.
func New(mqtt link.Client, nats Publisher, opts Options, lg *log.Logger) types.MessageHandler {
	return &telemetry{
		mqtt:    mqtt,
		nats:    nats,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.ProgressRate), 1),
		inbox:   make(chan types.Message, 30),
		lg:      lg.Component("telemetry"),
	}
}

func (t *telemetry) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	wg.Add(1)
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			t.lg.Infof("Telemetry shutting down")
			return
		case msg := <-t.inbox:
			t.handle(msg)
		}
	}
}

func (t *telemetry) Receive(message types.Message) {
	switch message.MessageType {
	case types.MsgMachineStateChanged, types.MsgRunProgress:
		t.inbox <- message
	}
}

func (t *telemetry) handle(msg types.Message) {
	switch m := msg.Message.(type) {
	case types.MachineStateChanged:
		t.publish(TopicFlightPlanState, "state", msg)
		if m.State == "machineStarted" {
			t.lastRunningState = ""
		}
	case types.RunProgress:
		changed := m.RunningState != t.lastRunningState
		if allowed := t.limiter.Allow(); !allowed && !changed {
			return
		}
		t.lastRunningState = m.RunningState
		t.publish(TopicFlightPlanProgress, "progress", msg)
	}
}

func (t *telemetry) publish(topic, subject string, msg types.Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		t.lg.Errorf("Telemetry: could not marshal %s: %v", msg.MessageType, err)
		return
	}

	tok := t.mqtt.Publish(link.Topic(t.opts.DeviceID, topic), t.opts.QoS, retain, b)
	if !tok.WaitTimeout(5 * time.Second) {
		t.lg.Warnf("Telemetry: could not publish %s within 5s", msg.MessageType)
	} else if err := tok.Error(); err != nil {
		t.lg.Warnf("Telemetry: could not publish %s: %v", msg.MessageType, err)
	}

	if t.nats == nil {
		return
	}
	if err := t.nats.Publish(Subject(t.opts.SubjectPrefix, t.opts.DeviceID, subject), b); err != nil {
		t.lg.Warnf("Telemetry: nats publish %s: %v", msg.MessageType, err)
	}
}

// Subject returns the NATS subject for a device.
func Subject(prefix, deviceID, kind string) string {
	return prefix + "." + deviceID + "." + kind
}
