// Package commands receives operator commands for the flight plan engine
// over MQTT and posts them on the bus.
package commands

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tiiuae/flightplanengine/internal/link"
	"github.com/tiiuae/flightplanengine/internal/log"
	"github.com/tiiuae/flightplanengine/internal/types"
)

// TopicFlightPlanCommands is relative to /devices/<id>/.
const TopicFlightPlanCommands = "commands/flightplan"

type commandHandler struct {
	client   link.Client
	deviceID string
	qos      byte
	lg       *log.Logger
}

func New(client link.Client, deviceID string, qos byte, lg *log.Logger) types.MessageHandler {
	return &commandHandler{client, deviceID, qos, lg.Component("commands")}
}

func (c *commandHandler) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	wg.Add(1)
	defer wg.Done()

	topic := link.Topic(c.deviceID, TopicFlightPlanCommands)
	tok := c.client.Subscribe(topic, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
		out, err := Decode(msg.Payload())
		if err != nil {
			c.lg.Warnf("Commands: %v", err)
			return
		}
		out.To = c.deviceID
		post(out)
	})
	tok.Wait()
	if err := tok.Error(); err != nil {
		c.lg.Errorf("Commands: subscribe %s: %v", topic, err)
		return
	}

	<-ctx.Done()
}

func (c *commandHandler) Receive(message types.Message) {
}

var decoders = map[string]func(*types.RawMessage) (types.Message, error){
	types.MsgOpenFlightPlan:            decode[types.OpenFlightPlan],
	types.MsgStartFlightPlan:           decode[types.StartFlightPlan],
	types.MsgStopFlightPlan:            decode[types.StopFlightPlan],
	types.MsgPauseFlightPlan:           decode[types.PauseFlightPlan],
	types.MsgResetFlightPlan:           decode[types.ResetFlightPlan],
	types.MsgForceEditable:             decode[types.ForceEditable],
	types.MsgEditFlightPlan:            decode[types.EditFlightPlan],
	types.MsgCreateFlightPlan:          decode[types.CreateFlightPlan],
	types.MsgCatchUpFlightPlan:         decode[types.CatchUpFlightPlan],
	types.MsgFinishedOfflineFlightPlan: decode[types.FinishedOfflineFlightPlan],
}

// decode keeps the payload as a value; bus handlers switch on value types.
func decode[T any](raw *types.RawMessage) (types.Message, error) {
	var v T
	msg, err := raw.Decode(&v)
	msg.Message = v
	return msg, err
}

// Decode turns an operator command envelope into a typed bus message.
func Decode(payload []byte) (types.Message, error) {
	var raw types.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return types.Message{}, errors.WithMessage(err, "could not unmarshal command")
	}

	d, ok := decoders[raw.MessageType]
	if !ok {
		return types.Message{}, errors.Errorf("unknown command: %s", raw.MessageType)
	}
	msg, err := d(&raw)
	if err != nil {
		return types.Message{}, err
	}
	if msg.From == "" {
		msg.From = "operator"
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return msg, nil
}
