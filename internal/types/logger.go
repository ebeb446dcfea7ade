package types

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/tiiuae/flightplanengine/internal/log"
)

// Telemetry that arrives several times a second is not logged.
var quietMessages = map[string]bool{
	MsgDroneState:      true,
	MsgMissionProgress: true,
	MsgRunProgress:     true,
}

type logger struct {
	lg *log.Logger
}

func NewLogger(lg *log.Logger) MessageHandler {
	return &logger{lg: lg.Component("bus")}
}

func (l *logger) Receive(message Message) {
	if quietMessages[message.MessageType] {
		return
	}

	b, _ := json.Marshal(message.Message)
	l.lg.Debugf("Message: %s (%s -> %s): %s", message.MessageType, message.From, message.To, string(b))
}

func (l *logger) Run(ctx context.Context, wg *sync.WaitGroup, post PostFn) {
}
