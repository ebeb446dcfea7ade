package types

import (
	"context"
	"sync"

	"github.com/tiiuae/flightplanengine/internal/log"
)

type PostFn = func(msg Message)

type MessageHandler interface {
	Run(ctx context.Context, wg *sync.WaitGroup, post PostFn)
	Receive(message Message)
}

type MessageBus struct {
	bus       chan Message
	receivers []MessageHandler
	lg        *log.Logger
}

func NewMessageBus(bus chan Message, lg *log.Logger, receivers ...MessageHandler) *MessageBus {
	return &MessageBus{bus, receivers, lg.Component("bus")}
}

// Post is usable before Run starts, e.g. from transport callbacks.
func (mb *MessageBus) Post(msg Message) {
	busCapacity := cap(mb.bus)
	if busLen := len(mb.bus); busLen > busCapacity/2 {
		mb.lg.Warnf("Bus capacity over 50%% [ %d / %d ]", busLen, busCapacity)
	}
	mb.bus <- msg
}

func (mb *MessageBus) Run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	defer wg.Done()

	for _, x := range mb.receivers {
		go x.Run(ctx, wg, mb.Post)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-mb.bus:
			for _, x := range mb.receivers {
				x.Receive(msg)
			}
		}
	}
}
