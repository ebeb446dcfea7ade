package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Message struct {
	Timestamp   time.Time   `json:"timestamp"`
	From        string      `json:"from"`
	To          string      `json:"to"`
	ID          string      `json:"id"`
	MessageType string      `json:"message_type"`
	Message     interface{} `json:"message"`
}

// RawMessage is a Message whose payload has not been decoded yet.
type RawMessage struct {
	Timestamp   time.Time       `json:"timestamp"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	ID          string          `json:"id"`
	MessageType string          `json:"message_type"`
	Message     json.RawMessage `json:"message"`
}

func (message *RawMessage) Replace(v interface{}) Message {
	return Message{
		message.Timestamp,
		message.From,
		message.To,
		message.ID,
		message.MessageType,
		v,
	}
}

// Decode unmarshals the raw payload into v and returns the typed message.
func (message *RawMessage) Decode(v interface{}) (Message, error) {
	if len(message.Message) > 0 {
		if err := json.Unmarshal(message.Message, v); err != nil {
			return Message{}, errors.WithMessagef(err, "decode %s", message.MessageType)
		}
	}
	return message.Replace(v), nil
}

func CreateMessage(messageType, from, to string, message interface{}) Message {
	return Message{
		time.Now(),
		from,
		to,
		uuid.NewString(),
		messageType,
		message,
	}
}
