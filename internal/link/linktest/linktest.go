// Package linktest provides an in-memory MQTT client for tests.
package linktest

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Published struct {
	Topic   string
	QoS     byte
	Payload []byte
}

// Client records publications and lets tests deliver messages to the
// registered subscriptions.
type Client struct {
	mu        sync.Mutex
	handlers  map[string]mqtt.MessageHandler
	published []Published
	// OnPublish, when set, is called after each publication outside the
	// lock.
	OnPublish func(Published)
	// Err is returned by every token when set.
	Err error
	// Hold leaves published tokens incomplete until Release.
	Hold bool
	held []*Token
}

func NewClient() *Client {
	return &Client{handlers: make(map[string]mqtt.MessageHandler)}
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	}

	p := Published{Topic: topic, QoS: qos, Payload: b}
	c.mu.Lock()
	c.published = append(c.published, p)
	onPublish, err := c.OnPublish, c.Err
	var tok *Token
	if c.Hold {
		tok = &Token{done: make(chan struct{})}
		c.held = append(c.held, tok)
	}
	c.mu.Unlock()

	if onPublish != nil && err == nil {
		onPublish(p)
	}
	if tok != nil {
		return tok
	}
	return &Token{err: err}
}

// Release completes the held tokens with err.
func (c *Client) Release(err error) {
	c.mu.Lock()
	held := c.held
	c.held = nil
	c.mu.Unlock()
	for _, tok := range held {
		tok.err = err
		close(tok.done)
	}
}

func (c *Client) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err == nil {
		c.handlers[topic] = callback
	}
	return &Token{err: c.Err}
}

// Deliver hands payload to the subscription on topic. It reports whether
// one was registered.
func (c *Client) Deliver(topic string, payload []byte) bool {
	c.mu.Lock()
	h, ok := c.handlers[topic]
	c.mu.Unlock()
	if !ok {
		return false
	}
	h(nil, &Message{topic: topic, payload: payload})
	return true
}

func (c *Client) Subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[topic]
	return ok
}

func (c *Client) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}

// Token is complete unless it was published while the client held
// tokens.
type Token struct {
	done chan struct{}
	err  error
}

func (t *Token) Wait() bool {
	if t.done != nil {
		<-t.done
	}
	return true
}

func (t *Token) WaitTimeout(d time.Duration) bool {
	if t.done == nil {
		return true
	}
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *Token) Done() <-chan struct{} {
	if t.done != nil {
		return t.done
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (t *Token) Error() error {
	return t.err
}

type Message struct {
	topic   string
	payload []byte
}

func (m *Message) Duplicate() bool {
	return false
}

func (m *Message) Qos() byte {
	return 1
}

func (m *Message) Retained() bool {
	return false
}

func (m *Message) Topic() string {
	return m.topic
}

func (m *Message) MessageID() uint16 {
	return 0
}

func (m *Message) Payload() []byte {
	return m.payload
}

func (m *Message) Ack() {
}
