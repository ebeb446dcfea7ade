// Package pubsub provides a current-value subject with synchronous,
// ordered delivery. Subscribing does not replay the current value;
// callers that need it read Value() right after subscribing.
package pubsub

import (
	"sync"
	"sync/atomic"
)

type Subject[T any] struct {
	mu    sync.Mutex
	value T
	subs  []*Subscription
	fns   map[*Subscription]func(T)
}

func New[T any](initial T) *Subject[T] {
	return &Subject[T]{value: initial, fns: make(map[*Subscription]func(T))}
}

func (s *Subject[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Send stores v and delivers it to every live subscriber in subscription
// order. Subscribers run on the caller's goroutine.
func (s *Subject[T]) Send(v T) {
	s.mu.Lock()
	s.value = v
	subs := make([]*Subscription, len(s.subs))
	copy(subs, s.subs)
	fns := make([]func(T), len(subs))
	for i, sub := range subs {
		fns[i] = s.fns[sub]
	}
	s.mu.Unlock()

	for i, sub := range subs {
		// a subscriber may cancel a later one while we deliver
		if sub.cancelled.Load() {
			continue
		}
		fns[i](v)
	}
}

func (s *Subject[T]) Subscribe(fn func(T)) *Subscription {
	sub := &Subscription{}
	sub.remove = func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, sub)
		for i, x := range s.subs {
			if x == sub {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				break
			}
		}
	}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.fns[sub] = fn
	s.mu.Unlock()
	return sub
}

// Len returns the number of live subscriptions.
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

type Subscription struct {
	cancelled atomic.Bool
	remove    func()
}

// Cancel is idempotent and safe on a nil subscription.
func (s *Subscription) Cancel() {
	if s == nil || s.cancelled.Swap(true) {
		return
	}
	s.remove()
}

// Bag releases a group of subscriptions at once.
type Bag []*Subscription

func (b *Bag) Add(s *Subscription) {
	*b = append(*b, s)
}

func (b *Bag) Cancel() {
	for _, s := range *b {
		s.Cancel()
	}
	*b = nil
}
