// Package clock abstracts wall time so timers can be driven manually in
// tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

type Ticker interface {
	Stop()
}

type Clock interface {
	Now() time.Time
	// Every calls fn every d until the returned ticker is stopped. The
	// first call happens after d; fn runs on a clock-owned goroutine.
	Every(d time.Duration, fn func()) Ticker
}

type Real struct{}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) Every(d time.Duration, fn func()) Ticker {
	t := &realTicker{t: time.NewTicker(d), done: make(chan struct{})}
	go func() {
		for {
			select {
			case <-t.done:
				return
			case <-t.t.C:
				fn()
			}
		}
	}()
	return t
}

type realTicker struct {
	t    *time.Ticker
	done chan struct{}
	once sync.Once
}

func (t *realTicker) Stop() {
	t.once.Do(func() {
		t.t.Stop()
		close(t.done)
	})
}

// Fake is a manually advanced clock. Ticker callbacks run synchronously
// inside Advance.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Every(d time.Duration, fn func()) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{clock: f, period: d, next: f.now.Add(d), fn: fn}
	f.tickers = append(f.tickers, t)
	return t
}

// Advance moves time forward by d, firing due tickers in deadline order.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	end := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		sort.SliceStable(f.tickers, func(i, j int) bool {
			return f.tickers[i].next.Before(f.tickers[j].next)
		})
		if len(f.tickers) == 0 || f.tickers[0].next.After(end) {
			f.now = end
			f.mu.Unlock()
			return
		}
		t := f.tickers[0]
		f.now = t.next
		t.next = t.next.Add(t.period)
		f.mu.Unlock()

		t.fn()
	}
}

// Active returns the number of running tickers.
func (f *Fake) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

type fakeTicker struct {
	clock  *Fake
	period time.Duration
	next   time.Time
	fn     func()
}

func (t *fakeTicker) Stop() {
	f := t.clock
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, x := range f.tickers {
		if x == t {
			f.tickers = append(f.tickers[:i:i], f.tickers[i+1:]...)
			return
		}
	}
}
