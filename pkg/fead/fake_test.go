// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import (
	"sync"
	"time"
)

// fakeTransport is an in-memory line transport. Writes are recorded and
// passed to respond, whose returned lines are delivered to subscribers
// before WriteLine returns.
type fakeTransport struct {
	mu      sync.Mutex
	writes  []string
	stamps  []time.Time
	subs    []*fakeSub
	closed  bool
	respond func(line string) []string
}

type fakeSub struct {
	t    *fakeTransport
	ch   chan string
	once bool
}

func newFakeTransport(respond func(string) []string) *fakeTransport {
	return &fakeTransport{respond: respond}
}

func (f *fakeTransport) WriteLine(line string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrTransportUnavailable
	}
	f.writes = append(f.writes, line)
	f.stamps = append(f.stamps, time.Now())
	respond := f.respond
	f.mu.Unlock()

	if respond != nil {
		for _, reply := range respond(line) {
			f.Inject(reply)
		}
	}
	return nil
}

func (f *fakeTransport) NextLine() Subscription {
	return f.subscribe(true)
}

func (f *fakeTransport) Listen() Subscription {
	return f.subscribe(false)
}

func (f *fakeTransport) subscribe(once bool) *fakeSub {
	s := &fakeSub{t: f, ch: make(chan string, 64), once: once}
	f.mu.Lock()
	f.subs = append(f.subs, s)
	f.mu.Unlock()
	return s
}

// Inject delivers a received line to the current subscribers.
func (f *fakeTransport) Inject(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.subs[:0]
	for _, s := range f.subs {
		select {
		case s.ch <- line:
		default:
		}
		if !s.once {
			kept = append(kept, s)
		}
	}
	f.subs = kept
}

func (f *fakeTransport) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *fakeTransport) WriteTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.stamps...)
}

func (f *fakeTransport) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeTransport) SetClosed(closed bool) {
	f.mu.Lock()
	f.closed = closed
	f.mu.Unlock()
}

// Drop closes the transport under its subscribers, closing their channels.
func (f *fakeTransport) Drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		close(s.ch)
	}
	f.subs = nil
	f.closed = true
}

func (s *fakeSub) Lines() <-chan string {
	return s.ch
}

func (s *fakeSub) Unsubscribe() {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	for i, other := range s.t.subs {
		if other == s {
			s.t.subs = append(s.t.subs[:i], s.t.subs[i+1:]...)
			return
		}
	}
}

// echoReply answers every GET/SET with a matching reply carrying value.
func echoReply(value int64) func(string) []string {
	return func(line string) []string {
		resp, err := Decode(line)
		if err != nil {
			return nil
		}
		r := Response{Address: resp.Address, Param: resp.Param, Value: &value}
		return []string{"g" + r.String() + "\n"}
	}
}

// fastBus returns a bus with short timings suitable for tests.
func fastBus(t Transport, opts ...Option) *Bus {
	base := []Option{
		WithTimeout(10 * time.Millisecond),
		WithSettleDelay(time.Millisecond),
		WithBroadcastWindow(50 * time.Millisecond),
	}
	return New(t, append(base, opts...)...)
}

func ptr[T any](v T) *T {
	return &v
}
