// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import (
	"context"
	"sync"
	"time"
)

// Ticket is a position in the scheduler queue. Every Acquire returns a new
// ticket, so identical requests never share a slot.
type Ticket struct {
	ready chan struct{}
	next  *Ticket
}

// Scheduler serializes access to a shared half-duplex channel. Tickets are
// granted strictly in Acquire order; only the head ticket may drive the
// transport, and the head must Release before the next ticket is granted.
type Scheduler struct {
	settle time.Duration

	mu         sync.Mutex
	head       *Ticket
	tail       *Ticket
	length     int
	quietUntil time.Time
}

// NewScheduler creates a scheduler that keeps the channel quiet for settle
// after each release, giving a slave that just replied time to go back to
// listening.
func NewScheduler(settle time.Duration) *Scheduler {
	return &Scheduler{settle: settle}
}

// Len returns the number of queued tickets, including the active one.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.length
}

// Acquire appends a ticket to the queue and blocks until it is the head and
// the settle delay of the previous release has elapsed.
//
// If ctx is done while the ticket is still waiting, the ticket leaves the
// queue and ctx.Err() is returned. Once granted, a ticket is never revoked;
// the caller must Release it.
func (s *Scheduler) Acquire(ctx context.Context) (*Ticket, error) {
	t := &Ticket{ready: make(chan struct{})}

	s.mu.Lock()
	if s.tail == nil {
		s.head, s.tail = t, t
		close(t.ready)
	} else {
		s.tail.next = t
		s.tail = t
	}
	s.length++
	s.mu.Unlock()

	select {
	case <-t.ready:
	case <-ctx.Done():
		if s.abandon(t) {
			return nil, ctx.Err()
		}
		// Granted concurrently with cancellation; hand the slot on.
		s.Release(t)
		return nil, ctx.Err()
	}

	s.mu.Lock()
	wait := time.Until(s.quietUntil)
	s.mu.Unlock()
	if wait > 0 {
		time.Sleep(wait)
	}
	return t, nil
}

// Release pops the head ticket and grants the next one. Releasing a ticket
// that is not the head is a programming error and panics.
func (s *Scheduler) Release(t *Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.head != t {
		panic("fead: release of a ticket that is not the queue head")
	}

	s.head = t.next
	t.next = nil
	if s.head == nil {
		s.tail = nil
	}
	s.length--
	s.quietUntil = time.Now().Add(s.settle)

	if s.head != nil {
		close(s.head.ready)
	}
}

// abandon removes a waiting ticket. Returns false if the ticket had already
// been granted the head position.
func (s *Scheduler) abandon(t *Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.head == t {
		return false
	}

	prev := s.head
	for prev != nil && prev.next != t {
		prev = prev.next
	}
	if prev == nil {
		return false
	}
	prev.next = t.next
	if s.tail == t {
		s.tail = prev
	}
	t.next = nil
	s.length--
	return true
}
