// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Bus is one protocol session over one transport. All exchanges issued
// through a Bus, from any goroutine, are serviced one at a time in
// submission order.
//
// Bus is safe for concurrent use.
type Bus struct {
	transport Transport
	sched     *Scheduler
	config    Config
	log       zerolog.Logger
}

// New creates a Bus driving t.
//
// Example:
//
//	line := transport.New(transport.SerialOpener("/dev/ttyUSB0", 115200))
//	if err := line.Open(ctx); err != nil {
//	    return err
//	}
//	bus := fead.New(line, fead.WithMaxAttempts(5))
//	resp, err := bus.Get(ctx, 3, fead.ParamUID)
func New(t Transport, opts ...Option) *Bus {
	if t == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Bus{
		transport: t,
		sched:     NewScheduler(cfg.SettleDelay),
		config:    cfg,
		log:       cfg.Logger.With().Str("component", "fead").Logger(),
	}
}

// Config returns the effective configuration.
func (b *Bus) Config() Config {
	return b.config
}

// Pending returns the number of queued exchanges, including the active one.
func (b *Bus) Pending() int {
	return b.sched.Len()
}

// Statistics returns the statistics collector, or nil if none was set.
func (b *Bus) Statistics() *Statistics {
	return b.config.Stats
}

// roundTrip queues one exchange and drives its attempt loop. A nil match
// accepts any received line as the reply.
func (b *Bus) roundTrip(ctx context.Context, line string, match func(Response) bool) (string, Response, error) {
	ticket, err := b.sched.Acquire(ctx)
	if err != nil {
		return "", Response{}, err
	}
	defer b.sched.Release(ticket)

	policy := b.config.Retry
	label := strings.TrimSpace(line)
	last := OutcomeTimeout

	for attempt := 1; attempt <= policy.attempts(); attempt++ {
		timeout := policy.TimeoutFor(attempt)
		b.log.Debug().Str("dir", "tx").Str("line", label).Int("attempt", attempt).Msg("write")
		b.config.Stats.recordLine(DirectionOut)

		reply, resp, outcome, err := runAttempt(b.transport, line, timeout, match)
		b.config.Stats.recordAttempt(outcome)
		if reply != "" {
			b.config.Stats.recordLine(DirectionIn)
			b.log.Debug().Str("dir", "rx").Str("line", strings.TrimSpace(reply)).Msg("read")
		}

		switch outcome {
		case OutcomeMatched:
			b.config.Stats.recordRequest(true)
			return reply, resp, nil
		case OutcomeWriteFailed:
			b.config.Stats.recordRequest(false)
			return "", Response{}, fmt.Errorf("write %s: %w", label, err)
		case OutcomeTransportLost:
			b.config.Stats.recordRequest(false)
			return "", Response{}, fmt.Errorf("%s: %w", label, err)
		}

		last = outcome
		b.log.Debug().
			Str("line", label).
			Int("attempt", attempt).
			Dur("timeout", timeout).
			Str("outcome", outcome.String()).
			Msg("attempt failed")
	}

	b.config.Stats.recordRequest(false)
	b.log.Warn().Str("line", label).Int("attempts", policy.attempts()).Msg("no response")
	return "", Response{}, &NoResponseError{
		Request:  label,
		Attempts: policy.attempts(),
		Last:     last,
	}
}

// Exchanger sends a raw line and waits for exactly one received line of any
// content. A zero timeout waits indefinitely.
type Exchanger interface {
	Exchange(ctx context.Context, line string, timeout time.Duration) (string, error)
}

var _ Exchanger = (*Bus)(nil)

// errHoldReleased is returned by a held Exchanger used after its Hold ended.
var errHoldReleased = errors.New("fead: exchange after hold was released")

// Exchange queues a raw line and waits for exactly one received line of any
// content. A zero timeout waits indefinitely. There is no retry: the caller
// decides whether resending the line is safe.
func (b *Bus) Exchange(ctx context.Context, line string, timeout time.Duration) (string, error) {
	ticket, err := b.sched.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer b.sched.Release(ticket)

	return b.exchange(line, timeout)
}

// Hold takes one queue slot for the whole of fn. Exchanges made through the
// Exchanger passed to fn run back to back, with no other queued traffic
// between them. fn must not issue requests on b itself: they would wait for
// the slot fn is holding.
func (b *Bus) Hold(ctx context.Context, fn func(Exchanger) error) error {
	ticket, err := b.sched.Acquire(ctx)
	if err != nil {
		return err
	}
	defer b.sched.Release(ticket)

	h := &heldBus{bus: b}
	defer h.released.Store(true)
	return fn(h)
}

type heldBus struct {
	bus      *Bus
	released atomic.Bool
}

func (h *heldBus) Exchange(ctx context.Context, line string, timeout time.Duration) (string, error) {
	if h.released.Load() {
		return "", errHoldReleased
	}
	return h.bus.exchange(line, timeout)
}

// exchange writes line and waits for one reply. The caller holds the slot.
func (b *Bus) exchange(line string, timeout time.Duration) (string, error) {
	label := strings.TrimSpace(line)
	sub := b.transport.NextLine()
	defer sub.Unsubscribe()

	b.log.Debug().Str("dir", "tx").Str("line", label).Msg("write")
	b.config.Stats.recordLine(DirectionOut)
	if err := b.transport.WriteLine(line); err != nil {
		b.config.Stats.recordRequest(false)
		return "", fmt.Errorf("write %s: %w", label, err)
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case reply, ok := <-sub.Lines():
		if !ok {
			b.config.Stats.recordAttempt(OutcomeTransportLost)
			b.config.Stats.recordRequest(false)
			return "", fmt.Errorf("%s: %w", label, ErrTransportUnavailable)
		}
		b.config.Stats.recordLine(DirectionIn)
		b.config.Stats.recordAttempt(OutcomeMatched)
		b.config.Stats.recordRequest(true)
		b.log.Debug().Str("dir", "rx").Str("line", strings.TrimSpace(reply)).Msg("read")
		return reply, nil
	case <-expired:
		b.config.Stats.recordAttempt(OutcomeTimeout)
		b.config.Stats.recordRequest(false)
		return "", &NoResponseError{Request: label, Attempts: 1, Last: OutcomeTimeout}
	}
}
