// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// BroadcastHandler receives every line heard during a broadcast window, in
// arrival order. Lines that fail to decode are delivered with the decode
// error and a zero Response.
type BroadcastHandler func(Response, error)

// Broadcast sends req to all devices and collects replies for the configured
// window. The request is queued like any other, so it never overlaps another
// exchange; the slot is released only after the window closes.
//
// No correlation or duplicate suppression is applied: each received line
// reaches handler exactly once. req itself is not modified.
func (b *Bus) Broadcast(ctx context.Context, req *Request, handler BroadcastHandler) error {
	r := *req
	r.Address = AddressBroadcast
	return b.broadcastLine(ctx, Encode(&r), b.config.BroadcastWindow, handler)
}

// BroadcastFor is Broadcast with an explicit collection window.
func (b *Bus) BroadcastFor(ctx context.Context, req *Request, window time.Duration, handler BroadcastHandler) error {
	r := *req
	r.Address = AddressBroadcast
	return b.broadcastLine(ctx, Encode(&r), window, handler)
}

func (b *Bus) broadcastLine(ctx context.Context, line string, window time.Duration, handler BroadcastHandler) error {
	ticket, err := b.sched.Acquire(ctx)
	if err != nil {
		return err
	}
	defer b.sched.Release(ticket)

	// Deregistered before the slot is released
	sub := b.transport.Listen()
	defer sub.Unsubscribe()

	label := strings.TrimSpace(line)
	b.log.Debug().Str("dir", "tx").Str("line", label).Dur("window", window).Msg("broadcast")
	b.config.Stats.recordLine(DirectionOut)
	if err := b.transport.WriteLine(line); err != nil {
		return fmt.Errorf("write %s: %w", label, err)
	}
	b.config.Stats.recordBroadcast()

	timer := time.NewTimer(window)
	defer timer.Stop()

	deliver := func(reply string) {
		resp, err := Decode(reply)
		b.config.Stats.recordLine(DirectionIn)
		b.config.Stats.recordBroadcastReply(err)
		b.log.Debug().Str("dir", "rx").Str("line", strings.TrimSpace(reply)).Msg("broadcast reply")
		if handler != nil {
			handler(resp, err)
		}
	}

	for {
		select {
		case reply, ok := <-sub.Lines():
			if !ok {
				return fmt.Errorf("broadcast %s: %w", label, ErrTransportUnavailable)
			}
			deliver(reply)
		case <-timer.C:
			// Lines already buffered arrived inside the window
			for {
				select {
				case reply, ok := <-sub.Lines():
					if !ok {
						return nil
					}
					deliver(reply)
				default:
					return nil
				}
			}
		}
	}
}

// ResetAll broadcasts the reset command, which sends every device into its
// bootloader. Replies are ignored.
func (b *Bus) ResetAll(ctx context.Context) error {
	req := &Request{Method: MethodSet, Address: AddressBroadcast, Param: ParamReset}
	return b.Broadcast(ctx, req, nil)
}
