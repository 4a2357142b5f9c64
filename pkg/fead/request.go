// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import (
	"context"
	"strings"
)

// Do queues req and returns the first reply that matches its address and
// param. Replies for anything else fail the attempt and trigger a retry.
// Exhausting the attempts returns a *NoResponseError.
func (b *Bus) Do(ctx context.Context, req *Request) (Response, error) {
	_, resp, err := b.roundTrip(ctx, Encode(req), req.matches)
	return resp, err
}

// Get reads param from the device at address. The optional args are sent as
// value and extra value, for parameters that take a query argument.
func (b *Bus) Get(ctx context.Context, address, param int, args ...int64) (Response, error) {
	req := NewGet(address, param)
	if len(args) > 0 {
		req.Value = &args[0]
	}
	if len(args) > 1 {
		req.ExtraValue = &args[1]
	}
	return b.Do(ctx, req)
}

// Set writes value (and optionally an extra value) to param of the device at
// address.
func (b *Bus) Set(ctx context.Context, address, param int, value int64, extra ...int64) (Response, error) {
	req := NewSet(address, param, value)
	if len(extra) > 0 {
		req.WithExtra(extra[0])
	}
	return b.Do(ctx, req)
}

// SetAddress assigns a new bus address to the device currently at address.
func (b *Bus) SetAddress(ctx context.Context, address, newAddress int) (Response, error) {
	return b.Set(ctx, address, ParamAddress, int64(newAddress))
}

// UID reads the unique id of the device at address.
func (b *Bus) UID(ctx context.Context, address int) (int64, error) {
	resp, err := b.Get(ctx, address, ParamUID)
	if err != nil {
		return 0, err
	}
	return resp.ValueOr(0), nil
}

// Ping sends the liveness query. Any reply counts.
func (b *Bus) Ping(ctx context.Context) error {
	_, _, err := b.roundTrip(ctx, LinePing, nil)
	return err
}

// Version sends the version query and returns the reply line as received.
func (b *Bus) Version(ctx context.Context) (string, error) {
	reply, _, err := b.roundTrip(ctx, LineVersion, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(reply, "\r\n"), nil
}

// Power switches the bus supply through the controller. Any reply counts.
func (b *Bus) Power(ctx context.Context, on bool) error {
	line := LinePowerOff
	if on {
		line = LinePowerOn
	}
	_, _, err := b.roundTrip(ctx, line, nil)
	return err
}

func (r *Request) matches(resp Response) bool {
	return resp.Matches(r)
}
