// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import (
	"context"
	"errors"
)

// Discover broadcasts a DISCOVER query and returns one device per distinct
// replying address, in order of first reply.
func (b *Bus) Discover(ctx context.Context) ([]*Device, error) {
	return b.collectDevices(ctx, ParamDiscover)
}

// FindOnline broadcasts a UID query and returns one device per distinct
// replying address, with its UID.
func (b *Bus) FindOnline(ctx context.Context) ([]*Device, error) {
	return b.collectDevices(ctx, ParamUID)
}

func (b *Bus) collectDevices(ctx context.Context, param int) ([]*Device, error) {
	var devices []*Device
	seen := make(map[int]bool)

	err := b.Broadcast(ctx, NewGet(AddressBroadcast, param), func(resp Response, err error) {
		if err != nil {
			return
		}
		// Our own broadcast echoed back on the shared line, or chatter
		if resp.Address == AddressBroadcast || resp.Param != param {
			return
		}
		if seen[resp.Address] {
			return
		}
		seen[resp.Address] = true

		d := NewDevice(resp.Address)
		if resp.Value != nil {
			uid := *resp.Value
			d.UID = &uid
		}
		devices = append(devices, d)
	})
	return devices, err
}

// AvailableAddresses returns the address range polled by Scan when no
// explicit list is given.
func AvailableAddresses() []int {
	addrs := make([]int, 0, 29)
	for i := 1; i < 20; i++ {
		addrs = append(addrs, i)
	}
	for i := 100; i < 110; i++ {
		addrs = append(addrs, i)
	}
	return addrs
}

// Scan polls each address for its UID and returns the devices that answered.
// Unanswered addresses are skipped; transport failures and cancellation end
// the scan early with the devices found so far.
func (b *Bus) Scan(ctx context.Context, addresses []int) ([]*Device, error) {
	if addresses == nil {
		addresses = AvailableAddresses()
	}

	var devices []*Device
	for _, addr := range addresses {
		if err := ctx.Err(); err != nil {
			return devices, err
		}
		resp, err := b.Get(ctx, addr, ParamUID)
		if err != nil {
			if errors.Is(err, ErrNoResponse) {
				continue
			}
			return devices, err
		}
		uid := resp.ValueOr(0)
		devices = append(devices, &Device{Address: addr, UID: &uid})
	}
	return devices, nil
}
