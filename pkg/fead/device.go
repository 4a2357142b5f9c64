// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import (
	"context"
	"fmt"
)

// Getter is the part of a Bus a device probe needs.
type Getter interface {
	Get(ctx context.Context, address, param int, args ...int64) (Response, error)
}

var _ Getter = (*Bus)(nil)

// Device is a slave on the bus. UID stays nil until the device has answered
// once; a device with a UID is considered online.
type Device struct {
	Address int
	UID     *int64
}

// NewDevice creates a device record with no known UID.
func NewDevice(address int) *Device {
	return &Device{Address: address}
}

// Online returns true if the device UID is known. It performs no I/O.
func Online(d *Device) bool {
	return d.UID != nil
}

// IsOnline returns true if the device is known to be online, otherwise asks
// the device for its UID. A successful reply stores the UID. Every failure,
// including no response, is reported as false.
func (d *Device) IsOnline(ctx context.Context, bus Getter) bool {
	if Online(d) {
		return true
	}
	if d.Address == AddressBroadcast {
		return false
	}

	resp, err := bus.Get(ctx, d.Address, ParamUID)
	if err != nil {
		return false
	}
	uid := resp.ValueOr(0)
	d.UID = &uid
	return true
}

func (d *Device) String() string {
	if d.UID == nil {
		return fmt.Sprintf("device %d (offline)", d.Address)
	}
	return fmt.Sprintf("device %d (uid %d)", d.Address, *d.UID)
}
