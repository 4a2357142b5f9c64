// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package fead implements the host side of the FEAD multi-drop serial bus.
//
// FEAD connects one controller to many addressable slave microcontrollers
// over a shared half-duplex line. Commands are ASCII lines of the form
//
//	<g|s><address>:<param>[:<value>[:<extraValue>]]\n
//
// and every exchange on the bus is serialized through a single FIFO queue
// owned by a Bus, so that at most one request occupies the channel at a time.
package fead

import "time"

// Packet framing
const (
	Separator  = ':'
	Terminator = '\n'
)

// Special addresses
const (
	AddressBroadcast = 0 // All devices
)

// Reserved parameter ids
const (
	ParamReset    = 251
	ParamVersion  = 252
	ParamDiscover = 253
	ParamAddress  = 254
	ParamUID      = 255
)

// Simple probe and control lines. Any received line acknowledges them.
const (
	LinePowerOff = "p0\n"
	LinePowerOn  = "p1\n"
	LineVersion  = "v\n"
	LinePing     = "q\n"
)

// Default timing
const (
	DefaultMaxAttempts     = 3
	DefaultTimeout         = 50 * time.Millisecond
	DefaultSettleDelay     = 20 * time.Millisecond
	DefaultBroadcastWindow = 500 * time.Millisecond
)
