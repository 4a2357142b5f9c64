// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

// Transport is the line-oriented channel a Bus drives. Implementations own
// opening the underlying device and framing bytes into lines.
type Transport interface {
	// WriteLine writes one complete line, including its terminator.
	// Returns ErrTransportUnavailable when the transport is not open.
	WriteLine(line string) error

	// NextLine subscribes to the next received line only. The subscription
	// is removed by the transport after one delivery.
	NextLine() Subscription

	// Listen subscribes to every received line until Unsubscribe.
	Listen() Subscription
}

// Subscription is a handle on received lines.
type Subscription interface {
	// Lines delivers received lines in arrival order. The channel is
	// closed when the transport closes under a live subscription.
	Lines() <-chan string

	// Unsubscribe stops delivery. Safe to call more than once.
	Unsubscribe()
}
