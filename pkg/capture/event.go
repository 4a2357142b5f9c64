// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"time"

	"github.com/Thermoquad/fead/pkg/fead"
)

// Event is one line seen on the bus. Integer keys keep captures compact.
type Event struct {
	// Timestamp when the line crossed the transport
	Timestamp time.Time `cbor:"1,keyasint"`

	// Session identifies one recording (UUID)
	Session string `cbor:"2,keyasint"`

	// Direction relative to the host
	Direction fead.Direction `cbor:"3,keyasint"`

	// Line without its terminator
	Line string `cbor:"4,keyasint"`
}

// Filter selects events. Zero fields match everything.
type Filter struct {
	Session   string
	Direction *fead.Direction
	Since     *time.Time
}

func (f Filter) matches(e Event) bool {
	if f.Session != "" && e.Session != f.Session {
		return false
	}
	if f.Direction != nil && e.Direction != *f.Direction {
		return false
	}
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	return true
}
