// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// PowerPin switches the bus supply.
type PowerPin interface {
	Set(on bool) error
}

// Pin selects a serial modem control line.
type Pin int

// Modem control lines
const (
	PinDTR Pin = iota
	PinRTS
)

func (p Pin) String() string {
	if p == PinRTS {
		return "RTS"
	}
	return "DTR"
}

// ParsePin parses "dtr" or "rts".
func ParsePin(s string) (Pin, error) {
	switch strings.ToLower(s) {
	case "dtr":
		return PinDTR, nil
	case "rts":
		return PinRTS, nil
	}
	return 0, fmt.Errorf("unknown pin %q (use dtr or rts)", s)
}

// ModemLinePin drives bus power from a modem control line, for adapters
// that wire DTR or RTS to a supply switch.
type ModemLinePin struct {
	Port     serial.Port
	Pin      Pin
	Inverted bool
}

// Set raises the line for on, lowered when Inverted.
func (m *ModemLinePin) Set(on bool) error {
	level := on != m.Inverted

	var err error
	switch m.Pin {
	case PinRTS:
		err = m.Port.SetRTS(level)
	default:
		err = m.Port.SetDTR(level)
	}
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", m.Pin, err)
	}
	return nil
}

// ModemLine returns a ModemLinePin on the serial port under l. Fails when l
// is closed or does not run on a serial port.
func ModemLine(l *Line, pin Pin, inverted bool) (*ModemLinePin, error) {
	port, ok := l.Conn().(serial.Port)
	if !ok {
		return nil, fmt.Errorf("%s power control needs an open serial port", pin)
	}
	return &ModemLinePin{Port: port, Pin: pin, Inverted: inverted}, nil
}
