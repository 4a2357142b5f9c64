// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport provides line-framed FEAD transports over serial ports
// and WebSocket serial bridges.
package transport

import (
	"context"
	"fmt"
	"io"
	"sort"

	"go.bug.st/serial"
)

// Opener opens the byte stream a Line runs on.
type Opener func(ctx context.Context) (io.ReadWriteCloser, error)

// SerialOpener returns an Opener for a local serial port, 8N1.
func SerialOpener(portName string, baudRate int) Opener {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		return OpenSerial(portName, baudRate)
	}
}

// OpenSerial opens a serial port at baudRate, 8N1.
func OpenSerial(portName string, baudRate int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	return port, nil
}

// ListPorts returns the serial ports present on the system, sorted.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}
