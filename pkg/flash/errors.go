// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package flash

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoAck indicates the bootloader did not acknowledge a command.
	ErrNoAck = errors.New("no acknowledgement")
	// ErrEmptyImage indicates an image with no bytes to program.
	ErrEmptyImage = errors.New("empty firmware image")
	// ErrImageTooLarge indicates an image beyond the 16-bit word address space.
	ErrImageTooLarge = errors.New("firmware image too large")
)

// AckTimeoutError indicates a command went unacknowledged for the ack timeout.
type AckTimeoutError struct {
	Command Command
	Timeout time.Duration
}

func (e *AckTimeoutError) Error() string {
	return fmt.Sprintf("%s not acknowledged within %v", e.Command, e.Timeout)
}

// Unwrap returns ErrNoAck.
func (e *AckTimeoutError) Unwrap() error {
	return ErrNoAck
}

// PageError indicates programming failed at a page.
type PageError struct {
	Page        int
	WordAddress uint16
	Err         error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d (word address 0x%04x): %v", e.Page, e.WordAddress, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// HexRecordError describes an invalid Intel HEX record.
type HexRecordError struct {
	Line   int
	Reason string
}

func (e *HexRecordError) Error() string {
	return fmt.Sprintf("intel hex line %d: %s", e.Line, e.Reason)
}
