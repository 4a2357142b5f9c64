// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import (
	"errors"
	"fmt"
)

var (
	// ErrNoResponse indicates all attempts of a request went unanswered.
	ErrNoResponse = errors.New("no response")
	// ErrTransportUnavailable indicates a write before the transport was
	// opened or after it was closed, or a transport that closed while a
	// reply was awaited.
	ErrTransportUnavailable = errors.New("transport unavailable")
	// ErrMalformedPacket indicates a received line could not be decoded.
	ErrMalformedPacket = errors.New("malformed packet")
)

// NoResponseError is returned when a request exhausts its attempts.
type NoResponseError struct {
	Request  string
	Attempts int
	Last     AttemptOutcome
}

func (e *NoResponseError) Error() string {
	return fmt.Sprintf("no response to %s after %d attempts (last: %s)", e.Request, e.Attempts, e.Last)
}

// Unwrap returns ErrNoResponse.
func (e *NoResponseError) Unwrap() error {
	return ErrNoResponse
}

// MalformedPacketError describes a line that failed to decode.
type MalformedPacketError struct {
	Line   string
	Field  int
	Reason string
	Err    error
}

func (e *MalformedPacketError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed packet %q: field %d: %s", e.Line, e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed packet %q: %s", e.Line, e.Reason)
}

// Is matches ErrMalformedPacket.
func (e *MalformedPacketError) Is(target error) bool {
	return target == ErrMalformedPacket
}

// Unwrap returns the underlying parse error, if any.
func (e *MalformedPacketError) Unwrap() error {
	return e.Err
}
