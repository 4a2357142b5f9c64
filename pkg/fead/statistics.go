// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import (
	"fmt"
	"sync"
	"time"
)

// Direction of a line relative to the host.
type Direction int

// Direction values
const (
	DirectionIn Direction = iota
	DirectionOut
)

func (d Direction) String() string {
	if d == DirectionOut {
		return "tx"
	}
	return "rx"
}

// Counters is a point-in-time copy of Statistics.
type Counters struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Lines
	LinesSent     uint64
	LinesReceived uint64

	// Requests
	Requests  uint64
	Completed uint64
	Failed    uint64

	// Attempts
	Attempts      uint64
	Timeouts      uint64
	Mismatches    uint64
	Malformed     uint64
	WriteFailures uint64

	// Broadcasts
	Broadcasts         uint64
	BroadcastReplies   uint64
	BroadcastMalformed uint64

	// Rates (calculated)
	LineRate  float64 // lines/sec
	ErrorRate float64 // failed attempts/sec
}

// Retries returns the number of attempts beyond the first of each request.
func (c Counters) Retries() uint64 {
	if c.Attempts < c.Requests {
		return 0
	}
	return c.Attempts - c.Requests
}

// Statistics tracks bus traffic and request outcomes. The zero value is not
// usable; create one with NewStatistics. All methods are safe for concurrent
// use and tolerate a nil receiver.
type Statistics struct {
	mu sync.Mutex
	c  Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{c: Counters{StartTime: now, LastUpdateTime: now}}
}

// Observe records a line seen on the bus without taking part in an
// exchange, as a passive monitor does. Received lines that fail to decode
// count as malformed, except control lines.
func (s *Statistics) Observe(dir Direction, line string) {
	if s == nil {
		return
	}
	s.recordLine(dir)
	if dir == DirectionIn {
		if _, err := Decode(line); err != nil && !IsControlLine(line) {
			s.mu.Lock()
			s.c.Malformed++
			s.mu.Unlock()
		}
	}
}

func (s *Statistics) recordLine(dir Direction) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if dir == DirectionOut {
		s.c.LinesSent++
	} else {
		s.c.LinesReceived++
	}
	s.c.LastUpdateTime = time.Now()
}

func (s *Statistics) recordAttempt(o AttemptOutcome) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Attempts++
	switch o {
	case OutcomeTimeout:
		s.c.Timeouts++
	case OutcomeMismatch:
		s.c.Mismatches++
	case OutcomeMalformed:
		s.c.Malformed++
	case OutcomeWriteFailed, OutcomeTransportLost:
		s.c.WriteFailures++
	}
}

func (s *Statistics) recordRequest(ok bool) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Requests++
	if ok {
		s.c.Completed++
	} else {
		s.c.Failed++
	}
}

func (s *Statistics) recordBroadcast() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Broadcasts++
}

func (s *Statistics) recordBroadcastReply(decodeErr error) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.BroadcastReplies++
	if decodeErr != nil {
		s.c.BroadcastMalformed++
	}
}

// Snapshot returns the current counters with rates calculated.
func (s *Statistics) Snapshot() Counters {
	if s == nil {
		return Counters{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.c
	elapsed := time.Since(c.StartTime).Seconds()
	if elapsed > 0 {
		c.LineRate = float64(c.LinesSent+c.LinesReceived) / elapsed
		c.ErrorRate = float64(c.Timeouts+c.Mismatches+c.Malformed+c.WriteFailures) / elapsed
	}
	return c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	c := s.Snapshot()

	var okPercent, failPercent float64
	if c.Requests > 0 {
		okPercent = float64(c.Completed) * 100.0 / float64(c.Requests)
		failPercent = float64(c.Failed) * 100.0 / float64(c.Requests)
	}

	elapsed := time.Since(c.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Lines Sent:      %8d\n", c.LinesSent)
	result += fmt.Sprintf("Lines Received:  %8d\n", c.LinesReceived)
	result += fmt.Sprintf("Requests:        %8d\n", c.Requests)
	result += fmt.Sprintf("Completed:       %8d (%.1f%%)\n", c.Completed, okPercent)

	if c.Failed > 0 {
		result += fmt.Sprintf("Failed:          %8d (%.1f%%)\n", c.Failed, failPercent)
	}
	if retries := c.Retries(); retries > 0 {
		result += fmt.Sprintf("Retries:         %8d\n", retries)
		if c.Timeouts > 0 {
			result += fmt.Sprintf("  Timeouts:         %5d\n", c.Timeouts)
		}
		if c.Mismatches > 0 {
			result += fmt.Sprintf("  Mismatches:       %5d\n", c.Mismatches)
		}
	}
	if c.Malformed > 0 {
		result += fmt.Sprintf("Malformed Lines: %8d\n", c.Malformed)
	}
	if c.Broadcasts > 0 {
		result += fmt.Sprintf("Broadcasts:      %8d (%d replies)\n", c.Broadcasts, c.BroadcastReplies)
	}

	result += fmt.Sprintf("Line Rate:       %8.1f lines/s\n", c.LineRate)
	result += fmt.Sprintf("Error Rate:      %8.1f err/s\n", c.ErrorRate)

	return result
}
