// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Thermoquad/fead/pkg/fead"
	"github.com/Thermoquad/fead/pkg/transport"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("capture closed")

// Writer appends events for one session. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	enc     *cbor.Encoder
	closer  io.Closer
	session string
	closed  bool
	now     func() time.Time
}

var _ transport.Recorder = (*Writer)(nil)

// NewWriter starts a new session writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		enc:     newEncoder(w),
		session: uuid.NewString(),
		now:     time.Now,
	}
}

// Create opens path for appending and starts a new session in it.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// Session returns the session id stamped on every event.
func (w *Writer) Session() string {
	return w.session
}

// Record writes one line event.
func (w *Writer) Record(dir fead.Direction, line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	return w.enc.Encode(Event{
		Timestamp: w.now(),
		Session:   w.session,
		Direction: dir,
		Line:      line,
	})
}

// Close stops recording and closes the file opened by Create. Safe to call
// more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
