// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Thermoquad/fead/pkg/fead"
	"github.com/rs/zerolog"
)

// Recorder receives a copy of every line crossing the transport.
type Recorder interface {
	Record(dir fead.Direction, line string) error
}

// subscriptionBuffer is the per-subscriber backlog before the reader blocks
const subscriptionBuffer = 16

// Line is a fead.Transport over a byte stream. Received bytes are split on
// '\n'; a trailing '\r' is dropped and empty lines are skipped.
//
// A single reader goroutine runs while the Line is open. Each received line
// goes to the subscriber of the pending NextLine, if any, and to every Listen
// subscriber. When the stream ends, the channels of all live subscriptions
// are closed.
type Line struct {
	opener   Opener
	log      zerolog.Logger
	recorder Recorder

	// openMu serializes Open and Close; mu is never held while dialing
	openMu sync.Mutex

	mu      sync.Mutex
	conn    io.ReadWriteCloser
	done    chan struct{}
	readErr error
	subs    []*subscription

	writeMu sync.Mutex
}

var _ fead.Transport = (*Line)(nil)

// LineOption configures a Line.
type LineOption func(*Line)

// WithRecorder taps every line into r.
func WithRecorder(r Recorder) LineOption {
	return func(l *Line) {
		l.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) LineOption {
	return func(l *Line) {
		l.log = log
	}
}

// New creates a closed Line that will open its stream with opener.
func New(opener Opener, opts ...LineOption) *Line {
	l := &Line{
		opener: opener,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With().Str("component", "transport").Logger()
	return l
}

// Open opens the stream and starts the reader. Opening an open Line is a
// no-op. While the opener dials, writes fail with ErrTransportUnavailable.
func (l *Line) Open(ctx context.Context) error {
	l.openMu.Lock()
	defer l.openMu.Unlock()

	if l.Conn() != nil {
		return nil
	}

	conn, err := l.opener(ctx)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	l.mu.Lock()
	l.conn = conn
	l.done = done
	l.readErr = nil
	l.mu.Unlock()
	go l.readLoop(conn, done)

	l.log.Debug().Msg("opened")
	return nil
}

// Close closes the stream and waits for the reader to exit.
func (l *Line) Close() error {
	l.openMu.Lock()
	defer l.openMu.Unlock()

	l.mu.Lock()
	conn, done := l.conn, l.done
	l.conn = nil
	subs := l.detach()
	l.mu.Unlock()

	if conn == nil {
		return nil
	}

	err := conn.Close()
	<-done
	closeAll(subs)
	l.log.Debug().Msg("closed")
	return err
}

// Conn returns the underlying stream, or nil when closed.
func (l *Line) Conn() io.ReadWriteCloser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn
}

// Done is closed when the reader of the current session exits.
func (l *Line) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Err returns the error that ended the last session, if any.
func (l *Line) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readErr
}

// WriteLine writes line, appending the terminator when missing.
func (l *Line) WriteLine(line string) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()

	if conn == nil {
		return fead.ErrTransportUnavailable
	}
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	l.writeMu.Lock()
	_, err := io.WriteString(conn, line)
	l.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %v", fead.ErrTransportUnavailable, err)
	}

	l.record(fead.DirectionOut, line)
	return nil
}

// NextLine subscribes to the next received line.
func (l *Line) NextLine() fead.Subscription {
	return l.subscribe(true)
}

// Listen subscribes to all received lines until Unsubscribe.
func (l *Line) Listen() fead.Subscription {
	return l.subscribe(false)
}

func (l *Line) subscribe(once bool) *subscription {
	s := &subscription{
		line: l,
		ch:   make(chan string, subscriptionBuffer),
		once: once,
		done: make(chan struct{}),
	}
	l.mu.Lock()
	l.subs = append(l.subs, s)
	l.mu.Unlock()
	return s
}

func (l *Line) remove(s *subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, other := range l.subs {
		if other == s {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			return
		}
	}
}

func (l *Line) readLoop(conn io.Reader, done chan struct{}) {
	defer close(done)

	reader := bufio.NewReader(conn)
	for {
		raw, err := reader.ReadString('\n')
		if line := strings.TrimRight(raw, "\r\n"); line != "" && (err == nil || errors.Is(err, io.EOF)) {
			l.dispatch(line)
		}
		if err != nil {
			var subs []*subscription
			l.mu.Lock()
			if l.conn == conn {
				// Stream failed under us
				l.conn = nil
				l.readErr = err
				subs = l.detach()
				l.log.Warn().Err(err).Msg("read failed, transport closed")
			}
			l.mu.Unlock()
			closeAll(subs)
			return
		}
	}
}

// detach removes every subscription. Called with mu held.
func (l *Line) detach() []*subscription {
	subs := l.subs
	l.subs = nil
	return subs
}

// closeAll ends delivery to subs. Only called once the reader that could
// deliver to them has exited.
func closeAll(subs []*subscription) {
	for _, s := range subs {
		close(s.ch)
	}
}

func (l *Line) dispatch(line string) {
	l.record(fead.DirectionIn, line)

	l.mu.Lock()
	targets := make([]*subscription, 0, len(l.subs))
	kept := l.subs[:0]
	for _, s := range l.subs {
		targets = append(targets, s)
		if !s.once {
			kept = append(kept, s)
		}
	}
	l.subs = kept
	l.mu.Unlock()

	if len(targets) == 0 {
		l.log.Debug().Str("line", line).Msg("unsolicited")
	}
	for _, s := range targets {
		select {
		case s.ch <- line:
		case <-s.done:
		}
	}
}

func (l *Line) record(dir fead.Direction, line string) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.Record(dir, strings.TrimRight(line, "\r\n")); err != nil {
		l.log.Warn().Err(err).Msg("recorder failed")
	}
}

type subscription struct {
	line *Line
	ch   chan string
	once bool
	done chan struct{}
	stop sync.Once
}

func (s *subscription) Lines() <-chan string {
	return s.ch
}

func (s *subscription) Unsubscribe() {
	s.stop.Do(func() {
		close(s.done)
		s.line.remove(s)
	})
}
