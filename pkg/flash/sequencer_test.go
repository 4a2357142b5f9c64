// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package flash

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/fead/pkg/fead"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus acknowledges every line unless failAt names the 1-based command
// that should go unanswered.
type fakeBus struct {
	mu       sync.Mutex
	lines    []string
	timeouts []time.Duration
	failAt   int
	resets   int
}

func (f *fakeBus) Exchange(ctx context.Context, line string, timeout time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, line)
	f.timeouts = append(f.timeouts, timeout)
	if f.failAt == len(f.lines) {
		return "", &fead.NoResponseError{Request: strings.TrimSpace(line), Attempts: 1, Last: fead.OutcomeTimeout}
	}
	return "ok\n", nil
}

func (f *fakeBus) ResetAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.lines = append(f.lines, "s0:251\n")
	return nil
}

func quickSequencer(bus Exchanger, opts ...Option) *Sequencer {
	base := []Option{WithAckSettle(0), WithSyncSettle(0), WithBootDelay(0)}
	return New(bus, append(base, opts...)...)
}

func testImage(n int) []byte {
	image := make([]byte, n)
	for i := range image {
		image[i] = byte(i)
	}
	return image
}

func countPrefix(lines []string, prefix string) int {
	n := 0
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func TestEncode(t *testing.T) {
	assert.Equal(t, "f3020\n", Encode(CmdGetSync))
	assert.Equal(t, "f5120\n", Encode(CmdLeaveProgmode))
	assert.Equal(t, "f55400020\n", Encode(CmdLoadAddress, LoadAddress(64)...))
	assert.Equal(t, "f640002460aff20\n", Encode(CmdProgPage, ProgPage([]byte{0x0a, 0xff})...))
}

func TestPageWordAddress(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Equal(t, uint16(i*64), PageWordAddress(i))
	}
	assert.Equal(t, uint16(0xffc0), PageWordAddress(1023))
}

func TestFlash_CommandSequence(t *testing.T) {
	tests := []struct {
		size     int
		pages    int
		lastPage int
	}{
		{1, 1, 1},
		{128, 1, 128},
		{129, 2, 1},
		{300, 3, 44},
		{1024, 8, 128},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d bytes", tt.size), func(t *testing.T) {
			bus := &fakeBus{}
			require.NoError(t, quickSequencer(bus).Flash(context.Background(), testImage(tt.size)))

			lines := bus.lines
			require.Len(t, lines, 2+2*tt.pages)
			assert.Equal(t, 1, countPrefix(lines, "f30"))
			assert.Equal(t, 1, countPrefix(lines, "f51"))
			assert.Equal(t, tt.pages, countPrefix(lines, "f55"))
			assert.Equal(t, tt.pages, countPrefix(lines, "f64"))

			assert.Equal(t, "f3020\n", lines[0])
			assert.Equal(t, "f5120\n", lines[len(lines)-1])

			for i := 0; i < tt.pages; i++ {
				load := lines[1+2*i]
				assert.Equal(t, Encode(CmdLoadAddress, byte(i*64), byte(i*64>>8)), load)
			}

			last := lines[len(lines)-2]
			wantPrefix := fmt.Sprintf("f64%02x%02x46", tt.lastPage>>8, tt.lastPage&0xff)
			assert.True(t, strings.HasPrefix(last, wantPrefix), "last page %q, want prefix %q", last, wantPrefix)
			assert.Len(t, last, 1+2*(4+tt.lastPage+1)+1)
		})
	}
}

func TestFlash_PageData(t *testing.T) {
	bus := &fakeBus{}
	image := testImage(200)
	require.NoError(t, quickSequencer(bus).Flash(context.Background(), image))

	assert.Equal(t, Encode(CmdProgPage, ProgPage(image[:128])...), bus.lines[2])
	assert.Equal(t, Encode(CmdProgPage, ProgPage(image[128:])...), bus.lines[4])
}

func TestFlash_AckTimeoutAborts(t *testing.T) {
	bus := &fakeBus{failAt: 3}
	err := quickSequencer(bus).Flash(context.Background(), testImage(500))

	require.ErrorIs(t, err, ErrNoAck)
	var pe *PageError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 0, pe.Page)

	var ate *AckTimeoutError
	require.True(t, errors.As(err, &ate))
	assert.Equal(t, CmdProgPage, ate.Command)

	// Nothing is sent after the failing command
	assert.Len(t, bus.lines, 3)
}

func TestFlash_SyncFailure(t *testing.T) {
	bus := &fakeBus{failAt: 1}
	err := quickSequencer(bus).Flash(context.Background(), testImage(10))
	require.ErrorIs(t, err, ErrNoAck)
	assert.Len(t, bus.lines, 1)
}

func TestFlash_AckTimeoutPassedToBus(t *testing.T) {
	bus := &fakeBus{}
	require.NoError(t, quickSequencer(bus).Flash(context.Background(), testImage(10)))
	for _, d := range bus.timeouts {
		assert.Equal(t, DefaultAckTimeout, d)
	}

	unbounded := &fakeBus{}
	require.NoError(t, quickSequencer(unbounded, WithAckTimeout(0)).Flash(context.Background(), testImage(10)))
	for _, d := range unbounded.timeouts {
		assert.Zero(t, d)
	}
}

func TestFlash_InvalidImage(t *testing.T) {
	bus := &fakeBus{}
	seq := quickSequencer(bus)

	assert.ErrorIs(t, seq.Flash(context.Background(), nil), ErrEmptyImage)
	assert.ErrorIs(t, seq.Flash(context.Background(), make([]byte, MaxImageSize+1)), ErrImageTooLarge)
	assert.Empty(t, bus.lines)
}

func TestFlash_Progress(t *testing.T) {
	var phases []string
	var last Progress
	bus := &fakeBus{}
	seq := quickSequencer(bus, WithProgressCallback(func(p Progress) {
		phases = append(phases, p.Phase)
		last = p
	}))

	require.NoError(t, seq.Flash(context.Background(), testImage(300)))

	assert.Equal(t, []string{
		PhaseSync,
		PhaseProgramming, PhaseProgramming, PhaseProgramming,
		PhaseLeaving,
		PhaseComplete,
	}, phases)
	assert.Equal(t, 100.0, last.Percentage)
	assert.Equal(t, 300, last.BytesWritten)
	assert.Equal(t, 3, last.TotalPages)
}

func TestFlash_SyncSettle(t *testing.T) {
	bus := &fakeBus{}
	seq := New(bus, WithAckSettle(0), WithSyncSettle(40*time.Millisecond))

	start := time.Now()
	require.NoError(t, seq.Flash(context.Background(), testImage(1)))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestFlash_Cancelled(t *testing.T) {
	bus := &fakeBus{}
	ctx, cancel := context.WithCancel(context.Background())
	seq := quickSequencer(bus, WithProgressCallback(func(p Progress) {
		if p.Phase == PhaseProgramming && p.CurrentPage == 1 {
			cancel()
		}
	}))

	err := seq.Flash(ctx, testImage(1000))
	require.ErrorIs(t, err, context.Canceled)
	// sync + first page only
	assert.Len(t, bus.lines, 3)
}

func TestFlashGroup(t *testing.T) {
	bus := &fakeBus{}
	seq := quickSequencer(bus)

	require.NoError(t, seq.FlashGroup(context.Background(), bus, testImage(10)))
	assert.Equal(t, 1, bus.resets)
	assert.Equal(t, "s0:251\n", bus.lines[0])
	assert.Equal(t, "f3020\n", bus.lines[1])
}

func TestFlash_OverBus(t *testing.T) {
	line := &ackTransport{}
	bus := fead.New(line, fead.WithSettleDelay(0))

	require.NoError(t, quickSequencer(bus).Flash(context.Background(), testImage(130)))
	assert.Equal(t, []string{
		"f3020\n",
		"f55000020\n",
		Encode(CmdProgPage, ProgPage(testImage(130)[:128])...),
		"f55400020\n",
		Encode(CmdProgPage, ProgPage(testImage(130)[128:])...),
		"f5120\n",
	}, line.writes)
}

func TestFlash_HoldsBusForSession(t *testing.T) {
	line := &ackTransport{}
	bus := fead.New(line, fead.WithSettleDelay(0))

	pinged := make(chan error, 1)
	var once sync.Once
	line.onWrite = func(string) {
		once.Do(func() {
			go func() { pinged <- bus.Ping(context.Background()) }()
		})
	}

	seq := quickSequencer(bus, WithSyncSettle(50*time.Millisecond))
	require.NoError(t, seq.Flash(context.Background(), testImage(200)))

	select {
	case err := <-pinged:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ping never ran after the session")
	}

	line.mu.Lock()
	writes := append([]string(nil), line.writes...)
	line.mu.Unlock()
	require.Len(t, writes, 7)
	assert.Equal(t, "f5120\n", writes[5])
	assert.Equal(t, fead.LinePing, writes[6])
}

// ackTransport is a fead.Transport that answers every write with "ok".
type ackTransport struct {
	mu     sync.Mutex
	writes []string
	subs   []chan string

	// onWrite runs after each write is recorded.
	onWrite func(line string)
}

type ackSub struct{ ch chan string }

func (s ackSub) Lines() <-chan string { return s.ch }
func (s ackSub) Unsubscribe()         {}

func (a *ackTransport) WriteLine(line string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writes = append(a.writes, line)
	for _, ch := range a.subs {
		ch <- "ok\n"
	}
	a.subs = nil
	if a.onWrite != nil {
		a.onWrite(line)
	}
	return nil
}

func (a *ackTransport) NextLine() fead.Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch := make(chan string, 1)
	a.subs = append(a.subs, ch)
	return ackSub{ch: ch}
}

func (a *ackTransport) Listen() fead.Subscription {
	return a.NextLine()
}
