// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_Matched(t *testing.T) {
	ft := newFakeTransport(echoReply(4242))
	bus := fastBus(ft)

	resp, err := bus.Get(context.Background(), 3, ParamUID)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Address)
	assert.Equal(t, ParamUID, resp.Param)
	assert.Equal(t, int64(4242), resp.ValueOr(0))
	assert.Equal(t, []string{"g3:255\n"}, ft.Writes())
}

func TestGet_Arguments(t *testing.T) {
	ft := newFakeTransport(echoReply(1))
	bus := fastBus(ft)

	_, err := bus.Get(context.Background(), 3, 10, 7, 8)
	require.NoError(t, err)
	_, err = bus.Set(context.Background(), 3, 11, 5)
	require.NoError(t, err)
	_, err = bus.Set(context.Background(), 3, 12, 5, 6)
	require.NoError(t, err)

	assert.Equal(t, []string{"g3:10:7:8\n", "s3:11:5\n", "s3:12:5:6\n"}, ft.Writes())
}

func TestGet_RetryExhausted(t *testing.T) {
	ft := newFakeTransport(nil)
	bus := fastBus(ft, WithMaxAttempts(3))

	start := time.Now()
	_, err := bus.Get(context.Background(), 5, ParamUID)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrNoResponse)
	var nre *NoResponseError
	require.True(t, errors.As(err, &nre))
	assert.Equal(t, 3, nre.Attempts)
	assert.Equal(t, OutcomeTimeout, nre.Last)
	assert.Equal(t, "g5:255", nre.Request)

	assert.Equal(t, []string{"g5:255\n", "g5:255\n", "g5:255\n"}, ft.Writes())

	// 10ms + 20ms + 30ms with scaling
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestGet_MismatchDoesNotComplete(t *testing.T) {
	ft := newFakeTransport(func(string) []string {
		return []string{"g6:255:1\n"}
	})
	bus := fastBus(ft, WithMaxAttempts(2))

	_, err := bus.Get(context.Background(), 5, ParamUID)
	var nre *NoResponseError
	require.True(t, errors.As(err, &nre))
	assert.Equal(t, OutcomeMismatch, nre.Last)
	assert.Len(t, ft.Writes(), 2)
}

func TestGet_MatchAfterMismatch(t *testing.T) {
	var calls atomic.Int32
	ft := newFakeTransport(func(string) []string {
		if calls.Add(1) == 1 {
			return []string{"g5:254:1\n"}
		}
		return []string{"g5:255:77\n"}
	})
	bus := fastBus(ft)

	uid, err := bus.UID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(77), uid)
	assert.Len(t, ft.Writes(), 2)
}

func TestGet_MalformedIsRetried(t *testing.T) {
	ft := newFakeTransport(func(string) []string {
		return []string{"#garbage\n"}
	})
	bus := fastBus(ft, WithMaxAttempts(2))

	_, err := bus.Get(context.Background(), 5, ParamUID)
	var nre *NoResponseError
	require.True(t, errors.As(err, &nre))
	assert.Equal(t, OutcomeMalformed, nre.Last)
	assert.Len(t, ft.Writes(), 2)
}

func TestGet_TransportUnavailable(t *testing.T) {
	ft := newFakeTransport(echoReply(1))
	ft.SetClosed(true)
	stats := NewStatistics()
	bus := fastBus(ft, WithStatistics(stats))

	_, err := bus.Get(context.Background(), 5, ParamUID)
	require.ErrorIs(t, err, ErrTransportUnavailable)
	assert.NotErrorIs(t, err, ErrNoResponse)

	c := stats.Snapshot()
	assert.Equal(t, uint64(1), c.Attempts)
	assert.Equal(t, uint64(1), c.WriteFailures)
	assert.Equal(t, uint64(1), c.Failed)
}

func TestBus_FIFOOrder(t *testing.T) {
	ft := newFakeTransport(echoReply(1))
	bus := fastBus(ft)
	ctx := context.Background()

	held, err := bus.sched.Acquire(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 6; i++ {
		wg.Add(1)
		go func(addr int) {
			defer wg.Done()
			_, err := bus.Get(ctx, addr, ParamUID)
			assert.NoError(t, err)
		}(i)
		require.Eventually(t, func() bool { return bus.Pending() == i+1 },
			time.Second, time.Millisecond)
	}

	bus.sched.Release(held)
	wg.Wait()

	var want []string
	for i := 1; i <= 6; i++ {
		want = append(want, fmt.Sprintf("g%d:255\n", i))
	}
	assert.Equal(t, want, ft.Writes())
	assert.Equal(t, 0, bus.Pending())
}

func TestBus_IdenticalRequestsAreDistinct(t *testing.T) {
	ft := newFakeTransport(echoReply(1))
	bus := fastBus(ft)

	req := NewGet(2, ParamUID)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := bus.Do(context.Background(), req)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, ft.Writes(), 3)
}

func TestBus_CancelWhileQueued(t *testing.T) {
	ft := newFakeTransport(echoReply(1))
	bus := fastBus(ft)

	held, err := bus.sched.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := bus.Get(ctx, 1, ParamUID)
		done <- err
	}()
	require.Eventually(t, func() bool { return bus.Pending() == 2 }, time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 1, bus.Pending())
	assert.Empty(t, ft.Writes())

	bus.sched.Release(held)
}

func TestProbeLines(t *testing.T) {
	ft := newFakeTransport(func(line string) []string {
		if line == LineVersion {
			return []string{"fead 1.4\r\n"}
		}
		return []string{"ok\n"}
	})
	bus := fastBus(ft)
	ctx := context.Background()

	require.NoError(t, bus.Ping(ctx))
	require.NoError(t, bus.Power(ctx, true))
	require.NoError(t, bus.Power(ctx, false))

	version, err := bus.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fead 1.4", version)

	assert.Equal(t, []string{"q\n", "p1\n", "p0\n", "v\n"}, ft.Writes())
}

func TestPing_NoResponse(t *testing.T) {
	ft := newFakeTransport(nil)
	bus := fastBus(ft, WithMaxAttempts(1))

	err := bus.Ping(context.Background())
	require.ErrorIs(t, err, ErrNoResponse)
}

func TestExchange(t *testing.T) {
	ft := newFakeTransport(func(line string) []string {
		return []string{"ack\n"}
	})
	bus := fastBus(ft)

	reply, err := bus.Exchange(context.Background(), "f3020\n", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "ack\n", reply)
	assert.Equal(t, []string{"f3020\n"}, ft.Writes())
}

func TestExchange_Timeout(t *testing.T) {
	ft := newFakeTransport(nil)
	bus := fastBus(ft, WithMaxAttempts(5))

	_, err := bus.Exchange(context.Background(), "f5120\n", 20*time.Millisecond)
	var nre *NoResponseError
	require.True(t, errors.As(err, &nre))
	assert.Equal(t, 1, nre.Attempts)
	assert.Len(t, ft.Writes(), 1)
}

func TestExchange_Unbounded(t *testing.T) {
	ft := newFakeTransport(nil)
	bus := fastBus(ft)

	done := make(chan string, 1)
	go func() {
		reply, err := bus.Exchange(context.Background(), "f3020\n", 0)
		assert.NoError(t, err)
		done <- reply
	}()

	require.Eventually(t, func() bool { return len(ft.Writes()) == 1 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	ft.Inject("late\n")

	select {
	case reply := <-done:
		assert.Equal(t, "late\n", reply)
	case <-time.After(time.Second):
		t.Fatal("Exchange did not return")
	}
}

func TestExchange_UnboundedTransportLost(t *testing.T) {
	ft := newFakeTransport(nil)
	bus := fastBus(ft)

	done := make(chan error, 1)
	go func() {
		_, err := bus.Exchange(context.Background(), "f3020\n", 0)
		done <- err
	}()

	require.Eventually(t, func() bool { return len(ft.Writes()) == 1 }, time.Second, time.Millisecond)
	ft.Drop()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrTransportUnavailable)
		assert.NotErrorIs(t, err, ErrNoResponse)
	case <-time.After(time.Second):
		t.Fatal("Exchange did not return after the transport closed")
	}
	assert.Equal(t, 0, bus.Pending())
}

func TestGet_TransportLostWhileWaiting(t *testing.T) {
	ft := newFakeTransport(nil)
	stats := NewStatistics()
	bus := fastBus(ft, WithTimeout(5*time.Second), WithStatistics(stats))

	go func() {
		assert.Eventually(t, func() bool { return len(ft.Writes()) == 1 }, time.Second, time.Millisecond)
		ft.Drop()
	}()

	start := time.Now()
	_, err := bus.Get(context.Background(), 5, ParamUID)
	require.ErrorIs(t, err, ErrTransportUnavailable)
	assert.Less(t, time.Since(start), time.Second)

	// Not retried
	assert.Len(t, ft.Writes(), 1)
	c := stats.Snapshot()
	assert.Equal(t, uint64(1), c.Attempts)
	assert.Equal(t, uint64(1), c.Failed)
}

func TestHold_KeepsQueueForSession(t *testing.T) {
	echo := echoReply(1)
	ft := newFakeTransport(func(line string) []string {
		if strings.HasPrefix(line, "f") {
			return []string{"ok\n"}
		}
		return echo(line)
	})
	bus := fastBus(ft)
	ctx := context.Background()

	queued := make(chan error, 1)
	var kept Exchanger
	err := bus.Hold(ctx, func(ex Exchanger) error {
		kept = ex
		if _, err := ex.Exchange(ctx, "f3020\n", 50*time.Millisecond); err != nil {
			return err
		}
		go func() {
			_, err := bus.Get(ctx, 1, ParamUID)
			queued <- err
		}()
		require.Eventually(t, func() bool { return bus.Pending() == 2 },
			time.Second, time.Millisecond)
		_, err := ex.Exchange(ctx, "f5120\n", 50*time.Millisecond)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, <-queued)

	assert.Equal(t, []string{"f3020\n", "f5120\n", "g1:255\n"}, ft.Writes())
	assert.Equal(t, 0, bus.Pending())

	_, err = kept.Exchange(ctx, "f3020\n", 50*time.Millisecond)
	assert.ErrorIs(t, err, errHoldReleased)
	assert.Len(t, ft.Writes(), 3)
}

func TestHold_ReturnsCallbackError(t *testing.T) {
	bus := fastBus(newFakeTransport(nil))
	boom := errors.New("boom")

	err := bus.Hold(context.Background(), func(Exchanger) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, bus.Pending())
}

func TestRetryPolicy_TimeoutFor(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, Timeout: 12 * time.Millisecond, Scale: true}
	assert.Equal(t, 12*time.Millisecond, p.TimeoutFor(1))
	assert.Equal(t, 24*time.Millisecond, p.TimeoutFor(2))
	assert.Equal(t, 36*time.Millisecond, p.TimeoutFor(3))

	p.Scale = false
	assert.Equal(t, 12*time.Millisecond, p.TimeoutFor(3))

	assert.Equal(t, 1, RetryPolicy{}.attempts())
}

func TestNew_Options(t *testing.T) {
	bus := New(newFakeTransport(nil),
		WithMaxAttempts(7),
		WithTimeout(time.Second),
		WithTimeoutScaling(false),
		WithSettleDelay(0),
		WithBroadcastWindow(2*time.Second),
	)

	cfg := bus.Config()
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.Timeout)
	assert.False(t, cfg.Retry.Scale)
	assert.Equal(t, time.Duration(0), cfg.SettleDelay)
	assert.Equal(t, 2*time.Second, cfg.BroadcastWindow)
	assert.Nil(t, bus.Statistics())

	defaults := New(newFakeTransport(nil)).Config()
	assert.Equal(t, DefaultRetryPolicy(), defaults.Retry)
	assert.Equal(t, DefaultSettleDelay, defaults.SettleDelay)

	assert.Panics(t, func() { New(nil) })
}
