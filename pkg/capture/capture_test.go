// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/Thermoquad/fead/pkg/fead"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var events []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, e)
	}
}

func TestWriterReader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	ts := time.Date(2025, 3, 1, 10, 0, 0, 123456789, time.UTC)
	w.now = func() time.Time { return ts }

	_, err := uuid.Parse(w.Session())
	require.NoError(t, err)

	require.NoError(t, w.Record(fead.DirectionOut, "g1:255"))
	require.NoError(t, w.Record(fead.DirectionIn, "g1:255:42"))
	require.NoError(t, w.Close())
	require.ErrorIs(t, w.Record(fead.DirectionIn, "late"), ErrClosed)

	events := readAll(t, NewReader(&buf))
	require.Len(t, events, 2)

	assert.Equal(t, fead.DirectionOut, events[0].Direction)
	assert.Equal(t, "g1:255", events[0].Line)
	assert.Equal(t, w.Session(), events[0].Session)
	assert.True(t, events[0].Timestamp.Equal(ts), "timestamp %v, want %v", events[0].Timestamp, ts)

	assert.Equal(t, fead.DirectionIn, events[1].Direction)
	assert.Equal(t, "g1:255:42", events[1].Line)
}

func TestEncodeDecodeEvent(t *testing.T) {
	e := Event{Timestamp: time.Unix(1700000000, 5).UTC(), Session: "s", Direction: fead.DirectionIn, Line: "q"}
	data, err := EncodeEvent(e)
	require.NoError(t, err)

	got, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, e.Line, got.Line)
	assert.True(t, e.Timestamp.Equal(got.Timestamp))

	_, err = DecodeEvent([]byte{0xff})
	require.Error(t, err)
}

func TestCreate_AppendsSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bus.cbor")

	first, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, first.Record(fead.DirectionOut, "g0:253"))
	require.NoError(t, first.Close())
	require.NoError(t, first.Close())

	second, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, second.Record(fead.DirectionOut, "q"))
	require.NoError(t, second.Record(fead.DirectionIn, "ok"))
	require.NoError(t, second.Close())

	r, err := Open(path, Filter{})
	require.NoError(t, err)
	assert.Len(t, readAll(t, r), 3)
	require.NoError(t, r.Close())

	in := fead.DirectionIn
	r, err = Open(path, Filter{Session: second.Session(), Direction: &in})
	require.NoError(t, err)
	defer r.Close()
	events := readAll(t, r)
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].Line)
}

func TestFilter_Since(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	since := base.Add(time.Minute)
	f := Filter{Since: &since}

	assert.False(t, f.matches(Event{Timestamp: base}))
	assert.True(t, f.matches(Event{Timestamp: since}))
}

func TestReader_Corrupt(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xa1, 0x01}))
	_, err := r.Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}
