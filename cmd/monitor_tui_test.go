// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 seconds"},
		{time.Second, "1 second"},
		{90 * time.Second, "1 minute and 30 seconds"},
		{2 * time.Hour, "2 hours"},
		{26*time.Hour + 3*time.Minute + 1*time.Second, "1 day, 2 hours, 3 minutes, and 1 second"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatElapsed(tt.d), tt.d.String())
	}
}

func TestMonitorModel_HandleLine(t *testing.T) {
	m := initialMonitorModel("test", false)
	ts := time.Now()

	m.handleLine(lineMsg{timestamp: ts, line: "g3:255:1234"})
	m.handleLine(lineMsg{timestamp: ts, line: "g3:7:5"})
	m.handleLine(lineMsg{timestamp: ts, line: "s9:254:9"})
	m.handleLine(lineMsg{timestamp: ts, line: "q"})
	m.handleLine(lineMsg{timestamp: ts, line: "garbage"})

	devices := m.sortedDevices()
	require.Len(t, devices, 2)
	assert.Equal(t, 3, devices[0].address)
	assert.Equal(t, uint64(2), devices[0].lines)
	assert.Equal(t, 7, devices[0].last.Param)
	assert.Equal(t, 9, devices[1].address)

	c := m.stats.Snapshot()
	assert.Equal(t, uint64(5), c.LinesReceived)
	assert.Equal(t, uint64(1), c.Malformed)

	// Two new-device entries and one malformed entry; control lines and
	// replies are only logged with showAll
	require.Len(t, m.eventLog, 3)
	assert.True(t, m.eventLog[2].isError)
}

func TestMonitorModel_ShowAll(t *testing.T) {
	m := initialMonitorModel("test", true)
	m.handleLine(lineMsg{timestamp: time.Now(), line: "p1"})
	m.handleLine(lineMsg{timestamp: time.Now(), line: "g3:255:1"})

	require.Len(t, m.eventLog, 3)
	assert.Contains(t, m.eventLog[0].message, "Control line")
	assert.Contains(t, m.eventLog[2].message, "UID(255) = 1")
}

func TestMonitorModel_ConnectionLost(t *testing.T) {
	m := initialMonitorModel("test", false)
	updated, _ := m.Update(connectionLostMsg{err: errors.New("boom")})

	mm := updated.(monitorModel)
	assert.False(t, mm.connected)
	require.Len(t, mm.eventLog, 1)
	assert.Contains(t, mm.eventLog[0].message, "boom")
}

func TestMonitorModel_LogLimit(t *testing.T) {
	m := initialMonitorModel("test", false)
	m.maxLogEntries = 3
	for i := 0; i < 10; i++ {
		m.addLogEntry(time.Now(), "entry", false)
	}
	assert.Len(t, m.eventLog, 3)
}
