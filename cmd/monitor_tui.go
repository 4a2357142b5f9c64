// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Thermoquad/fead/pkg/fead"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// Traffic heard from one address
type deviceActivity struct {
	address  int
	lines    uint64
	last     fead.Response
	lastSeen time.Time
}

// TUI model
type monitorModel struct {
	connInfo      string
	showAll       bool
	started       time.Time
	stats         *fead.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	devices       map[int]*deviceActivity
	connected     bool
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type lineMsg struct {
	timestamp time.Time
	line      string
}
type connectionLostMsg struct {
	err error
}

// formatElapsed formats a duration to a human-friendly string
func formatElapsed(d time.Duration) string {
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialMonitorModel(connInfo string, showAll bool) monitorModel {
	return monitorModel{
		connInfo:      connInfo,
		showAll:       showAll,
		started:       time.Now(),
		stats:         fead.NewStatistics(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		devices:       make(map[int]*deviceActivity),
		connected:     true,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tickCmd()

	case connectionLostMsg:
		m.connected = false
		m.addLogEntry(time.Now(), fmt.Sprintf("Connection lost: %v", msg.err), true)

	case lineMsg:
		m.handleLine(msg)
	}

	return m, nil
}

// handleLine counts a received line and records which device sent it
func (m *monitorModel) handleLine(msg lineMsg) {
	m.stats.Observe(fead.DirectionIn, msg.line)

	if fead.IsControlLine(msg.line) {
		if m.showAll {
			m.addLogEntry(msg.timestamp, fmt.Sprintf("Control line %q", msg.line), false)
		}
		return
	}

	resp, err := fead.Decode(msg.line)
	if err != nil {
		m.addLogEntry(msg.timestamp, fmt.Sprintf("MALFORMED %q: %v", msg.line, err), true)
		return
	}

	if resp.Address != fead.AddressBroadcast {
		d, ok := m.devices[resp.Address]
		if !ok {
			d = &deviceActivity{address: resp.Address}
			m.devices[resp.Address] = d
			m.addLogEntry(msg.timestamp, fmt.Sprintf("New device at address %d", resp.Address), false)
		}
		d.lines++
		d.last = resp
		d.lastSeen = msg.timestamp
	}

	if m.showAll {
		m.addLogEntry(msg.timestamp, describeResponse(resp), false)
	}
}

func (m *monitorModel) addLogEntry(ts time.Time, message string, isError bool) {
	entry := eventLogEntry{
		timestamp: ts,
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// sortedDevices returns device activity by address
func (m monitorModel) sortedDevices() []*deviceActivity {
	out := make([]*deviceActivity, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].address < out[j].address })
	return out
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("FEAD - BUS MONITOR"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All lines"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Press 'q' to quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	if m.connected {
		s.WriteString(statsValueStyle.Render("✓ Listening"))
		s.WriteString(headerStyle.Render(fmt.Sprintf(" for %s", formatElapsed(time.Since(m.started)))))
	} else {
		s.WriteString(errorStyle.Render("✗ Disconnected"))
	}
	s.WriteString("\n\n")

	// Statistics
	c := m.stats.Snapshot()
	var validPercent, errorPercent float64
	if c.LinesReceived > 0 {
		validPercent = float64(c.LinesReceived-c.Malformed) * 100.0 / float64(c.LinesReceived)
		errorPercent = float64(c.Malformed) * 100.0 / float64(c.LinesReceived)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", c.LinesReceived)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", c.LinesReceived-c.Malformed, validPercent)),
		statsLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", c.Malformed, errorPercent)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Line Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f lines/s", c.LineRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if c.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", c.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", c.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Devices heard so far
	if len(m.devices) > 0 {
		s.WriteString(statsLabelStyle.Render("Devices:"))
		s.WriteString("\n")

		devicesContent := strings.Builder{}
		for i, d := range m.sortedDevices() {
			if i > 0 {
				devicesContent.WriteString("\n")
			}
			devicesContent.WriteString(fmt.Sprintf("%s %s   %s %s",
				statsLabelStyle.Render(fmt.Sprintf("Address %3d:", d.address)),
				statsValueStyle.Render(describeResponse(d.last)),
				headerStyle.Render(fmt.Sprintf("%d lines, last", d.lines)),
				headerStyle.Render(d.lastSeen.Format("15:04:05")),
			))
		}

		s.WriteString(boxStyle.Render(devicesContent.String()))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 12 - len(m.devices)
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
