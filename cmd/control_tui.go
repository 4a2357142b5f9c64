// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/fead/pkg/fead"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	pingIntervalSeconds = 5 // Ping the controller every N seconds
)

// Focus states
const (
	focusDeviceList = iota
	focusParamInput
	focusValueInput
	focusGetButton
	focusSetButton
	focusCount
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// controlItem is a device shown in the device list
type controlItem struct {
	device fead.Device
	last   string
}

// Implement list.Item interface
func (d controlItem) Title() string { return fmt.Sprintf("Device %d", d.device.Address) }
func (d controlItem) Description() string {
	desc := "offline"
	if d.device.UID != nil {
		desc = fmt.Sprintf("uid %d", *d.device.UID)
	}
	if d.last != "" {
		desc += " | " + d.last
	}
	return desc
}
func (d controlItem) FilterValue() string { return strconv.Itoa(d.device.Address) }

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	ctx      context.Context
	bus      *fead.Bus
	registry *fead.Registry
	connInfo string

	// Device tracking
	deviceList list.Model

	// Discovery state
	discovering   bool
	discoveryDone bool

	// Monitoring
	eventLog      []eventLogEntry
	maxLogEntries int

	// Control
	paramInput   textinput.Model
	valueInput   textinput.Model
	focusedField int
	busy         bool

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool

	// Ping state
	lastPingTime   time.Time
	controllerSeen time.Time
	controllerOK   bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type discoveryResultMsg struct {
	found  int
	online []fead.Device
	err    error
}

type requestResultMsg struct {
	req  *fead.Request
	resp fead.Response
	err  error
}

type pingResultMsg struct {
	err error
}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(ctx context.Context, s *session) controlModel {
	paramInput := textinput.New()
	paramInput.Placeholder = "UID"
	paramInput.CharLimit = 32
	paramInput.Width = 20

	valueInput := textinput.New()
	valueInput.Placeholder = "value[:extra]"
	valueInput.CharLimit = 32
	valueInput.Width = 20

	// Initialize device list with empty items
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	deviceList := list.New([]list.Item{}, delegate, 30, 10)
	deviceList.Title = "Devices"
	deviceList.SetShowStatusBar(false)
	deviceList.SetShowHelp(false)
	deviceList.SetFilteringEnabled(false)

	return controlModel{
		ctx:           ctx,
		bus:           s.bus,
		registry:      fead.NewRegistry(),
		connInfo:      s.connInfo,
		deviceList:    deviceList,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		paramInput:    paramInput,
		valueInput:    valueInput,
		focusedField:  focusDeviceList,
		discovering:   true,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

// discoverDevices broadcasts DISCOVER, merges the replies into the registry
// and probes every known device for its UID
func discoverDevices(ctx context.Context, bus *fead.Bus, registry *fead.Registry) tea.Cmd {
	return func() tea.Msg {
		found, err := bus.Discover(ctx)
		registry.Merge(found)

		online := registry.ProbeAll(ctx, bus)
		copies := make([]fead.Device, len(online))
		for i, d := range online {
			copies[i] = *d
		}
		return discoveryResultMsg{found: len(found), online: copies, err: err}
	}
}

// sendRequest runs req on the bus
func sendRequest(ctx context.Context, bus *fead.Bus, req *fead.Request) tea.Cmd {
	return func() tea.Msg {
		resp, err := bus.Do(ctx, req)
		return requestResultMsg{req: req, resp: resp, err: err}
	}
}

// pingController sends the controller liveness probe
func pingController(ctx context.Context, bus *fead.Bus) tea.Cmd {
	return func() tea.Msg {
		return pingResultMsg{err: bus.Ping(ctx)}
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return tea.Batch(controlTickCmd(), discoverDevices(m.ctx, m.bus, m.registry))
}

func (m *controlModel) startDiscovery() tea.Cmd {
	m.discovering = true
	m.addLogEntry("Discovering devices...", false)
	return discoverDevices(m.ctx, m.bus, m.registry)
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		return m.handleMouseMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		cmds = append(cmds, controlTickCmd())
		if m.discoveryDone && !m.connectionLost && time.Since(m.lastPingTime) >= time.Duration(pingIntervalSeconds)*time.Second {
			m.lastPingTime = time.Now()
			cmds = append(cmds, pingController(m.ctx, m.bus))
		}
		return m, tea.Batch(cmds...)

	case discoveryResultMsg:
		m.finishDiscovery(msg)

	case requestResultMsg:
		m.busy = false
		m.handleRequestResult(msg)

	case pingResultMsg:
		m.controllerOK = msg.err == nil
		if msg.err == nil {
			m.controllerSeen = time.Now()
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry(fmt.Sprintf("Connection lost (%v) - reconnecting...", msg.err), true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected - starting discovery", false)
		return m, m.startDiscovery()
	}

	// Update child components
	var cmd tea.Cmd
	switch m.focusedField {
	case focusParamInput:
		m.paramInput, cmd = m.paramInput.Update(msg)
		cmds = append(cmds, cmd)
	case focusValueInput:
		m.valueInput, cmd = m.valueInput.Update(msg)
		cmds = append(cmds, cmd)
	case focusDeviceList:
		m.deviceList, cmd = m.deviceList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if !m.editing() {
			m.quitting = true
			return m, tea.Quit
		}

	case "r":
		if !m.editing() && !m.discovering && !m.connectionLost {
			return m, m.startDiscovery()
		}

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "enter":
		if m.discoveryDone {
			return m.handleEnter()
		}
	}

	// Pass through to focused component
	var cmd tea.Cmd
	switch m.focusedField {
	case focusParamInput:
		m.paramInput, cmd = m.paramInput.Update(msg)
	case focusValueInput:
		m.valueInput, cmd = m.valueInput.Update(msg)
	case focusDeviceList:
		m.deviceList, cmd = m.deviceList.Update(msg)
	}
	return m, cmd
}

// editing reports whether a text input has focus
func (m *controlModel) editing() bool {
	return m.focusedField == focusParamInput || m.focusedField == focusValueInput
}

func (m *controlModel) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	// Mouse clicks only select devices
	m.deviceList, _ = m.deviceList.Update(msg)
	return m, nil
}

func (m *controlModel) cycleFocus(delta int) *controlModel {
	if !m.discoveryDone || m.selectedDevice() == nil {
		m.focusedField = focusDeviceList
		return m
	}

	m.focusedField = (m.focusedField + delta + focusCount) % focusCount

	m.paramInput.Blur()
	m.valueInput.Blur()
	switch m.focusedField {
	case focusParamInput:
		m.paramInput.Focus()
	case focusValueInput:
		m.valueInput.Focus()
	}
	return m
}

func (m *controlModel) handleEnter() (tea.Model, tea.Cmd) {
	// Don't allow requests while connection is lost
	if m.connectionLost {
		m.addLogEntry("Cannot send request: connection lost", true)
		return m, nil
	}
	if m.busy {
		return m, nil
	}

	var method fead.Method
	switch m.focusedField {
	case focusGetButton, focusParamInput:
		method = fead.MethodGet
	case focusSetButton, focusValueInput:
		method = fead.MethodSet
	default:
		return m, nil
	}

	req, err := m.buildRequest(method)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return m, nil
	}

	m.busy = true
	return m, sendRequest(m.ctx, m.bus, req)
}

// buildRequest assembles a request for the selected device from the inputs
func (m *controlModel) buildRequest(method fead.Method) (*fead.Request, error) {
	selected := m.selectedDevice()
	if selected == nil {
		return nil, fmt.Errorf("no device selected")
	}

	param := m.paramInput.Value()
	if param == "" {
		param = m.paramInput.Placeholder
	}
	args := []string{strconv.Itoa(selected.device.Address), param}
	args = append(args, strings.FieldsFunc(m.valueInput.Value(), func(r rune) bool {
		return r == ':' || r == ' '
	})...)
	return parseRequest(method, args)
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Header
	helpText := "q=quit"
	if m.discoveryDone {
		helpText = "q=quit r=rediscover Tab=switch"
	}
	s.WriteString(titleStyle.Render("FEAD CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s", connStatus, helpText)))
	s.WriteString("\n")

	// Controller liveness (below header)
	if !m.controllerSeen.IsZero() {
		status := statsValueStyle.Render("responding")
		if !m.controllerOK {
			status = errorStyle.Render(fmt.Sprintf("silent since %s", formatElapsed(time.Since(m.controllerSeen))))
		}
		s.WriteString(fmt.Sprintf(" %s %s", statsLabelStyle.Render("Controller:"), status))
	}
	s.WriteString("\n\n")

	if !m.discoveryDone {
		s.WriteString(warningStyle.Render("Discovering devices..."))
		s.WriteString("\n\n")
		s.WriteString(m.renderEventLog())
	} else {
		s.WriteString(m.renderControlView())
	}

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

var (
	focusedBoxStyle = boxStyle.
			BorderForeground(lipgloss.Color("12"))

	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("12")).
			Padding(0, 2)

	focusedButtonStyle = buttonStyle.
				Background(lipgloss.Color("10"))
)

func (m controlModel) renderControlView() string {
	var s strings.Builder

	// Layout: left panel (devices) | right panel (control)
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6

	// Device list panel
	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusDeviceList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	devicePanel := listStyle.Render(m.deviceList.View())

	controlPanel := boxStyle.Width(rightWidth).Render(m.renderControlPanel())

	// Join panels horizontally
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, devicePanel, " ", controlPanel))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n\n")

	s.WriteString(m.renderEventLog())

	return s.String()
}

func (m controlModel) renderControlPanel() string {
	var s strings.Builder

	selected := m.selectedDevice()
	if selected == nil {
		s.WriteString(headerStyle.Render("No device selected"))
		return s.String()
	}

	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Selected:"), selected.Title()))
	s.WriteString(fmt.Sprintf("%s %s\n\n", statsLabelStyle.Render("Status:"), statsValueStyle.Render(selected.Description())))

	s.WriteString(statsLabelStyle.Render("Param: "))
	s.WriteString(m.renderInput(m.paramInput, m.focusedField == focusParamInput))
	s.WriteString("\n")
	s.WriteString(statsLabelStyle.Render("Value: "))
	s.WriteString(m.renderInput(m.valueInput, m.focusedField == focusValueInput))
	s.WriteString("\n\n")

	for _, b := range []struct {
		text  string
		focus int
	}{
		{"[ Get ]", focusGetButton},
		{"[ Set ]", focusSetButton},
	} {
		if m.focusedField == b.focus {
			s.WriteString(focusedButtonStyle.Render(b.text))
		} else {
			s.WriteString(buttonStyle.Render(b.text))
		}
		s.WriteString(" ")
	}
	if m.busy {
		s.WriteString(warningStyle.Render(" waiting..."))
	}

	return s.String()
}

// renderInput shows the input when focused and its value as plain text
// otherwise
func (m controlModel) renderInput(in textinput.Model, focused bool) string {
	if focused {
		return in.View()
	}
	val := in.Value()
	if val == "" {
		val = in.Placeholder
	}
	return fmt.Sprintf("[%s]", val)
}

func (m controlModel) renderStatisticsBar() string {
	c := m.bus.Statistics().Snapshot()

	var okPercent float64
	if c.Requests > 0 {
		okPercent = float64(c.Completed) * 100.0 / float64(c.Requests)
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Requests:"), statsValueStyle.Render(fmt.Sprintf("%d", c.Requests)),
		statsLabelStyle.Render("OK:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", okPercent)),
		statsLabelStyle.Render("Retries:"), statsValueStyle.Render(fmt.Sprintf("%d", c.Retries())),
		statsLabelStyle.Render("Timeouts:"), func() string {
			if c.Timeouts > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", c.Timeouts))
			}
			return statsValueStyle.Render("0")
		}(),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f lines/s", c.LineRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderEventLog() string {
	var s strings.Builder

	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := 8
	if len(m.eventLog) < logHeight {
		logHeight = len(m.eventLog)
	}
	startIdx := len(m.eventLog) - logHeight

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")

			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}

			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) finishDiscovery(msg discoveryResultMsg) {
	m.discovering = false
	m.discoveryDone = true

	if msg.err != nil {
		m.addLogEntry(fmt.Sprintf("Discovery error: %v", msg.err), true)
	}
	m.addLogEntry(fmt.Sprintf("Discovery complete: %d replied, %d online", msg.found, len(msg.online)), false)

	// Keep the last value shown for devices already listed
	last := make(map[int]string)
	for _, item := range m.deviceList.Items() {
		if ci, ok := item.(controlItem); ok {
			last[ci.device.Address] = ci.last
		}
	}

	items := make([]list.Item, len(msg.online))
	for i, d := range msg.online {
		items[i] = controlItem{device: d, last: last[d.Address]}
	}
	m.deviceList.SetItems(items)

	if len(items) == 0 {
		m.addLogEntry("No devices online. Press r to retry.", true)
	}
}

func (m *controlModel) handleRequestResult(msg requestResultMsg) {
	if msg.err != nil {
		m.addLogEntry(fmt.Sprintf("%s: %v", msg.req, msg.err), true)
		return
	}

	m.addLogEntry(fmt.Sprintf("%s -> %s", msg.req, strings.TrimSpace(describeResponse(msg.resp))), false)

	items := m.deviceList.Items()
	for i, item := range items {
		ci, ok := item.(controlItem)
		if !ok || ci.device.Address != msg.resp.Address {
			continue
		}
		ci.last = fmt.Sprintf("%s=%d", fead.FormatParamName(msg.resp.Param, params), msg.resp.ValueOr(0))
		if msg.resp.Param == fead.ParamUID && msg.resp.Value != nil {
			uid := *msg.resp.Value
			ci.device.UID = &uid
		}
		m.deviceList.SetItem(i, ci)
	}
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m *controlModel) selectedDevice() *controlItem {
	item, ok := m.deviceList.SelectedItem().(controlItem)
	if !ok {
		return nil
	}
	return &item
}

func (m *controlModel) updateListSize() {
	height := m.height - 20
	if height < 6 {
		height = 6
	}
	m.deviceList.SetSize(28, height)
}
