// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/fead/pkg/flash"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// Messages
type flashProgressMsg flash.Progress
type flashDoneMsg struct {
	err error
}

// flashModel shows the progress of one flash session
type flashModel struct {
	bar      progress.Model
	cancel   context.CancelFunc
	progress flash.Progress
	done     bool
	err      error
	width    int
}

func initialFlashModel(cancel context.CancelFunc) flashModel {
	return flashModel{
		bar:    progress.New(progress.WithDefaultGradient()),
		cancel: cancel,
		width:  80,
	}
}

func (m flashModel) Init() tea.Cmd {
	return nil
}

func (m flashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// Abort; the sequencer stops at the next command
			m.cancel()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(msg.Width-4, 80)

	case flashProgressMsg:
		m.progress = flash.Progress(msg)
		return m, m.bar.SetPercent(m.progress.Percentage / 100)

	case flashDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m flashModel) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("FEAD - FIRMWARE FLASH"))
	s.WriteString("\n\n")

	phase := m.progress.Phase
	if phase == "" {
		phase = "starting"
	}
	s.WriteString(fmt.Sprintf("%s %s\n\n", statsLabelStyle.Render("Phase:"), statsValueStyle.Render(phase)))
	s.WriteString(m.bar.View())
	s.WriteString("\n\n")

	content := fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Pages:"), statsValueStyle.Render(fmt.Sprintf("%d/%d", m.progress.CurrentPage, m.progress.TotalPages)),
		statsLabelStyle.Render("Bytes:"), statsValueStyle.Render(fmt.Sprintf("%d", m.progress.BytesWritten)),
		statsLabelStyle.Render("Elapsed:"), statsValueStyle.Render(m.progress.ElapsedTime.Round(time.Millisecond).String()),
	)
	s.WriteString(boxStyle.Render(content))
	s.WriteString("\n")

	switch {
	case m.done && m.err != nil:
		s.WriteString(errorStyle.Render("✗ " + m.err.Error()))
		s.WriteString("\n")
	case m.done:
		s.WriteString(statsValueStyle.Render("✓ Done"))
		s.WriteString("\n")
	default:
		s.WriteString(headerStyle.Render("Press 'q' to abort"))
		s.WriteString("\n")
	}

	return s.String()
}
