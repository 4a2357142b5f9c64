// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for reading and writing device parameters",
	Long: `Control FEAD devices via an interactive terminal UI.

This command provides a TUI for exploring the devices on a bus connected via
WebSocket or UART (direct connection).

Features:
  - Device discovery (broadcast DISCOVER, UID probe of every device)
  - GET and SET of any parameter, by number or vocabulary name
  - Controller liveness checks
  - Statistics tracking
  - Event logging
  - Automatic reconnection on connection loss

The TUI discovers devices first before enabling control. Tab switches between
the device list and the control panel. Arrow keys navigate the device list.
Press r to run discovery again.

Supports both serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

func runControl(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	m := initialControlModel(ctx, s)

	// Create TUI program with alt screen and mouse support
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	go watchConnection(ctx, s, p)

	_, err = p.Run()
	runErr := ctx.Err()
	cancel() // Stop reconnecting before the transport is closed
	if err != nil && runErr == nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// watchConnection reopens the transport whenever its reader exits, until ctx
// is done
func watchConnection(ctx context.Context, s *session, p *tea.Program) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.line.Done():
		}

		p.Send(connectionLostMsg{err: s.line.Err()})
		if !reconnect(ctx, s) {
			return // Shutdown requested during reconnect
		}
		p.Send(reconnectedMsg{connInfo: s.connInfo})
	}
}

// reconnect attempts to reopen the transport with exponential backoff.
// Returns false if ctx ended first.
func reconnect(ctx context.Context, s *session) bool {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}

		err := s.line.Open(ctx)
		if err == nil {
			return true
		}
		logger.Debug().Err(err).Dur("backoff", backoff).Msg("reconnect failed")

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
