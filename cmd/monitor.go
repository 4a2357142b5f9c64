// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/fead/pkg/fead"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch bus traffic and detect malformed lines",
	Long: `Passively listen to the bus and decode every line as it arrives.

Nothing is sent. Each received line is decoded and counted:
  - Device packets are shown with parameter names (--vocab)
  - Probe and flashing lines are shown verbatim
  - Lines that fail to decode are counted and highlighted as malformed
  - Statistics and trends (line rate, error rate)

In TUI mode only malformed lines are logged by default. Use --show-all to log
every line. With --tui=false every line is printed, with periodic statistics
summaries at the configured interval.

Supports both serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Log all lines (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds, 0 disables)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	s := mustOpenSession(ctx)
	defer s.Close()

	if useTUI {
		return runMonitorTUI(ctx, s)
	}
	return runMonitorText(ctx, s)
}

// runMonitorText prints every line until interrupted or the connection drops
func runMonitorText(ctx context.Context, s *session) error {
	fmt.Printf("fead - Bus Monitor\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := fead.NewStatistics()
	sub := s.line.Listen()
	defer sub.Unsubscribe()

	var tick <-chan time.Time
	if statsInterval > 0 {
		ticker := time.NewTicker(time.Duration(statsInterval) * time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}

	lines := sub.Lines()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				// Done follows
				lines = nil
				continue
			}
			stats.Observe(fead.DirectionIn, line)
			printMonitorLine(time.Now(), line)
		case <-tick:
			fmt.Printf("\n%s\n", stats)
		case <-s.line.Done():
			fmt.Printf("Connection closed: %v\n", s.line.Err())
			fmt.Printf("\n%s", stats)
			return nil
		case <-ctx.Done():
			fmt.Printf("\n%s", stats)
			return nil
		}
	}
}

// printMonitorLine prints a line, highlighting lines that fail to decode
func printMonitorLine(ts time.Time, line string) {
	if _, err := fead.Decode(line); err != nil && !fead.IsControlLine(line) {
		fmt.Printf("[%s] \033[1;31mMALFORMED:\033[0m %q (%v)\n", ts.Format("15:04:05.000"), line, err)
		return
	}
	fmt.Print(fead.FormatLine(ts, fead.DirectionIn, line, params))
}

// runMonitorTUI runs the monitor in TUI mode
func runMonitorTUI(ctx context.Context, s *session) error {
	m := initialMonitorModel(s.connInfo, showAll)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	sub := s.line.Listen()
	defer sub.Unsubscribe()

	go func() {
		lines := sub.Lines()
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					lines = nil
					continue
				}
				p.Send(lineMsg{timestamp: time.Now(), line: line})
			case <-s.line.Done():
				p.Send(connectionLostMsg{err: s.line.Err()})
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
