// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/fead/pkg/fead"
	"github.com/spf13/cobra"
)

var (
	lineTestDuration time.Duration
	lineTestPacket   bool
)

var lineTestCmd = &cobra.Command{
	Use:   "line_test",
	Short: "Test connection stability without sending requests",
	Long: `Open the connection and listen without sending anything, logging every
line received and any connection error. Useful for debugging connection
stability of a serial adapter or WebSocket bridge.

With --packet the test ends successfully at the first well-formed device
packet instead of running for the full duration.

Exit codes:
  0 - Connection stable (or packet received with --packet)
  1 - Connection lost (or no packet received with --packet)
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runLineTest,
}

func init() {
	rootCmd.AddCommand(lineTestCmd)
	lineTestCmd.Flags().DurationVar(&lineTestDuration, "duration", 30*time.Second, "Test duration")
	lineTestCmd.Flags().BoolVar(&lineTestPacket, "packet", false, "Stop at the first valid packet")
}

func runLineTest(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	s := mustOpenSession(ctx)
	defer s.Close()

	fmt.Printf("fead - Line Test\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	fmt.Printf("Duration: %v\n\n", lineTestDuration)

	sub := s.line.Listen()
	defer sub.Unsubscribe()

	start := time.Now()
	deadline := time.NewTimer(lineTestDuration)
	defer deadline.Stop()
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	linesReceived := 0
	malformed := 0
	results := func(result string) {
		fmt.Printf("\n--- Test Results ---\n")
		fmt.Printf("Duration: %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("Lines received: %d\n", linesReceived)
		fmt.Printf("Malformed lines: %d\n", malformed)
		fmt.Printf("Result: %s\n", result)
	}

	fmt.Printf("Listening for data...\n\n")
	lines := sub.Lines()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			linesReceived++
			fmt.Print(fead.FormatLine(time.Now(), fead.DirectionIn, line, params))
			if fead.IsControlLine(line) {
				continue
			}
			resp, err := fead.Decode(line)
			if err != nil {
				malformed++
				continue
			}
			if lineTestPacket {
				fmt.Printf("\nSUCCESS: Received valid packet from device %d\n", resp.Address)
				results("PASSED (packet received)")
				return nil
			}

		case <-heartbeat.C:
			remaining := time.Until(start.Add(lineTestDuration)).Seconds()
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), remaining)

		case <-s.line.Done():
			fmt.Printf("\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), s.line.Err())
			results("FAILED (connection error)")
			os.Exit(1)

		case <-deadline.C:
			if lineTestPacket {
				fmt.Fprintf(os.Stderr, "TIMEOUT: No valid packet received within %v\n", lineTestDuration)
				results("FAILED (no packet)")
				os.Exit(1)
			}
			results("PASSED (connection stable)")
			return nil

		case <-ctx.Done():
			results("INTERRUPTED")
			return nil
		}
	}
}
