// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	pingCount    int
	pingInterval time.Duration
	pingAddress  int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the bus controller, or a device, answers",
	Long: `Send liveness queries and report round-trip times.

Without --address the controller is pinged with its liveness probe; any reply
counts. With --address the device's UID is requested instead.

This is useful for verifying:
  - Serial or WebSocket connection is established
  - HTTP Basic authentication works
  - The controller (or device) is processing requests

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
	pingCmd.Flags().DurationVar(&pingInterval, "interval", 100*time.Millisecond, "Delay between pings")
	pingCmd.Flags().IntVar(&pingAddress, "address", 0, "Ping this device instead of the controller")
}

func runPing(cmd *cobra.Command, args []string) error {
	if pingCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	ctx, cancel := commandContext()
	defer cancel()

	s := mustOpenSession(ctx)
	defer s.Close()

	target := "controller"
	if pingAddress != 0 {
		target = fmt.Sprintf("device %d", pingAddress)
	}

	fmt.Printf("fead - Ping\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	fmt.Printf("Target: %s\n", target)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	successCount := 0
	failCount := 0
	for i := 1; i <= pingCount && ctx.Err() == nil; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		startTime := time.Now()
		var err error
		var uid int64
		if pingAddress != 0 {
			uid, err = s.bus.UID(ctx, pingAddress)
		} else {
			err = s.bus.Ping(ctx)
		}
		rtt := time.Since(startTime)

		switch {
		case err != nil:
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		case pingAddress != 0:
			fmt.Printf("reply from %s, uid=%d, rtt=%v\n", target, uid, rtt.Round(time.Millisecond))
			successCount++
		default:
			fmt.Printf("reply from %s, rtt=%v\n", target, rtt.Round(time.Millisecond))
			successCount++
		}

		if i < pingCount {
			time.Sleep(pingInterval)
		}
	}

	sent := successCount + failCount
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% packet loss\n",
		sent, successCount, float64(failCount)/float64(max(sent, 1))*100)
	fmt.Print(s.bus.Statistics())

	if failCount > 0 || sent < pingCount {
		os.Exit(1)
	}
	return nil
}
