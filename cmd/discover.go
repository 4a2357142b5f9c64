// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/fead/pkg/fead"
	"github.com/spf13/cobra"
)

var (
	discoverScan       bool
	discoverFindOnline bool
	discoverAddresses  []int
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover devices on the bus",
	Long: `Find the devices attached to the bus.

Modes:
  Broadcast (default): Broadcast a DISCOVER query and list every address that
                       replies within the broadcast window (--window).

  Find online (--find-online): Broadcast a UID query instead; devices reply
                       with their unique id.

  Scan (--scan):       Ask each address for its UID in turn. Slower, but
                       immune to reply collisions on the shared line.
                       Defaults to addresses 1-19 and 100-109; override
                       with --addresses.

Examples:
  fead discover --port /dev/ttyUSB0
  fead discover --scan --addresses 1,2,3

Exit codes:
  0 - Discovery successful (at least one device found)
  1 - Discovery failed (no devices)
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().BoolVar(&discoverScan, "scan", false, "Poll addresses one by one")
	discoverCmd.Flags().BoolVar(&discoverFindOnline, "find-online", false, "Broadcast a UID query")
	discoverCmd.Flags().IntSliceVar(&discoverAddresses, "addresses", nil, "Addresses polled by --scan")
	discoverCmd.MarkFlagsMutuallyExclusive("scan", "find-online")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	s := mustOpenSession(ctx)
	defer s.Close()

	mode := "broadcast"
	switch {
	case discoverScan:
		mode = "scan"
	case discoverFindOnline:
		mode = "find online"
	}

	fmt.Printf("fead - Device Discovery\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	fmt.Printf("Mode: %s\n", mode)
	if !discoverScan {
		fmt.Printf("Window: %v\n", s.bus.Config().BroadcastWindow)
	}
	fmt.Println()

	start := time.Now()
	var devices []*fead.Device
	var err error
	switch {
	case discoverScan:
		devices, err = s.bus.Scan(ctx, discoverAddresses)
	case discoverFindOnline:
		devices, err = s.bus.FindOnline(ctx)
	default:
		devices, err = s.bus.Discover(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Discovery error: %v\n", err)
	}

	for _, d := range devices {
		fmt.Printf("Device found:\n")
		fmt.Printf("  Address: %d\n", d.Address)
		if d.UID != nil {
			fmt.Printf("  UID: %d (0x%X)\n", *d.UID, *d.UID)
		}
	}

	// Summary
	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Devices found: %d in %v\n", len(devices), time.Since(start).Round(time.Millisecond))
	if len(devices) > 0 {
		fmt.Printf("Addresses: %s\n", formatAddresses(devices))
	}

	if len(devices) == 0 {
		fmt.Printf("No devices discovered. Check connection and device power.\n")
		os.Exit(1)
	}
	return nil
}

// formatAddresses lists device addresses as "1, 2, 7"
func formatAddresses(devices []*fead.Device) string {
	parts := make([]string, len(devices))
	for i, d := range devices {
		parts[i] = fmt.Sprint(d.Address)
	}
	return strings.Join(parts, ", ")
}
