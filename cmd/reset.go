// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset every device into its bootloader",
	Long: `Broadcast the RESET command. All devices restart into their bootloader,
ready for "fead flash". The bus stays reserved for the broadcast window so
that nothing else is sent while devices reboot.

Exit codes:
  0 - Reset sent
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

var addressCmd = &cobra.Command{
	Use:   "address <address> <new-address>",
	Short: "Move a device to a new bus address",
	Long: `Write the ADDRESS parameter of a device.

Exit codes:
  0 - Device acknowledged its new address
  1 - No reply after all attempts
  2 - Connection error`,
	Args: cobra.ExactArgs(2),
	RunE: runAddress,
}

func init() {
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(addressCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	s := mustOpenSession(ctx)
	defer s.Close()

	if err := s.bus.ResetAll(ctx); err != nil {
		return err
	}
	fmt.Printf("Reset sent to all devices\n")
	return nil
}

func runAddress(cmd *cobra.Command, args []string) error {
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	newAddr, err := parseAddress(args[1])
	if err != nil {
		return err
	}
	if addr == 0 || newAddr == 0 {
		return fmt.Errorf("address 0 is reserved for broadcasts")
	}

	ctx, cancel := commandContext()
	defer cancel()

	s := mustOpenSession(ctx)
	defer s.Close()

	resp, err := s.bus.SetAddress(ctx, addr, newAddr)
	if err != nil {
		return exitOnNoResponse(err)
	}
	fmt.Println(describeResponse(resp))
	return nil
}
