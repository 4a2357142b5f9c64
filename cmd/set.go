// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/Thermoquad/fead/pkg/fead"
	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <address> <param> <value> [extra]",
	Short: "Write a parameter of a device",
	Long: `Send a SET request and print the reply.

The parameter is a number or a name from the vocabulary (--vocab). Values
accept decimal, 0x hex and 0b binary notation.

Address 0 broadcasts the request to all devices.

Examples:
  fead set 3 FAN_SPEED 120 --vocab firmware/params.h
  fead set 3 ADDRESS 7

Exit codes:
  0 - Reply received
  1 - No reply after all attempts
  2 - Connection error`,
	Args: cobra.RangeArgs(3, 4),
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	return runMethod(fead.MethodSet, args)
}
