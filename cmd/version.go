// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/fead/pkg/fead"
	"github.com/spf13/cobra"
)

var versionAddress int

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the firmware version of the controller or a device",
	Long: `Query a firmware version.

Without --address the controller's version probe is sent and its reply is
printed as received. With --address the device's VERSION parameter is read.

Exit codes:
  0 - Version received
  1 - No reply after all attempts
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().IntVar(&versionAddress, "address", 0, "Query this device instead of the controller")
}

func runVersion(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	s := mustOpenSession(ctx)
	defer s.Close()

	if versionAddress == 0 {
		version, err := s.bus.Version(ctx)
		if err != nil {
			return exitOnNoResponse(err)
		}
		fmt.Printf("Controller: %s\n", version)
		return nil
	}

	resp, err := s.bus.Get(ctx, versionAddress, fead.ParamVersion)
	if err != nil {
		return exitOnNoResponse(err)
	}
	fmt.Printf("Device %d: %d\n", versionAddress, resp.ValueOr(0))
	return nil
}
