// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/Thermoquad/fead/pkg/fead"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <address> <param> [value [extra]]",
	Short: "Read a parameter from a device",
	Long: `Send a GET request and print the reply.

The parameter is a number or a name from the vocabulary (--vocab). Reserved
names UID, ADDRESS, DISCOVER, VERSION and RESET are always known. Optional
values are sent as query arguments.

Address 0 broadcasts the request and prints every reply heard during the
broadcast window.

Examples:
  fead get 3 UID --port /dev/ttyUSB0
  fead get 3 FAN_SPEED --vocab firmware/params.h
  fead get 0 255

Exit codes:
  0 - Reply received
  1 - No reply after all attempts
  2 - Connection error`,
	Args: cobra.RangeArgs(2, 4),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	return runMethod(fead.MethodGet, args)
}

// runMethod is shared by get and set
func runMethod(method fead.Method, args []string) error {
	req, err := parseRequest(method, args)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	s := mustOpenSession(ctx)
	defer s.Close()

	logger.Debug().Str("connection", s.connInfo).Str("request", req.String()).Msg("sending")
	replies, err := runRequest(ctx, os.Stdout, s.bus, req)
	if err != nil {
		return exitOnNoResponse(err)
	}
	if req.IsBroadcast() && replies == 0 {
		fmt.Printf("No replies within %v\n", s.bus.Config().BroadcastWindow)
		os.Exit(1)
	}
	return nil
}
