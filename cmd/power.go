// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	"github.com/Thermoquad/fead/pkg/transport"
	"github.com/spf13/cobra"
)

var (
	powerPin      string
	powerInverted bool
)

var powerCmd = &cobra.Command{
	Use:   "power <on|off>",
	Short: "Switch the bus supply",
	Long: `Switch power to the devices on the bus.

By default the controller is asked to switch the supply (p1/p0). Adapters
that wire a modem control line to a supply switch are driven directly with
--pin dtr or --pin rts; --inverted swaps the line levels.

Exit codes:
  0 - Power switched
  1 - Controller did not acknowledge
  2 - Connection error`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runPower,
}

func init() {
	rootCmd.AddCommand(powerCmd)
	powerCmd.Flags().StringVar(&powerPin, "pin", "", "Modem control line switching the supply (dtr or rts)")
	powerCmd.Flags().BoolVar(&powerInverted, "inverted", false, "The supply is on when the line is low")
}

// parseOnOff parses "on"/"off" and their 1/0 forms
func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "1":
		return true, nil
	case "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("want on or off, got %q", s)
}

func runPower(cmd *cobra.Command, args []string) error {
	on, err := parseOnOff(args[0])
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("pin") {
		cfg.Power.Pin = powerPin
	}
	if cmd.Flags().Changed("inverted") {
		cfg.Power.Inverted = powerInverted
	}

	ctx, cancel := commandContext()
	defer cancel()

	s := mustOpenSession(ctx)
	defer s.Close()

	if err := switchPower(ctx, s, on); err != nil {
		return exitOnNoResponse(err)
	}
	fmt.Printf("Power %s\n", args[0])
	return nil
}

// switchPower switches the supply through the configured modem line, or
// through the controller when no pin is configured
func switchPower(ctx context.Context, s *session, on bool) error {
	if cfg.Power.Pin == "" {
		return s.bus.Power(ctx, on)
	}

	pin, err := transport.ParsePin(cfg.Power.Pin)
	if err != nil {
		return err
	}
	var sw transport.PowerPin
	sw, err = transport.ModemLine(s.line, pin, cfg.Power.Inverted)
	if err != nil {
		return err
	}
	logger.Debug().Stringer("pin", pin).Bool("on", on).Msg("switching power")
	return sw.Set(on)
}
