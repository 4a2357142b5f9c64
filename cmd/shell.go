// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Thermoquad/fead/pkg/fead"
	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive console for the bus",
	Long: `Open an interactive console on the bus.

The connection stays open between commands, so device state and statistics
persist for the session. Type 'help' for the command list. Tab completes
command names.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

// console runs shell commands against one session
type console struct {
	s        *session
	rl       *readline.Instance
	registry *fead.Registry
	out      io.Writer
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "fead> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    shellCompleter(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	// Keep log output from clobbering the prompt
	logger = logger.Output(zerolog.ConsoleWriter{Out: rl.Stderr(), TimeFormat: "15:04:05.000"})

	s := mustOpenSession(ctx)
	defer s.Close()

	c := &console{s: s, rl: rl, registry: fead.NewRegistry(), out: rl.Stdout()}
	fmt.Fprintf(c.out, "fead - Interactive Shell\nConnection: %s\n", s.connInfo)
	c.printHelp()
	c.run(ctx)
	return nil
}

// shellCompleter completes command names
func shellCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("get"),
		readline.PcItem("set"),
		readline.PcItem("discover", readline.PcItem("scan"), readline.PcItem("online")),
		readline.PcItem("devices"),
		readline.PcItem("ping"),
		readline.PcItem("version"),
		readline.PcItem("power", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem("reset"),
		readline.PcItem("address"),
		readline.PcItem("names"),
		readline.PcItem("stats"),
		readline.PcItem("quit"),
	)
}

func (c *console) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if !c.execute(ctx, input) {
			fmt.Fprintln(c.out, "Exiting...")
			return
		}
	}
}

// execute runs one command line and returns false when the shell should exit
func (c *console) execute(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		c.printHelp()
	case "get", "g":
		err = c.cmdRequest(ctx, fead.MethodGet, args)
	case "set", "s":
		err = c.cmdRequest(ctx, fead.MethodSet, args)
	case "discover", "d":
		err = c.cmdDiscover(ctx, args)
	case "devices":
		c.cmdDevices(ctx)
	case "ping":
		err = c.s.bus.Ping(ctx)
		if err == nil {
			fmt.Fprintln(c.out, "Controller responding")
		}
	case "version":
		var version string
		version, err = c.s.bus.Version(ctx)
		if err == nil {
			fmt.Fprintf(c.out, "Controller: %s\n", version)
		}
	case "power":
		err = c.cmdPower(ctx, args)
	case "reset":
		err = c.s.bus.ResetAll(ctx)
		if err == nil {
			fmt.Fprintln(c.out, "Reset sent to all devices")
		}
	case "address":
		err = c.cmdAddress(ctx, args)
	case "names":
		c.cmdNames()
	case "stats":
		fmt.Fprint(c.out, c.s.bus.Statistics())
	case "quit", "exit", "q":
		return false
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}

	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
	return true
}

func (c *console) printHelp() {
	fmt.Fprintln(c.out, `
Commands:
  Requests:
    get <addr> <param> [value [extra]]  - Read a parameter (address 0 broadcasts)
    set <addr> <param> <value> [extra]  - Write a parameter
    address <addr> <new-addr>           - Move a device to a new address

  Devices:
    discover [scan|online]  - Find devices (broadcast, address scan or UID broadcast)
    devices                 - List known devices and probe their UIDs

  Controller:
    ping                    - Check the controller answers
    version                 - Show the controller firmware version
    power <on|off>          - Switch the bus supply
    reset                   - Reset all devices into their bootloader

  Other:
    names                   - List parameter names
    stats                   - Show bus statistics
    help                    - Show this help
    quit                    - Exit`)
}

func (c *console) cmdRequest(ctx context.Context, method fead.Method, args []string) error {
	req, err := parseRequest(method, args)
	if err != nil {
		return err
	}
	replies, err := runRequest(ctx, c.out, c.s.bus, req)
	if req.IsBroadcast() {
		fmt.Fprintf(c.out, "%d replies\n", replies)
	}
	return err
}

func (c *console) cmdDiscover(ctx context.Context, args []string) error {
	var devices []*fead.Device
	var err error
	mode := ""
	if len(args) > 0 {
		mode = args[0]
	}
	switch mode {
	case "":
		devices, err = c.s.bus.Discover(ctx)
	case "scan":
		devices, err = c.s.bus.Scan(ctx, nil)
	case "online":
		devices, err = c.s.bus.FindOnline(ctx)
	default:
		return fmt.Errorf("unknown discovery mode %q (use scan or online)", mode)
	}

	c.registry.Merge(devices)
	for _, d := range devices {
		fmt.Fprintf(c.out, "  %s\n", d)
	}
	fmt.Fprintf(c.out, "%d devices found, %d known\n", len(devices), c.registry.Len())
	return err
}

func (c *console) cmdDevices(ctx context.Context) {
	if c.registry.Len() == 0 {
		fmt.Fprintln(c.out, "No devices known. Run 'discover' first.")
		return
	}
	c.registry.ProbeAll(ctx, c.s.bus)
	for _, d := range c.registry.Devices() {
		fmt.Fprintf(c.out, "  %s\n", d)
	}
}

func (c *console) cmdPower(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: power <on|off>")
	}
	on, err := parseOnOff(args[0])
	if err != nil {
		return err
	}
	if err := switchPower(ctx, c.s, on); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Power %s\n", args[0])
	return nil
}

func (c *console) cmdAddress(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: address <addr> <new-addr>")
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	newAddr, err := parseAddress(args[1])
	if err != nil {
		return err
	}
	resp, err := c.s.bus.SetAddress(ctx, addr, newAddr)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, describeResponse(resp))
	return nil
}

func (c *console) cmdNames() {
	for _, name := range params.Names() {
		id, _ := params.Lookup(name)
		fmt.Fprintf(c.out, "  %3d %s\n", id, name)
	}
}
