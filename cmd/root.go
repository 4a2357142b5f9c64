// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/fead/pkg/config"
	"github.com/Thermoquad/fead/pkg/vocab"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Configuration flags
	configPath  string
	logLevel    string
	capturePath string
	vocabPath   string

	// Bus timing flags
	busTimeout  time.Duration
	busAttempts int
	busSettle   time.Duration
	busWindow   time.Duration
)

// Settings resolved before any command runs
var (
	cfg    = config.Default()
	logger = zerolog.Nop()
	params = vocab.Reserved()
)

var rootCmd = &cobra.Command{
	Use:   "fead",
	Short: "FEAD bus driver",
	Long: `fead - A CLI tool for driving devices on a FEAD multi-drop serial bus.

Sends addressed GET/SET requests, discovers devices, flashes firmware and
monitors bus traffic through a bus controller attached to a serial port or
reachable through a WebSocket serial bridge.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the FEAD_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Settings can also be read from a YAML file with --config. Flags override
values from the file.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Configuration flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&capturePath, "capture", "", "Append bus traffic to a CBOR capture file")
	rootCmd.PersistentFlags().StringVar(&vocabPath, "vocab", "", "Firmware header declaring parameter names")

	// Bus timing flags
	rootCmd.PersistentFlags().DurationVar(&busTimeout, "timeout", cfg.Bus.Timeout.Std(), "Reply timeout of the first attempt")
	rootCmd.PersistentFlags().IntVar(&busAttempts, "attempts", cfg.Bus.Attempts, "Attempts per request")
	rootCmd.PersistentFlags().DurationVar(&busSettle, "settle", cfg.Bus.Settle.Std(), "Quiet time after each request")
	rootCmd.PersistentFlags().DurationVar(&busWindow, "window", cfg.Bus.Window.Std(), "Broadcast reply window")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadSettings merges the configuration file and flags, then sets up logging
// and the parameter vocabulary.
func loadSettings(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	override := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	override("port", func() { cfg.Port = portName })
	override("baud", func() { cfg.Baud = baudRate })
	override("url", func() { cfg.URL = wsURL })
	override("username", func() { cfg.Username = wsUsername })
	override("no-ssl-verify", func() { cfg.NoSSLVerify = wsNoSSLVerify })
	override("log-level", func() { cfg.LogLevel = logLevel })
	override("capture", func() { cfg.Capture = capturePath })
	override("vocab", func() { cfg.Vocab = vocabPath })
	override("timeout", func() { cfg.Bus.Timeout = config.Duration(busTimeout) })
	override("attempts", func() { cfg.Bus.Attempts = busAttempts })
	override("settle", func() { cfg.Bus.Settle = config.Duration(busSettle) })
	override("window", func() { cfg.Bus.Window = config.Duration(busWindow) })
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		Level(level).
		With().Timestamp().Logger()

	if cfg.Vocab != "" {
		v, err := vocab.FromHeader(cfg.Vocab)
		if err != nil {
			return err
		}
		params = v
		logger.Debug().Str("file", cfg.Vocab).Int("names", v.Len()).Msg("vocabulary loaded")
	}
	return nil
}
