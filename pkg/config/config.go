// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the fead CLI configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/fead/pkg/fead"
	"github.com/Thermoquad/fead/pkg/flash"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration. Command-line flags override it.
type Config struct {
	Port        string `yaml:"port"`
	Baud        int    `yaml:"baud"`
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`

	Vocab    string `yaml:"vocab"`
	Capture  string `yaml:"capture"`
	LogLevel string `yaml:"log_level"`

	Bus   BusConfig   `yaml:"bus"`
	Flash FlashConfig `yaml:"flash"`
	Power PowerConfig `yaml:"power"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
}

// BusConfig holds request timing.
type BusConfig struct {
	Timeout  Duration `yaml:"timeout"`
	Attempts int      `yaml:"attempts"`
	Scale    *bool    `yaml:"scale_timeout"`
	Settle   Duration `yaml:"settle"`
	Window   Duration `yaml:"window"`
}

// FlashConfig holds bootloader timing.
type FlashConfig struct {
	AckTimeout Duration `yaml:"ack_timeout"`
	BootDelay  Duration `yaml:"boot_delay"`
}

// PowerConfig selects how bus power is switched. An empty Pin means the
// controller's p0/p1 commands.
type PowerConfig struct {
	Pin      string `yaml:"pin"`
	Inverted bool   `yaml:"inverted"`
}

// MQTTConfig configures the MQTT bridge.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Prefix   string `yaml:"prefix"`
	ClientID string `yaml:"client_id"`
}

// Duration is a time.Duration written as a Go duration string ("50ms").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", value.Line, s)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LoadError describes a configuration file that could not be loaded.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.File, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Baud:     115200,
		LogLevel: "warn",
		Bus: BusConfig{
			Timeout:  Duration(fead.DefaultTimeout),
			Attempts: fead.DefaultMaxAttempts,
			Settle:   Duration(fead.DefaultSettleDelay),
			Window:   Duration(fead.DefaultBroadcastWindow),
		},
		Flash: FlashConfig{
			AckTimeout: Duration(flash.DefaultAckTimeout),
			BootDelay:  Duration(flash.DefaultBootDelay),
		},
		MQTT: MQTTConfig{
			Prefix: "fead",
		},
	}
}

// Parse reads YAML on top of the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &LoadError{Message: err.Error()}
	}
	return cfg, nil
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
		}
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	}
	if c.Bus.Attempts < 1 {
		return fmt.Errorf("bus.attempts must be at least 1, got %d", c.Bus.Attempts)
	}
	if c.Bus.Timeout <= 0 {
		return fmt.Errorf("bus.timeout must be positive")
	}
	if c.Bus.Settle < 0 || c.Bus.Window < 0 || c.Flash.AckTimeout < 0 || c.Flash.BootDelay < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	switch c.Power.Pin {
	case "", "dtr", "rts":
	default:
		return fmt.Errorf("power.pin must be dtr or rts, got %q", c.Power.Pin)
	}
	return nil
}

// BusOptions converts the bus section into fead options.
func (c *Config) BusOptions() []fead.Option {
	opts := []fead.Option{
		fead.WithMaxAttempts(c.Bus.Attempts),
		fead.WithTimeout(c.Bus.Timeout.Std()),
		fead.WithSettleDelay(c.Bus.Settle.Std()),
		fead.WithBroadcastWindow(c.Bus.Window.Std()),
	}
	if c.Bus.Scale != nil {
		opts = append(opts, fead.WithTimeoutScaling(*c.Bus.Scale))
	}
	return opts
}

// FlashOptions converts the flash section into flash options.
func (c *Config) FlashOptions() []flash.Option {
	return []flash.Option{
		flash.WithAckTimeout(c.Flash.AckTimeout.Std()),
		flash.WithBootDelay(c.Flash.BootDelay.Std()),
	}
}
