// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import (
	"time"

	"github.com/rs/zerolog"
)

// Config holds the Bus configuration.
type Config struct {
	// Retry controls attempts and reply timeouts of GET/SET requests
	Retry RetryPolicy

	// SettleDelay keeps the bus quiet between two queued exchanges
	SettleDelay time.Duration

	// BroadcastWindow is how long replies are collected after a broadcast
	BroadcastWindow time.Duration

	// Logger receives line traffic at debug level and failures at warn
	Logger zerolog.Logger

	// Stats collects request and line counters (optional)
	Stats *Statistics
}

func defaultConfig() Config {
	return Config{
		Retry:           DefaultRetryPolicy(),
		SettleDelay:     DefaultSettleDelay,
		BroadcastWindow: DefaultBroadcastWindow,
		Logger:          zerolog.Nop(),
	}
}

// Option is a functional option for configuring a Bus.
type Option func(*Config)

// WithMaxAttempts sets the number of attempts per request.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Retry.MaxAttempts = n
		}
	}
}

// WithTimeout sets the reply timeout of the first attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Retry.Timeout = d
		}
	}
}

// WithTimeoutScaling enables or disables timeout × attempt scaling.
func WithTimeoutScaling(scale bool) Option {
	return func(c *Config) {
		c.Retry.Scale = scale
	}
}

// WithRetryPolicy replaces the whole retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Config) {
		c.Retry = p
	}
}

// WithSettleDelay sets the quiet time between queued exchanges.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.SettleDelay = d
		}
	}
}

// WithBroadcastWindow sets the reply collection window of broadcasts.
func WithBroadcastWindow(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.BroadcastWindow = d
		}
	}
}

// WithLogger sets the logger.
//
// Example:
//
//	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
//	bus := fead.New(t, fead.WithLogger(logger))
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithStatistics makes the Bus record counters into s.
func WithStatistics(s *Statistics) Option {
	return func(c *Config) {
		c.Stats = s
	}
}
