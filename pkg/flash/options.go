// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package flash

import (
	"time"

	"github.com/rs/zerolog"
)

// Default timing
const (
	DefaultAckTimeout = 2 * time.Second
	DefaultAckSettle  = 5 * time.Millisecond
	DefaultSyncSettle = 300 * time.Millisecond
	DefaultBootDelay  = 500 * time.Millisecond
)

// Config holds the sequencer configuration.
type Config struct {
	// AckTimeout bounds the wait for each acknowledgement. Zero waits
	// indefinitely.
	AckTimeout time.Duration

	// AckSettle is the pause after every acknowledgement
	AckSettle time.Duration

	// SyncSettle is the extra pause after GET_SYNC
	SyncSettle time.Duration

	// BootDelay is the wait between the reset broadcast and GET_SYNC when
	// flashing a group
	BootDelay time.Duration

	// ProgressCallback is called during programming (optional)
	ProgressCallback ProgressCallback

	// Logger receives one line per command at debug level
	Logger zerolog.Logger
}

func defaultConfig() Config {
	return Config{
		AckTimeout: DefaultAckTimeout,
		AckSettle:  DefaultAckSettle,
		SyncSettle: DefaultSyncSettle,
		BootDelay:  DefaultBootDelay,
		Logger:     zerolog.Nop(),
	}
}

// Option is a functional option for configuring the Sequencer.
type Option func(*Config)

// WithAckTimeout bounds the wait for each acknowledgement. Zero disables the
// bound.
//
// Example:
//
//	seq := flash.New(bus, flash.WithAckTimeout(5*time.Second))
func WithAckTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.AckTimeout = d
		}
	}
}

// WithAckSettle sets the pause after every acknowledgement.
func WithAckSettle(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.AckSettle = d
		}
	}
}

// WithSyncSettle sets the pause after GET_SYNC.
func WithSyncSettle(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.SyncSettle = d
		}
	}
}

// WithBootDelay sets the wait between resetting a group and syncing.
func WithBootDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.BootDelay = d
		}
	}
}

// WithProgressCallback sets a callback function to track programming progress.
//
// Example:
//
//	seq := flash.New(bus,
//	    flash.WithProgressCallback(func(p flash.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}
