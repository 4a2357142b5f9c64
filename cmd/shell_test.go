// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/Thermoquad/fead/pkg/fead"
	"github.com/stretchr/testify/assert"
)

// Commands that fail argument checks never reach the bus, so no session is
// needed to exercise them.
func TestConsole_Execute(t *testing.T) {
	tests := []struct {
		input    string
		wantMore bool
		wantOut  string
	}{
		{"help", true, "Commands:"},
		{"names", true, "255 UID"},
		{"frobnicate", true, "Unknown command: frobnicate"},
		{"get 3", true, "Error: want <address> <param>"},
		{"set 3 UID", true, "Error: set needs a value"},
		{"discover sideways", true, "unknown discovery mode"},
		{"power", true, "usage: power <on|off>"},
		{"power dim", true, "want on or off"},
		{"address 3", true, "usage: address"},
		{"address 3 x", true, "invalid address"},
		{"QUIT", false, ""},
		{"exit", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var out bytes.Buffer
			c := &console{registry: fead.NewRegistry(), out: &out}

			more := c.execute(context.Background(), tt.input)
			assert.Equal(t, tt.wantMore, more)
			assert.Contains(t, out.String(), tt.wantOut)
		})
	}
}

func TestConsole_DevicesEmpty(t *testing.T) {
	var out bytes.Buffer
	c := &console{registry: fead.NewRegistry(), out: &out}
	c.execute(context.Background(), "devices")
	assert.Contains(t, out.String(), "No devices known")
}
