// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import (
	"fmt"
	"strings"
	"time"
)

// ParamNamer maps parameter ids to names, e.g. a vocabulary loaded from a
// firmware header.
type ParamNamer interface {
	Name(param int) (string, bool)
}

// FormatParamName returns the human-readable name for a parameter id
func FormatParamName(param int, names ParamNamer) string {
	switch param {
	case ParamReset:
		return "RESET"
	case ParamVersion:
		return "VERSION"
	case ParamDiscover:
		return "DISCOVER"
	case ParamAddress:
		return "ADDRESS"
	case ParamUID:
		return "UID"
	}
	if names != nil {
		if name, ok := names.Name(param); ok {
			return name
		}
	}
	return "UNKNOWN"
}

// IsControlLine reports whether line is a controller probe or a flashing
// command rather than a device packet.
func IsControlLine(line string) bool {
	body := strings.TrimRight(line, "\r\n")
	switch body {
	case "p0", "p1", "v", "q":
		return true
	}
	return len(body) > 1 && body[0] == 'f'
}

// FormatLine formats a wire line into a human-readable string. Lines that are
// not device packets (probes, flashing commands, noise) are shown verbatim.
func FormatLine(ts time.Time, dir Direction, line string, names ParamNamer) string {
	timestamp := ts.Format("15:04:05.000")
	body := strings.TrimRight(line, "\r\n")

	if strings.HasPrefix(body, "f") && len(body) > 1 {
		return fmt.Sprintf("[%s] %s FLASH %s\n", timestamp, dir, body[1:])
	}

	switch body {
	case "p0":
		return fmt.Sprintf("[%s] %s POWER off\n", timestamp, dir)
	case "p1":
		return fmt.Sprintf("[%s] %s POWER on\n", timestamp, dir)
	case "v":
		return fmt.Sprintf("[%s] %s VERSION?\n", timestamp, dir)
	case "q":
		return fmt.Sprintf("[%s] %s PING\n", timestamp, dir)
	}

	resp, err := Decode(body)
	if err != nil {
		return fmt.Sprintf("[%s] %s %q (%v)\n", timestamp, dir, body, err)
	}

	method := "?"
	if len(body) > 0 {
		switch Method(body[0]) {
		case MethodGet, MethodSet:
			method = Method(body[0]).String()
		}
	}

	target := fmt.Sprintf("addr=%d", resp.Address)
	if resp.Address == AddressBroadcast {
		target = "addr=ALL"
	}

	result := fmt.Sprintf("[%s] %s %s %s %s(%d)", timestamp, dir, method, target,
		FormatParamName(resp.Param, names), resp.Param)
	if resp.Value != nil {
		result += fmt.Sprintf(" value=%d", *resp.Value)
	}
	if resp.ExtraValue != nil {
		result += fmt.Sprintf(" extra=%d", *resp.ExtraValue)
	}
	return result + "\n"
}
