// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// fead - FEAD Bus Driver
//
// A CLI tool for addressing, discovering, flashing and monitoring devices
// on a FEAD multi-drop serial bus.

package main

import (
	"os"

	"github.com/Thermoquad/fead/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
