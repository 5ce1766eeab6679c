// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// uartterm - Interactive serial terminal
//
// Sends typed text to a serial device as ASCII or as byte lists and shows
// received lines as text or numbers.

package main

import (
	"fmt"
	"os"

	"github.com/Thermoquad/uartterm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
