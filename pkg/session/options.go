// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"fmt"
	"strings"
)

// Parity is the serial parity mode
type Parity string

const (
	ParityNone Parity = "none"
	ParityEven Parity = "even"
	ParityOdd  Parity = "odd"
)

var parities = []Parity{ParityNone, ParityEven, ParityOdd}

// ParseParity parses a case-insensitive parity name
func ParseParity(s string) (Parity, error) {
	p := Parity(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range parities {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown parity %q (use none, even or odd)", ErrInvalidOptions, s)
}

// Next returns the parity following p
func (p Parity) Next() Parity {
	for i, known := range parities {
		if known == p {
			return parities[(i+1)%len(parities)]
		}
	}
	return ParityNone
}

// BaudRates lists the preset rates offered by the terminal
var BaudRates = []int{300, 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}

// NextBaudRate returns the preset following rate, wrapping around.
// Rates that are not presets advance to the first preset above them.
func NextBaudRate(rate int) int {
	for _, preset := range BaudRates {
		if preset > rate {
			return preset
		}
	}
	return BaudRates[0]
}

// Options holds the frame parameters for a connection
type Options struct {
	BaudRate int
	DataBits int
	StopBits int
	Parity   Parity
}

// DefaultOptions returns 9600 8N1
func DefaultOptions() Options {
	return Options{
		BaudRate: 9600,
		DataBits: 8,
		StopBits: 1,
		Parity:   ParityNone,
	}
}

// Validate checks that every frame parameter is supported
func (o Options) Validate() error {
	if o.BaudRate <= 0 {
		return fmt.Errorf("%w: baud rate must be positive, got %d", ErrInvalidOptions, o.BaudRate)
	}
	if o.DataBits != 7 && o.DataBits != 8 {
		return fmt.Errorf("%w: data bits must be 7 or 8, got %d", ErrInvalidOptions, o.DataBits)
	}
	if o.StopBits != 1 && o.StopBits != 2 {
		return fmt.Errorf("%w: stop bits must be 1 or 2, got %d", ErrInvalidOptions, o.StopBits)
	}
	if _, err := ParseParity(string(o.Parity)); err != nil {
		return err
	}
	return nil
}

// String formats the options as e.g. "9600 8N1"
func (o Options) String() string {
	p := "N"
	switch o.Parity {
	case ParityEven:
		p = "E"
	case ParityOdd:
		p = "O"
	}
	return fmt.Sprintf("%d %d%s%d", o.BaudRate, o.DataBits, p, o.StopBits)
}
