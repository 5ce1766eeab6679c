// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"bufio"
	"fmt"
	"io"

	"github.com/Thermoquad/uartterm/pkg/codec"
)

// Render returns the display text of an entry. Sent entries keep the literal
// text the user typed in their chosen encoding; received entries are rendered
// in the given display format.
func Render(e Entry, format codec.Format) string {
	if e.Direction == Sent {
		return e.Text
	}
	return codec.Decode(e.Text, format)
}

// FormatEntry formats one export line: "HH:MM:SS TX|RX: <text>"
func FormatEntry(e Entry, format codec.Format) string {
	return fmt.Sprintf("%s %s: %s", e.Timestamp.Format("15:04:05"), e.Direction.Tag(), Render(e, format))
}

// Export writes entries to w as UTF-8 text, one line per entry
func Export(w io.Writer, entries []Entry, format codec.Format) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := bw.WriteString(FormatEntry(e, format) + "\n"); err != nil {
			return fmt.Errorf("failed to write log: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write log: %w", err)
	}
	return nil
}
