// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package linebuf reassembles arbitrarily chunked inbound text into lines.
package linebuf

import "strings"

// Buffer accumulates chunks and emits terminator-delimited, non-blank lines.
// The unterminated tail is held back as the pending fragment.
//
// Buffer is not safe for concurrent use.
type Buffer struct {
	pending string
}

// New creates an empty line buffer
func New() *Buffer {
	return &Buffer{}
}

func isTerminator(r rune) bool {
	return r == '\r' || r == '\n'
}

// Ingest appends chunk to the pending fragment and returns every line it
// completes, in order. Runs of CR/LF count as a single terminator and blank
// segments are dropped. Lines are returned untrimmed.
func (b *Buffer) Ingest(chunk string) []string {
	combined := b.pending + chunk

	last := strings.LastIndexAny(combined, "\r\n")
	if last < 0 {
		b.pending = combined
		return nil
	}
	b.pending = combined[last+1:]

	var lines []string
	for _, segment := range strings.FieldsFunc(combined[:last], isTerminator) {
		if strings.TrimSpace(segment) == "" {
			continue
		}
		lines = append(lines, segment)
	}
	return lines
}

// Pending returns the unterminated tail held by the buffer
func (b *Buffer) Pending() string {
	return b.pending
}

// Flush returns the pending fragment if it is non-blank and resets the buffer
func (b *Buffer) Flush() (string, bool) {
	line := b.pending
	b.pending = ""
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	return line, true
}

// Reset discards the pending fragment
func (b *Buffer) Reset() {
	b.pending = ""
}
