// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"time"

	"github.com/Thermoquad/uartterm/pkg/codec"
)

// Direction tells whether an entry was transmitted or received
type Direction int

const (
	Sent Direction = iota
	Received
)

// Tag returns the export tag, TX or RX
func (d Direction) Tag() string {
	if d == Sent {
		return "TX"
	}
	return "RX"
}

func (d Direction) String() string {
	if d == Sent {
		return "sent"
	}
	return "received"
}

// Entry is one line of session traffic. Entries are never modified once
// appended.
type Entry struct {
	Direction Direction
	Text      string
	// Encoding is the outbound encoding; empty for received entries
	Encoding  codec.Encoding
	Timestamp time.Time
}

// Log is the ordered, append-only record of a session.
// Log is not safe for concurrent use; Session serializes access.
type Log struct {
	entries []Entry
}

// NewLog creates an empty log
func NewLog() *Log {
	return &Log{}
}

// Append adds an entry at the end of the log
func (l *Log) Append(e Entry) {
	l.entries = append(l.entries, e)
}

// Entries returns a copy of the entries in insertion order
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries
func (l *Log) Len() int {
	return len(l.entries)
}

// Clear removes every entry
func (l *Log) Clear() {
	l.entries = nil
}
