// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

// State is a stage of the connection lifecycle
type State uint32

const (
	// Disconnected means no channel is held
	Disconnected State = iota
	// Connecting means a channel has been requested from the opener
	Connecting
	// Connected is the only state accepting send and receive
	Connected
	// Disconnecting means teardown of the channel is in progress
	Disconnecting
)

// IsConnected reports whether the state accepts traffic
func (s State) IsConnected() bool { return s == Connected }

// String returns string representation of the state
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// EventKind identifies what an Event reports
type EventKind int

const (
	// StateChanged carries the new state in Event.State
	StateChanged EventKind = iota
	// EntryAppended carries the new log entry in Event.Entry
	EntryAppended
	// Cleared reports that the log and line buffer were reset
	Cleared
	// ConnectionFailed reports a failed connect in Event.Err
	ConnectionFailed
	// ConnectionLost reports a mid-session transport failure in Event.Err
	ConnectionLost
)

func (k EventKind) String() string {
	switch k {
	case StateChanged:
		return "state-changed"
	case EntryAppended:
		return "entry-appended"
	case Cleared:
		return "cleared"
	case ConnectionFailed:
		return "connection-failed"
	case ConnectionLost:
		return "connection-lost"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers when the session changes.
// State is set for StateChanged, ConnectionFailed and ConnectionLost.
type Event struct {
	Kind  EventKind
	State State
	Entry Entry
	Err   error
}
