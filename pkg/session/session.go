// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session implements the terminal session engine: the connection
// state machine, the inbound read loop, and the session log.
//
// A Session owns at most one open Channel. The read loop reassembles inbound
// chunks into lines and appends them to the log; Send encodes user text and
// writes it to the channel. Transport failures move the session back to
// Disconnected and are reported to subscribers, never retried.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/Thermoquad/uartterm/pkg/codec"
	"github.com/Thermoquad/uartterm/pkg/linebuf"
	"github.com/Thermoquad/uartterm/pkg/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// LineEnding is appended to ASCII sends
type LineEnding string

const (
	LineEndingNone LineEnding = "none"
	LineEndingLF   LineEnding = "lf"
	LineEndingCR   LineEnding = "cr"
	LineEndingCRLF LineEnding = "crlf"
)

// ParseLineEnding parses a line ending name
func ParseLineEnding(s string) (LineEnding, error) {
	switch le := LineEnding(strings.ToLower(strings.TrimSpace(s))); le {
	case LineEndingNone, LineEndingLF, LineEndingCR, LineEndingCRLF:
		return le, nil
	case "":
		return LineEndingNone, nil
	}
	return "", fmt.Errorf("unknown line ending %q (use none, lf, cr or crlf)", s)
}

// Bytes returns the terminator bytes
func (le LineEnding) Bytes() []byte {
	switch le {
	case LineEndingLF:
		return []byte{'\n'}
	case LineEndingCR:
		return []byte{'\r'}
	case LineEndingCRLF:
		return []byte{'\r', '\n'}
	default:
		return nil
	}
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the diagnostics logger
func WithLogger(l logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithClock sets the time source used for entry timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLineEnding sets the terminator appended to ASCII sends
func WithLineEnding(le LineEnding) Option {
	return func(s *Session) { s.lineEnding = le }
}

// WithEventBuffer sets the per-subscriber event buffer size
func WithEventBuffer(n int) Option {
	return func(s *Session) { s.eventBuffer = n }
}

// Session is a single terminal session over one channel at a time
type Session struct {
	opener      Opener
	log         logger.Logger
	now         func() time.Time
	lineEnding  LineEnding
	eventBuffer int

	// mu guards the connection state and channel ownership
	mu      sync.Mutex
	state   State
	h       *handle
	opts    Options
	lastErr error

	// dataMu guards the log, the line buffer and the statistics.
	// Lock order is mu then dataMu.
	dataMu  sync.Mutex
	entries *Log
	buf     *linebuf.Buffer
	stats   Statistics
	// reader is the handle whose chunks feed buf, nil once torn down
	reader *handle

	subs    *xsync.MapOf[uint64, chan Event]
	nextSub atomic.Uint64
}

// New creates a disconnected session that acquires channels from opener
func New(opener Opener, opts ...Option) *Session {
	s := &Session{
		opener:      opener,
		log:         logger.GetLogger(),
		now:         time.Now,
		lineEnding:  LineEndingNone,
		eventBuffer: 256,
		state:       Disconnected,
		opts:        DefaultOptions(),
		entries:     NewLog(),
		buf:         linebuf.New(),
		subs:        xsync.NewMapOf[uint64, chan Event](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stats = NewStatistics(s.now())
	return s
}

// State returns the current connection state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the most recent connect or transport failure, or nil
// once a later connect succeeds
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Options returns the frame parameters of the current or last connection
func (s *Session) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// Entries returns a snapshot of the session log
func (s *Session) Entries() []Entry {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	return s.entries.Entries()
}

// Statistics returns a snapshot of the traffic counters with current rates
func (s *Session) Statistics() Statistics {
	s.dataMu.Lock()
	stats := s.stats
	s.dataMu.Unlock()
	stats.CalculateRates(s.now())
	return stats
}

// Export writes the session log to w, rendering received lines in format
func (s *Session) Export(w io.Writer, format codec.Format) error {
	return Export(w, s.Entries(), format)
}

// Subscribe registers for session events. Delivery never blocks the session:
// when the buffer is full the event is dropped, so subscribers should treat
// events as change notifications and re-read snapshots. The returned function
// unregisters; the channel is not closed.
func (s *Session) Subscribe() (<-chan Event, func()) {
	id := s.nextSub.Add(1)
	ch := make(chan Event, s.eventBuffer)
	s.subs.Store(id, ch)

	var once sync.Once
	return ch, func() {
		once.Do(func() { s.subs.Delete(id) })
	}
}

func (s *Session) emit(ev Event) {
	s.subs.Range(func(_ uint64, ch chan Event) bool {
		select {
		case ch <- ev:
		default:
		}
		return true
	})
}

// setStateLocked must be called with mu held
func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	prev := s.state
	s.state = state
	s.log.Debug("session state changed", "prev", prev.String(), "state", state.String())
	s.emit(Event{Kind: StateChanged, State: state})
}

// Connect opens a channel with opts and starts the read loop.
// On failure the session returns to Disconnected and the error wraps
// ErrChannelUnavailable.
func (s *Session) Connect(ctx context.Context, opts Options) error {
	s.mu.Lock()
	if s.state != Disconnected {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: connect while %s", ErrInvalidState, state)
	}
	s.opts = opts
	s.setStateLocked(Connecting)
	s.mu.Unlock()

	ch, err := s.open(ctx, opts)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrChannelUnavailable, err)
		s.log.Warn("connect failed", "options", opts.String(), "error", err)

		s.mu.Lock()
		s.lastErr = err
		s.setStateLocked(Disconnected)
		s.mu.Unlock()

		s.emit(Event{Kind: ConnectionFailed, State: Disconnected, Err: err})
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	h := &handle{ch: ch, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.h = h
	s.lastErr = nil
	s.dataMu.Lock()
	s.buf.Reset()
	s.reader = h
	s.dataMu.Unlock()
	s.setStateLocked(Connected)
	s.mu.Unlock()

	s.log.Info("connected", "options", opts.String())
	go s.readLoop(loopCtx, h)
	return nil
}

func (s *Session) open(ctx context.Context, opts Options) (Channel, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	ch, err := s.opener.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, errors.New("opener returned no channel")
	}
	return ch, nil
}

// readLoop runs until the channel ends, fails, or the handle is cancelled.
// Whoever cancels the handle owns the channel release, so a Disconnect can
// close the write side before the channel itself; any other exit releases
// the channel here.
func (s *Session) readLoop(ctx context.Context, h *handle) {
	defer close(h.done)
	defer func() {
		if ctx.Err() != nil {
			return
		}
		h.cancel()
		if err := h.release(); err != nil {
			s.log.Debug("channel close failed", "error", err)
		}
	}()

	for {
		chunk, err := h.ch.NextChunk(ctx)
		if chunk != "" {
			s.ingest(h, chunk)
		}
		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			s.log.Debug("read loop cancelled")
			return
		}
		if errors.Is(err, io.EOF) {
			s.log.Info("channel reached end of stream")
			s.endFromLoop(h, nil)
			return
		}

		err = fmt.Errorf("%w: read: %w", ErrTransport, err)
		s.log.Warn("connection lost", "error", err)
		s.endFromLoop(h, err)
		return
	}
}

// ingest drops chunks from a handle that has already been torn down
func (s *Session) ingest(h *handle, chunk string) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	if s.reader != h {
		s.log.Debug("dropped chunk after teardown", "length", len(chunk))
		return
	}

	now := s.now()
	lines := s.buf.Ingest(chunk)
	s.stats.received(utf8.RuneCountInString(chunk), len(lines), now)
	for _, line := range lines {
		s.appendLocked(Entry{Direction: Received, Text: line, Timestamp: now})
	}
}

// appendLocked must be called with dataMu held
func (s *Session) appendLocked(e Entry) {
	s.entries.Append(e)
	s.emit(Event{Kind: EntryAppended, Entry: e})
}

// endFromLoop tears down after the read loop stops on its own. A concurrent
// Disconnect or failed Send owns the teardown if it got there first.
func (s *Session) endFromLoop(h *handle, cause error) {
	h.cancel()
	if err := h.release(); err != nil {
		s.log.Debug("channel close failed", "error", err)
	}

	s.mu.Lock()
	if s.h != h || s.state != Connected {
		s.mu.Unlock()
		return
	}
	s.h = nil
	s.lastErr = cause
	s.flushPendingLocked()
	s.setStateLocked(Disconnected)
	s.mu.Unlock()

	if cause != nil {
		s.emit(Event{Kind: ConnectionLost, State: Disconnected, Err: cause})
	}
}

// flushPendingLocked must be called with mu held. It moves a non-blank
// pending fragment into the log so nothing read is dropped on teardown and
// nothing stale reaches the next connection. Chunks the read loop still
// holds are discarded from here on.
func (s *Session) flushPendingLocked() {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.reader = nil
	if line, ok := s.buf.Flush(); ok {
		s.appendLocked(Entry{Direction: Received, Text: line, Timestamp: s.now()})
	}
}

// Send encodes text and writes it to the channel. Outside Connected it
// returns ErrNotConnected without encoding. Codec failures leave the
// connection open and return an error wrapping codec.ErrMalformedInput.
// Write failures disconnect the session and wrap ErrTransport.
func (s *Session) Send(text string, enc codec.Encoding) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Connected {
		return ErrNotConnected
	}

	payload, err := codec.Encode(text, enc)
	if err != nil {
		s.dataMu.Lock()
		s.stats.Rejected++
		s.dataMu.Unlock()
		return err
	}
	if enc == codec.ASCII {
		payload = append(payload, s.lineEnding.Bytes()...)
	}

	h := s.h
	if err := h.ch.Write(payload); err != nil {
		err = fmt.Errorf("%w: write: %w", ErrTransport, err)
		s.log.Warn("connection lost", "error", err)

		h.cancel()
		if cerr := h.release(); cerr != nil {
			s.log.Debug("channel close failed", "error", cerr)
		}
		s.h = nil
		s.lastErr = err
		s.flushPendingLocked()
		s.setStateLocked(Disconnected)
		s.emit(Event{Kind: ConnectionLost, State: Disconnected, Err: err})
		return err
	}

	s.dataMu.Lock()
	now := s.now()
	s.stats.sent(len(payload), now)
	s.appendLocked(Entry{Direction: Sent, Text: text, Encoding: enc, Timestamp: now})
	s.dataMu.Unlock()
	return nil
}

// Disconnect cancels the read loop, closes the write side, then closes the
// channel. Each step is best effort. The session always ends Disconnected;
// the returned error is only ctx's, if it expired while waiting for the
// read loop to exit. Disconnect is a no-op outside Connected.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return nil
	}
	h := s.h
	s.setStateLocked(Disconnecting)
	s.mu.Unlock()

	h.cancel()
	if wc, ok := h.ch.(WriteCloser); ok {
		if err := wc.CloseWrite(); err != nil {
			s.log.Debug("close write side failed", "error", err)
		}
	}
	if err := h.release(); err != nil {
		s.log.Debug("channel close failed", "error", err)
	}

	var waitErr error
	select {
	case <-h.done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("waiting for read loop: %w", ctx.Err())
	}

	s.mu.Lock()
	s.h = nil
	s.flushPendingLocked()
	s.setStateLocked(Disconnected)
	s.mu.Unlock()

	s.log.Info("disconnected")
	return waitErr
}

// Clear empties the session log and discards the pending fragment together.
// The connection state is not affected.
func (s *Session) Clear() {
	s.dataMu.Lock()
	s.entries.Clear()
	s.buf.Reset()
	s.dataMu.Unlock()

	s.emit(Event{Kind: Cleared})
}
