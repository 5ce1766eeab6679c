// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrChannelUnavailable is returned when a channel cannot be opened
	ErrChannelUnavailable = errors.New("channel unavailable")
	// ErrTransport wraps read and write failures on an open channel
	ErrTransport = errors.New("transport error")
	// ErrInvalidOptions is returned for unsupported frame parameters
	ErrInvalidOptions = errors.New("invalid connection options")
	// ErrNotConnected is returned by Send outside the Connected state
	ErrNotConnected = errors.New("not connected")
	// ErrInvalidState is returned by Connect outside the Disconnected state
	ErrInvalidState = errors.New("invalid state for operation")
	// ErrEmptyInput is returned by Send for blank text
	ErrEmptyInput = errors.New("nothing to send")
)

// Channel is an open duplex byte channel
type Channel interface {
	// NextChunk blocks until data arrives and returns it as text with one
	// rune per byte. It returns io.EOF at end of stream or once ctx is done.
	NextChunk(ctx context.Context) (string, error)
	Write(p []byte) error
	// Close releases the channel. It must be safe to call more than once.
	Close() error
}

// WriteCloser is implemented by channels whose write side closes separately
type WriteCloser interface {
	CloseWrite() error
}

// Opener acquires channels from the host environment
type Opener interface {
	Open(ctx context.Context, opts Options) (Channel, error)
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(ctx context.Context, opts Options) (Channel, error)

func (f OpenerFunc) Open(ctx context.Context, opts Options) (Channel, error) {
	return f(ctx, opts)
}

// handle owns one open channel and its read loop
type handle struct {
	ch     Channel
	cancel context.CancelFunc
	done   chan struct{}

	releaseOnce sync.Once
	releaseErr  error
}

// release closes the channel exactly once, whichever exit path gets here first
func (h *handle) release() error {
	h.releaseOnce.Do(func() {
		h.releaseErr = h.ch.Close()
	})
	return h.releaseErr
}
