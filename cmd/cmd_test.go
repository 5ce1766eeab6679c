// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/uartterm/pkg/session"
)

var fixedTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

// fakeChannel is an in-memory channel fed by the test
type fakeChannel struct {
	chunks chan string
	errs   chan error
	closed chan struct{}

	mu        sync.Mutex
	written   [][]byte
	closeOnce sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		chunks: make(chan string, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (f *fakeChannel) NextChunk(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", io.EOF
	case <-f.closed:
		return "", io.EOF
	case err := <-f.errs:
		return "", err
	case chunk, ok := <-f.chunks:
		if !ok {
			return "", io.EOF
		}
		return chunk, nil
	}
}

func (f *fakeChannel) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, append([]byte(nil), p...))
	return nil
}

func (f *fakeChannel) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeChannel) writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

// newFakeSession returns a session whose every connect yields ch
func newFakeSession(ch *fakeChannel, opts ...session.Option) *session.Session {
	opener := session.OpenerFunc(func(ctx context.Context, o session.Options) (session.Channel, error) {
		return ch, nil
	})
	opts = append([]session.Option{session.WithClock(func() time.Time { return fixedTime })}, opts...)
	return session.New(opener, opts...)
}

func waitForEntries(t *testing.T, sess *session.Session, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(sess.Entries()) >= n }, 2*time.Second, 5*time.Millisecond)
}
