// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/uartterm/pkg/codec"
	"github.com/Thermoquad/uartterm/pkg/config"
	"github.com/Thermoquad/uartterm/pkg/session"
)

func newTestModel(t *testing.T, sess *session.Session) terminalModel {
	t.Helper()
	m := initialTerminalModel(sess, "Serial: /dev/test", session.DefaultOptions(), config.Default().Terminal)
	m.now = func() time.Time { return fixedTime }
	m.saveDir = t.TempDir()
	return m
}

func update(m terminalModel, msg tea.Msg) terminalModel {
	next, _ := m.Update(msg)
	return next.(terminalModel)
}

func key(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func connected(t *testing.T, sess *session.Session) {
	t.Helper()
	require.NoError(t, sess.Connect(context.Background(), session.DefaultOptions()))
	t.Cleanup(func() { sess.Disconnect(context.Background()) })
}

// ============================================================================
// Send Tests
// ============================================================================

func TestTerminal_SendHex(t *testing.T) {
	ch := newFakeChannel()
	sess := newFakeSession(ch)
	connected(t, sess)

	m := newTestModel(t, sess)
	m.encoding = codec.Hex
	m.input.SetValue("41 0x42")
	m = update(m, key(tea.KeyEnter))

	assert.Equal(t, [][]byte{{0x41, 0x42}}, ch.writes())
	assert.Empty(t, m.input.Value(), "input cleared after send")
	require.Len(t, m.entries, 1)
	assert.Equal(t, session.Sent, m.entries[0].Direction)
	assert.Equal(t, "41 0x42", m.entries[0].Text)
}

func TestTerminal_SendWhileDisconnected(t *testing.T) {
	sess := newFakeSession(newFakeChannel())
	m := newTestModel(t, sess)

	m.input.SetValue("hello")
	m = update(m, key(tea.KeyEnter))

	assert.True(t, m.noticeIsError)
	assert.Contains(t, m.notice, "Not connected")
	assert.Equal(t, "hello", m.input.Value(), "input kept for retry")
	assert.Empty(t, m.entries)
}

func TestTerminal_SendMalformedKeepsInput(t *testing.T) {
	ch := newFakeChannel()
	sess := newFakeSession(ch)
	connected(t, sess)

	m := newTestModel(t, sess)
	m.encoding = codec.Decimal
	m.input.SetValue("12 256")
	m = update(m, key(tea.KeyEnter))

	assert.Contains(t, m.notice, "Invalid decimal input")
	assert.Equal(t, "12 256", m.input.Value())
	assert.Empty(t, ch.writes())
	assert.Equal(t, session.Connected, sess.State(), "codec errors keep the connection")
}

func TestTerminal_InsertTab(t *testing.T) {
	ch := newFakeChannel()
	sess := newFakeSession(ch)
	connected(t, sess)

	m := newTestModel(t, sess)
	m.input.SetValue("ab")
	m = update(m, key(tea.KeyCtrlT))
	assert.Equal(t, "ab"+tabGlyph, m.input.Value())

	m = update(m, key(tea.KeyEnter))
	assert.Equal(t, [][]byte{[]byte("ab\t")}, ch.writes())
}

// ============================================================================
// Settings Tests
// ============================================================================

func TestTerminal_CycleEncodingAndFormat(t *testing.T) {
	m := newTestModel(t, newFakeSession(newFakeChannel()))
	require.Equal(t, codec.ASCII, m.encoding)
	require.Equal(t, codec.FormatAuto, m.format)

	m = update(m, key(tea.KeyCtrlE))
	assert.Equal(t, codec.ASCII.Next(), m.encoding)

	m = update(m, key(tea.KeyCtrlF))
	assert.Equal(t, codec.FormatAuto.Next(), m.format)
}

func TestTerminal_FrameEditing(t *testing.T) {
	sess := newFakeSession(newFakeChannel())
	m := newTestModel(t, sess)

	m = update(m, key(tea.KeyCtrlB))
	m = update(m, key(tea.KeyCtrlN))
	m = update(m, key(tea.KeyCtrlX))
	m = update(m, key(tea.KeyCtrlP))
	want := session.Options{BaudRate: 19200, DataBits: 7, StopBits: 2, Parity: session.ParityEven}
	assert.Equal(t, want, m.opts)
	require.NoError(t, m.opts.Validate())

	connected(t, sess)
	m = update(m, key(tea.KeyCtrlB))
	assert.Equal(t, want, m.opts, "frame locked while connected")
	assert.True(t, m.noticeIsError)
}

// ============================================================================
// Log Tests
// ============================================================================

func TestTerminal_ReceivedLinesAndClear(t *testing.T) {
	ch := newFakeChannel()
	sess := newFakeSession(ch)
	connected(t, sess)
	m := newTestModel(t, sess)

	ch.chunks <- "OK\r\nready\n"
	waitForEntries(t, sess, 2)
	m = update(m, sessionBatchMsg{events: []session.Event{{Kind: session.EntryAppended}}})

	require.Len(t, m.entries, 2)
	assert.Contains(t, m.viewport.View(), "ready")

	m = update(m, key(tea.KeyCtrlL))
	assert.Empty(t, m.entries)
	assert.Empty(t, sess.Entries())
	assert.Equal(t, session.Connected, m.state, "clear keeps the connection")
}

func TestTerminal_Scrollback(t *testing.T) {
	ch := newFakeChannel()
	sess := newFakeSession(ch)
	connected(t, sess)
	m := newTestModel(t, sess)
	m.scrollback = 2

	ch.chunks <- "one\ntwo\nthree\n"
	waitForEntries(t, sess, 3)
	m = update(m, sessionBatchMsg{})

	assert.Len(t, m.entries, 3, "the session keeps everything")
	view := m.viewport.View()
	assert.NotContains(t, view, "one")
	assert.Contains(t, view, "three")
}

func TestTerminal_SaveLog(t *testing.T) {
	ch := newFakeChannel()
	sess := newFakeSession(ch)
	connected(t, sess)
	m := newTestModel(t, sess)

	m.encoding = codec.Hex
	m.input.SetValue("41 42")
	m = update(m, key(tea.KeyEnter))
	ch.chunks <- "OK\n"
	waitForEntries(t, sess, 2)

	m.format = codec.FormatHex
	m = update(m, key(tea.KeyCtrlS))
	require.False(t, m.noticeIsError, m.notice)

	data, err := os.ReadFile(filepath.Join(m.saveDir, "uartterm-20250314-092653.log"))
	require.NoError(t, err)
	assert.Equal(t, "09:26:53 TX: 41 42\n09:26:53 RX: 4f 4b\n", string(data))
}

// ============================================================================
// Status Tests
// ============================================================================

func TestTerminal_StatusLine(t *testing.T) {
	sess := newFakeSession(newFakeChannel())
	m := newTestModel(t, sess)
	assert.Contains(t, m.View(), "Not connected")

	lost := errors.New("read: device unplugged")
	m = update(m, sessionBatchMsg{events: []session.Event{{Kind: session.ConnectionLost, State: session.Disconnected, Err: lost}}})
	assert.True(t, m.noticeIsError)
	assert.Contains(t, m.View(), "device unplugged")
}

func TestTerminal_ConnectResult(t *testing.T) {
	sess := newFakeSession(newFakeChannel())
	m := newTestModel(t, sess)

	msg := connectCmd(sess, session.DefaultOptions())()
	t.Cleanup(func() { sess.Disconnect(context.Background()) })
	m = update(m, msg)

	assert.Equal(t, session.Connected, m.state)
	assert.Equal(t, fixedTime, m.connectedAt)
	assert.True(t, strings.Contains(m.View(), "CONNECTED for 0 seconds"))

	m = update(m, disconnectCmd(sess)())
	assert.Equal(t, session.Disconnected, m.state)
	assert.Equal(t, "Disconnected", m.notice)
}

func TestTerminal_Quit(t *testing.T) {
	m := newTestModel(t, newFakeSession(newFakeChannel()))
	next, cmd := m.Update(key(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.True(t, next.(terminalModel).quitting)
}

// ============================================================================
// Event Forwarder Tests
// ============================================================================

type recordingSender struct {
	msgs chan tea.Msg
}

func (r recordingSender) Send(msg tea.Msg) { r.msgs <- msg }

func TestEventForwarder_Batches(t *testing.T) {
	ch := newFakeChannel()
	sess := newFakeSession(ch)
	rec := recordingSender{msgs: make(chan tea.Msg, 16)}

	fw := newEventForwarder(sess, rec)
	go fw.run()
	connected(t, sess)
	ch.chunks <- "a\nb\n"
	waitForEntries(t, sess, 2)

	var kinds []session.EventKind
	require.Eventually(t, func() bool {
		select {
		case msg := <-rec.msgs:
			for _, ev := range msg.(sessionBatchMsg).events {
				kinds = append(kinds, ev.Kind)
			}
		default:
		}
		return len(kinds) >= 4
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []session.EventKind{session.StateChanged, session.StateChanged, session.EntryAppended, session.EntryAppended}, kinds)
	fw.stop()
}
