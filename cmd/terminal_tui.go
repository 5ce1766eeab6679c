// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Thermoquad/uartterm/pkg/codec"
	"github.com/Thermoquad/uartterm/pkg/config"
	"github.com/Thermoquad/uartterm/pkg/session"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	// Rows used by everything except the log pane
	chromeHeight = 11
	minLogHeight = 3

	// tabGlyph stands in for a tab on the input line, which cannot hold one
	tabGlyph = "⇥"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// terminalSession is the part of the session the TUI drives
type terminalSession interface {
	Connect(ctx context.Context, opts session.Options) error
	Disconnect(ctx context.Context) error
	Send(text string, enc codec.Encoding) error
	Clear()
	State() session.State
	LastError() error
	Entries() []session.Entry
	Statistics() session.Statistics
	Export(w io.Writer, format codec.Format) error
}

// terminalModel is the Bubble Tea model for the interactive terminal
type terminalModel struct {
	sess     terminalSession
	connInfo string

	// Settings applied on the next connect
	opts session.Options

	// Send and display
	encoding   codec.Encoding
	format     codec.Format
	scrollback int

	// Snapshots refreshed from the session
	state       session.State
	lastErr     error
	entries     []session.Entry
	stats       session.Statistics
	connectedAt time.Time

	// Transient status line
	notice        string
	noticeIsError bool

	// Components
	input    textinput.Model
	viewport viewport.Model

	// UI state
	darkMode   bool
	autoScroll bool
	showHelp   bool
	width      int
	height     int
	quitting   bool
	saveDir    string
	now        func() time.Time
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type terminalTickMsg time.Time

type sessionBatchMsg struct {
	events []session.Event
}

type connectResultMsg struct {
	err error
}

type disconnectResultMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialTerminalModel(sess terminalSession, connInfo string, opts session.Options, tc config.TerminalConfig) terminalModel {
	ti := textinput.New()
	ti.Placeholder = "Type to send"
	ti.Prompt = "> "
	ti.Focus()

	encoding, _ := codec.ParseEncoding(tc.SendEncoding)
	format, _ := codec.ParseFormat(tc.DisplayFormat)

	m := terminalModel{
		sess:       sess,
		connInfo:   connInfo,
		opts:       opts,
		encoding:   encoding,
		format:     format,
		scrollback: tc.Scrollback,
		state:      sess.State(),
		input:      ti,
		viewport:   viewport.New(80, minLogHeight),
		darkMode:   tc.DarkMode,
		autoScroll: true,
		width:      80,
		height:     24,
		saveDir:    ".",
		now:        time.Now,
	}
	m.resize()
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m terminalModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		terminalTickCmd(),
		connectCmd(m.sess, m.opts),
	)
}

func terminalTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return terminalTickMsg(t)
	})
}

func connectCmd(sess terminalSession, opts session.Options) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		return connectResultMsg{err: sess.Connect(ctx, opts)}
	}
}

func disconnectCmd(sess terminalSession) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		return disconnectResultMsg{err: sess.Disconnect(ctx)}
	}
}

func (m terminalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.handleKeyMsg(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.refreshLog()

	case terminalTickMsg:
		m.stats = m.sess.Statistics()
		return m, terminalTickCmd()

	case sessionBatchMsg:
		for _, ev := range msg.events {
			m.handleEvent(ev)
		}
		m.refresh()

	case connectResultMsg:
		if msg.err != nil {
			m.setNotice(fmt.Sprintf("Connect failed: %v", msg.err), true)
		} else {
			m.connectedAt = m.now()
			m.setNotice(fmt.Sprintf("Connected (%s)", m.opts), false)
		}
		m.refresh()

	case disconnectResultMsg:
		if msg.err != nil {
			m.setNotice(fmt.Sprintf("Disconnect: %v", msg.err), true)
		} else {
			m.setNotice("Disconnected", false)
		}
		m.refresh()
	}

	// Update child components
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	if _, isKey := msg.(tea.KeyMsg); !isKey {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

//////////////////////////////////////////////////////////////
// Input Handling
//////////////////////////////////////////////////////////////

// handleKeyMsg handles bindings. Unhandled keys go to the input line.
func (m *terminalModel) handleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return true, tea.Quit

	case "enter":
		m.send()
		return true, nil

	case "ctrl+o":
		return true, m.toggleConnection()

	case "ctrl+e":
		m.encoding = m.encoding.Next()
		m.setNotice(fmt.Sprintf("Send as %s", m.encoding), false)
		return true, nil

	case "ctrl+f":
		m.format = m.format.Next()
		m.setNotice(fmt.Sprintf("Display as %s", m.format), false)
		m.refreshLog()
		return true, nil

	case "ctrl+b", "ctrl+n", "ctrl+x", "ctrl+p":
		m.editFrame(msg.String())
		return true, nil

	case "ctrl+t":
		m.insertTab()
		return true, nil

	case "ctrl+l":
		m.sess.Clear()
		m.refresh()
		m.setNotice("Log cleared", false)
		return true, nil

	case "ctrl+s":
		m.save()
		return true, nil

	case "ctrl+d":
		m.darkMode = !m.darkMode
		m.refreshLog()
		return true, nil

	case "ctrl+a":
		m.autoScroll = !m.autoScroll
		if m.autoScroll {
			m.viewport.GotoBottom()
		}
		return true, nil

	case "f1":
		m.showHelp = !m.showHelp
		m.resize()
		return true, nil

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		if msg.String() == "pgup" || msg.String() == "up" {
			m.autoScroll = false
		} else if m.viewport.AtBottom() {
			m.autoScroll = true
		}
		return true, cmd
	}

	return false, nil
}

func (m *terminalModel) send() {
	text := strings.ReplaceAll(m.input.Value(), tabGlyph, "\t")
	err := m.sess.Send(text, m.encoding)
	switch {
	case err == nil:
		m.input.Reset()
		m.notice = ""
	case errors.Is(err, session.ErrEmptyInput):
		// Nothing typed
	case errors.Is(err, session.ErrNotConnected):
		m.setNotice("Not connected - press ctrl+o to connect", true)
	case errors.Is(err, codec.ErrMalformedInput):
		m.setNotice(fmt.Sprintf("Invalid %s input: %v", m.encoding, err), true)
	default:
		m.setNotice(fmt.Sprintf("Send failed: %v", err), true)
	}
	m.refresh()
}

func (m *terminalModel) toggleConnection() tea.Cmd {
	switch m.sess.State() {
	case session.Disconnected:
		m.setNotice(fmt.Sprintf("Connecting to %s...", m.connInfo), false)
		return connectCmd(m.sess, m.opts)
	case session.Connected:
		return disconnectCmd(m.sess)
	}
	return nil
}

// editFrame cycles one frame parameter. Changes apply to the next connect.
func (m *terminalModel) editFrame(key string) {
	if m.sess.State() != session.Disconnected {
		m.setNotice("Disconnect (ctrl+o) to change frame settings", true)
		return
	}

	switch key {
	case "ctrl+b":
		m.opts.BaudRate = session.NextBaudRate(m.opts.BaudRate)
	case "ctrl+n":
		m.opts.DataBits = 15 - m.opts.DataBits // 7 <-> 8
	case "ctrl+x":
		m.opts.StopBits = 3 - m.opts.StopBits // 1 <-> 2
	case "ctrl+p":
		m.opts.Parity = m.opts.Parity.Next()
	}
	m.setNotice(fmt.Sprintf("Next connection: %s", m.opts), false)
}

func (m *terminalModel) insertTab() {
	value := []rune(m.input.Value())
	pos := m.input.Position()
	if pos > len(value) {
		pos = len(value)
	}
	updated := string(value[:pos]) + tabGlyph + string(value[pos:])
	m.input.SetValue(updated)
	m.input.SetCursor(pos + 1)
}

func (m *terminalModel) save() {
	m.refresh()
	name := fmt.Sprintf("uartterm-%s.log", m.now().Format("20060102-150405"))
	path := filepath.Join(m.saveDir, name)

	f, err := os.Create(path)
	if err != nil {
		m.setNotice(fmt.Sprintf("Save failed: %v", err), true)
		return
	}

	err = m.sess.Export(f, m.format)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		m.setNotice(fmt.Sprintf("Save failed: %v", err), true)
		return
	}

	m.setNotice(fmt.Sprintf("Saved %d entries to %s", len(m.entries), path), false)
}

func (m *terminalModel) handleEvent(ev session.Event) {
	switch ev.Kind {
	case session.StateChanged:
		if ev.State == session.Connected {
			m.connectedAt = m.now()
		}
	case session.ConnectionLost:
		m.setNotice(fmt.Sprintf("Connection lost: %v", ev.Err), true)
	case session.ConnectionFailed:
		m.setNotice(fmt.Sprintf("Connect failed: %v", ev.Err), true)
	}
}

func (m *terminalModel) setNotice(text string, isError bool) {
	m.notice = text
	m.noticeIsError = isError
}

// refresh re-reads session snapshots
func (m *terminalModel) refresh() {
	m.state = m.sess.State()
	m.lastErr = m.sess.LastError()
	m.entries = m.sess.Entries()
	m.stats = m.sess.Statistics()
	m.refreshLog()
}

func (m *terminalModel) resize() {
	logHeight := m.height - chromeHeight
	if m.showHelp {
		logHeight -= len(helpLines)
	}
	if logHeight < minLogHeight {
		logHeight = minLogHeight
	}
	m.viewport.Width = m.width - 4
	m.viewport.Height = logHeight
	m.input.Width = m.width - 8
}

// refreshLog renders the most recent entries into the log pane
func (m *terminalModel) refreshLog() {
	entries := m.entries
	if m.scrollback > 0 && len(entries) > m.scrollback {
		entries = entries[len(entries)-m.scrollback:]
	}

	t := newTheme(m.darkMode)
	var content strings.Builder
	for i, e := range entries {
		if i > 0 {
			content.WriteString("\n")
		}
		content.WriteString(m.renderEntry(t, e))
	}
	m.viewport.SetContent(content.String())

	if m.autoScroll {
		m.viewport.GotoBottom()
	}
}

func (m terminalModel) renderEntry(t theme, e session.Entry) string {
	tagStyle := t.received
	if e.Direction == session.Sent {
		tagStyle = t.sent
	}
	return fmt.Sprintf("%s %s %s",
		t.header.Render(e.Timestamp.Format("15:04:05")),
		tagStyle.Render(e.Direction.Tag()),
		printable(session.Render(e, m.format)),
	)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

var helpLines = []string{
	"enter send        ctrl+o connect/disconnect   ctrl+e send encoding   ctrl+f display format",
	"ctrl+b baud       ctrl+n data bits            ctrl+x stop bits       ctrl+p parity",
	"ctrl+t tab        ctrl+l clear                ctrl+s save log        ctrl+a autoscroll",
	"ctrl+d theme      pgup/pgdown scroll          f1 help                ctrl+c quit",
}

func (m terminalModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	t := newTheme(m.darkMode)

	var s strings.Builder
	s.WriteString(t.title.Render("UARTTERM"))
	s.WriteString(" ")
	s.WriteString(t.header.Render(fmt.Sprintf("| %s | %s | f1 help", m.connInfo, m.renderState(t))))
	s.WriteString("\n")

	s.WriteString(m.renderStatisticsBar(t))
	s.WriteString("\n")

	s.WriteString(t.box.Width(m.width - 2).Render(m.viewport.View()))
	s.WriteString("\n")

	s.WriteString(t.focusedBox.Width(m.width - 2).Render(m.input.View()))
	s.WriteString("\n")

	s.WriteString(m.renderStatusLine(t))

	if m.showHelp {
		s.WriteString("\n")
		s.WriteString(t.header.Render(strings.Join(helpLines, "\n")))
	}

	return s.String()
}

func (m terminalModel) renderState(t theme) string {
	switch m.state {
	case session.Connected:
		uptime := ""
		if !m.connectedAt.IsZero() {
			uptime = " for " + formatUptime(m.now().Sub(m.connectedAt))
		}
		return t.statsValue.Render("CONNECTED" + uptime)
	case session.Connecting:
		return t.warning.Render("CONNECTING...")
	case session.Disconnecting:
		return t.warning.Render("DISCONNECTING...")
	default:
		return t.error.Render("DISCONNECTED")
	}
}

func (m terminalModel) renderStatisticsBar(t theme) string {
	content := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n%s %s   %s %s   %s %s",
		t.statsLabel.Render("Frame:"), t.statsValue.Render(m.opts.String()),
		t.statsLabel.Render("Send:"), t.statsValue.Render(strings.ToUpper(string(m.encoding))),
		t.statsLabel.Render("Display:"), t.statsValue.Render(strings.ToUpper(string(m.format))),
		t.statsLabel.Render("Scroll:"), t.statsValue.Render(scrollMode(m.autoScroll)),
		t.statsLabel.Render("TX:"), t.statsValue.Render(fmt.Sprintf("%d B / %d lines", m.stats.BytesSent, m.stats.LinesSent)),
		t.statsLabel.Render("RX:"), t.statsValue.Render(fmt.Sprintf("%d B / %d lines", m.stats.BytesReceived, m.stats.LinesReceived)),
		t.statsLabel.Render("Rate:"), t.statsValue.Render(fmt.Sprintf("%.1f / %.1f B/s", m.stats.TxRate, m.stats.RxRate)),
	)

	return t.box.Width(m.width - 2).Render(content)
}

// renderStatusLine shows the latest notice, then the last transport error,
// then a hint
func (m terminalModel) renderStatusLine(t theme) string {
	switch {
	case m.notice != "" && m.noticeIsError:
		return t.error.Render("✗ " + m.notice)
	case m.notice != "":
		return t.warning.Render("ℹ " + m.notice)
	case m.lastErr != nil:
		return t.error.Render("✗ " + m.lastErr.Error())
	case m.state == session.Disconnected:
		return t.header.Render("Not connected - press ctrl+o to connect")
	}
	return t.header.Render(fmt.Sprintf("%d entries", len(m.entries)))
}

func scrollMode(auto bool) string {
	if auto {
		return "auto"
	}
	return "manual"
}

var _ tea.Model = terminalModel{}
