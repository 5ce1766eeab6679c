// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Thermoquad/uartterm/pkg/logger"
	"github.com/Thermoquad/uartterm/pkg/session"
)

const (
	batchInterval     = 50 * time.Millisecond
	connectTimeout    = 15 * time.Second
	disconnectTimeout = 3 * time.Second
)

var terminalCmd = &cobra.Command{
	Use:   "terminal",
	Short: "Interactive terminal UI (default)",
	Long: `Open an interactive terminal on a serial port or WebSocket bridge.

Features:
  - Send text as ASCII or as hex, binary, or decimal byte lists
  - Received lines shown as text, hex, decimal, or binary
  - Frame parameters (baud, data bits, stop bits, parity) editable while disconnected
  - Traffic statistics
  - Save the session log to a file

Press F1 in the terminal for key bindings. Requires an interactive TTY; use
'uartterm monitor' when output is piped.`,
	Annotations: map[string]string{annotationOwnsScreen: "true"},
	RunE:        runTerminal,
}

func init() {
	rootCmd.AddCommand(terminalCmd)
}

// newSession builds a session over opener using the loaded configuration
func newSession(opener session.Opener) *session.Session {
	lineEnding, _ := session.ParseLineEnding(conf.Terminal.LineEnding)
	return session.New(opener,
		session.WithLogger(logger.With("component", "session")),
		session.WithLineEnding(lineEnding),
	)
}

func runTerminal(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the terminal needs an interactive TTY; use 'uartterm monitor' to stream output")
	}

	opener, connInfo, err := newOpener(conf)
	if err != nil {
		return err
	}

	sess := newSession(opener)
	opts, err := conf.ConnectionOptions()
	if err != nil {
		return err
	}

	m := initialTerminalModel(sess, connInfo, opts, conf.Terminal)

	// Create TUI program with alt screen and mouse support
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	fw := newEventForwarder(sess, p)
	go fw.run()

	_, runErr := p.Run()

	fw.stop()
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := sess.Disconnect(ctx); err != nil {
		logger.Warn("disconnect on exit", "error", err)
	}

	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}

// messageSender is the part of tea.Program the forwarder needs
type messageSender interface {
	Send(msg tea.Msg)
}

// eventForwarder batches session events into the TUI at a fixed rate
type eventForwarder struct {
	events      <-chan session.Event
	unsubscribe func()
	p           messageSender
	done        chan struct{}
	stopped     chan struct{}
}

func newEventForwarder(sess *session.Session, p messageSender) *eventForwarder {
	events, unsubscribe := sess.Subscribe()
	return &eventForwarder{
		events:      events,
		unsubscribe: unsubscribe,
		p:           p,
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

func (f *eventForwarder) run() {
	defer close(f.stopped)
	ticker := time.NewTicker(batchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			var batch sessionBatchMsg

			// Drain all available events
		drainLoop:
			for {
				select {
				case ev := <-f.events:
					batch.events = append(batch.events, ev)
				default:
					break drainLoop
				}
			}

			if len(batch.events) > 0 {
				f.p.Send(batch)
			}
		}
	}
}

func (f *eventForwarder) stop() {
	f.unsubscribe()
	close(f.done)
	<-f.stopped
}
