// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/uartterm/pkg/codec"
	"github.com/Thermoquad/uartterm/pkg/logger"
	"github.com/Thermoquad/uartterm/pkg/session"
)

var (
	monitorFormat string
	monitorStdin  bool
	monitorSent   bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Stream received lines as plain text",
	Long: `Connect and print each received line with its timestamp as it arrives.

Output is plain text, so it can be piped or redirected. With --stdin, lines
read from standard input are sent using the configured send encoding.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVarP(&monitorFormat, "format", "f", "", "Display format (auto, ascii, hex, decimal, binary)")
	monitorCmd.Flags().BoolVar(&monitorStdin, "stdin", false, "Send lines read from standard input")
	monitorCmd.Flags().BoolVar(&monitorSent, "show-sent", false, "Also print sent entries")
}

// displayFormat returns the flag value when set, the configured format otherwise
func displayFormat(flagValue string) (codec.Format, error) {
	if flagValue != "" {
		return codec.ParseFormat(flagValue)
	}
	return codec.ParseFormat(conf.Terminal.DisplayFormat)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	format, err := displayFormat(monitorFormat)
	if err != nil {
		return err
	}
	encoding, err := codec.ParseEncoding(conf.Terminal.SendEncoding)
	if err != nil {
		return err
	}

	opener, connInfo, err := newOpener(conf)
	if err != nil {
		return err
	}
	opts, err := conf.ConnectionOptions()
	if err != nil {
		return err
	}

	lineEnding, _ := session.ParseLineEnding(conf.Terminal.LineEnding)
	sess := session.New(opener,
		session.WithLogger(logger.With("component", "session")),
		session.WithLineEnding(lineEnding),
	)

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "uartterm - Monitor\n")
	fmt.Fprintf(stderr, "Connection: %s (%s)\n", connInfo, opts)
	fmt.Fprintf(stderr, "Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	if err := sess.Connect(ctx, opts); err != nil {
		return err
	}

	if monitorStdin {
		go sendLines(sess, cmd.InOrStdin(), encoding, stderr)
	}

	streamErr := streamEntries(ctx, sess, events, cmd.OutOrStdout(), format, monitorSent)

	dctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := sess.Disconnect(dctx); err != nil {
		logger.Warn("disconnect", "error", err)
	}

	fmt.Fprintf(stderr, "\n%s", sess.Statistics())
	return streamErr
}

// streamEntries prints log entries as they are appended until ctx is done or
// the session disconnects. Events only wake it up; lines come from log
// snapshots, so dropped events lose nothing. It returns the transport error
// that ended the session, if any.
func streamEntries(ctx context.Context, sess *session.Session, events <-chan session.Event, w io.Writer, format codec.Format, showSent bool) error {
	ticker := time.NewTicker(batchInterval)
	defer ticker.Stop()

	printed := 0
	for {
		// Read the state first so entries flushed on teardown are in the snapshot
		state := sess.State()
		entries := sess.Entries()
		if len(entries) < printed {
			printed = 0
		}

		for _, e := range entries[printed:] {
			printed++
			if e.Direction == session.Sent && !showSent {
				continue
			}
			if _, err := fmt.Fprintln(w, session.FormatEntry(e, format)); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}

		if state == session.Disconnected {
			return sess.LastError()
		}

		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if ev.Kind == session.Cleared {
				printed = 0
			}
		case <-ticker.C:
		}
	}
}

// sendLines sends each line of r until r ends or the session refuses
func sendLines(sess *session.Session, r io.Reader, enc codec.Encoding, errOut io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		err := sess.Send(scanner.Text(), enc)
		switch {
		case err == nil, errors.Is(err, session.ErrEmptyInput):
		case errors.Is(err, codec.ErrMalformedInput):
			fmt.Fprintf(errOut, "[REJECTED] %v\n", err)
		default:
			fmt.Fprintf(errOut, "[ERROR] %v\n", err)
			return
		}
	}
}
