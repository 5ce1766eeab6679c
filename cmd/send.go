// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/uartterm/pkg/codec"
	"github.com/Thermoquad/uartterm/pkg/logger"
)

var (
	sendEncoding string
	sendFormat   string
	sendWait     time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send TEXT...",
	Short: "Send one message and optionally print the replies",
	Long: `Connect, send the arguments joined by spaces, and disconnect.

With --wait, received lines are printed until the duration elapses or the
connection ends.

Examples:
  # Send a command with the configured line ending
  uartterm send --port /dev/ttyUSB0 AT+GMR --wait 2s

  # Send raw bytes
  uartterm send --port /dev/ttyUSB0 --encoding hex 0x02 10 ff 03`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sendEncoding, "encoding", "e", "", "Send encoding (ascii, hex, binary, decimal)")
	sendCmd.Flags().StringVarP(&sendFormat, "format", "f", "", "Display format for replies (auto, ascii, hex, decimal, binary)")
	sendCmd.Flags().DurationVarP(&sendWait, "wait", "w", 0, "How long to print replies after sending")
}

func runSend(cmd *cobra.Command, args []string) error {
	encName := sendEncoding
	if encName == "" {
		encName = conf.Terminal.SendEncoding
	}
	encoding, err := codec.ParseEncoding(encName)
	if err != nil {
		return err
	}
	format, err := displayFormat(sendFormat)
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	// Reject malformed input before touching the port
	if _, err := codec.Encode(text, encoding); err != nil {
		return err
	}

	opener, _, err := newOpener(conf)
	if err != nil {
		return err
	}
	opts, err := conf.ConnectionOptions()
	if err != nil {
		return err
	}

	sess := newSession(opener)
	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(cmd.Context(), connectTimeout)
	defer cancel()
	if err := sess.Connect(ctx, opts); err != nil {
		return err
	}
	defer func() {
		dctx, dcancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer dcancel()
		if err := sess.Disconnect(dctx); err != nil {
			logger.Warn("disconnect", "error", err)
		}
	}()

	startTime := time.Now()
	if err := sess.Send(text, encoding); err != nil {
		return err
	}
	logger.Debug("sent", "bytes", sess.Statistics().BytesSent)

	if sendWait <= 0 {
		return nil
	}

	wctx, wcancel := context.WithDeadline(cmd.Context(), startTime.Add(sendWait))
	defer wcancel()
	return streamEntries(wctx, sess, events, cmd.OutOrStdout(), format, true)
}
