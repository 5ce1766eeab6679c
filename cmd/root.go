// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/uartterm/pkg/config"
	"github.com/Thermoquad/uartterm/pkg/logger"
	"github.com/Thermoquad/uartterm/pkg/session"
)

var (
	configPath string

	// Serial connection flags
	portName string
	baudRate int
	dataBits int
	stopBits int
	parity   string

	// WebSocket connection flags
	wsURL         string
	wsNoSSLVerify bool

	// Logging flags
	logLevel  string
	logFormat string
	logFile   string

	// conf is the merged file and flag configuration, set before any command runs
	conf    config.Config
	logSink io.Closer
)

// annotationOwnsScreen marks commands that draw a full screen UI
const annotationOwnsScreen = "owns-screen"

var rootCmd = &cobra.Command{
	Use:   "uartterm",
	Short: "Interactive serial terminal",
	Long: `uartterm - An interactive terminal for serial devices.

Type text, send it over a serial link as ASCII or as hex, binary, or decimal
byte lists, and watch received lines scroll by in the format of your choice.
The session log can be saved at any time.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200 --data-bits 8 --stop-bits 1 --parity none]
  WebSocket: --url ws://host/path

Settings are read from the config file first; flags given on the command line
take precedence. Without a subcommand the interactive terminal starts.`,
	Version:           "1.0.0",
	Annotations:       map[string]string{annotationOwnsScreen: "true"},
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logSink != nil {
			logSink.Close()
		}
	},
	RunE: runTerminal,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default "+config.DefaultPath()+")")

	// Serial connection flags
	defaults := session.DefaultOptions()
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", defaults.BaudRate, "Baud rate")
	rootCmd.PersistentFlags().IntVar(&dataBits, "data-bits", defaults.DataBits, "Data bits (7 or 8)")
	rootCmd.PersistentFlags().IntVar(&stopBits, "stop-bits", defaults.StopBits, "Stop bits (1 or 2)")
	rootCmd.PersistentFlags().StringVar(&parity, "parity", string(defaults.Parity), "Parity (none, even, odd)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket bridge URL (ws:// or wss://)")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format (json, console)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file")
}

// loadConfig reads the config file, applies explicitly set flags over it,
// and installs the default logger
func loadConfig(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	applyFlags(cmd, &loaded)

	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	conf = loaded

	return setupLogging(cmd)
}

func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		c.Serial.Port = portName
	}
	if flags.Changed("baud") {
		c.Serial.BaudRate = baudRate
	}
	if flags.Changed("data-bits") {
		c.Serial.DataBits = dataBits
	}
	if flags.Changed("stop-bits") {
		c.Serial.StopBits = stopBits
	}
	if flags.Changed("parity") {
		c.Serial.Parity = parity
	}
	if flags.Changed("url") {
		c.Bridge.URL = wsURL
	}
	if flags.Changed("no-ssl-verify") {
		c.Bridge.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("log-level") {
		c.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		c.Log.Format = logFormat
	}
	if flags.Changed("log-file") {
		c.Log.File = logFile
	}
}

// setupLogging sends logs to the configured file. Without one, commands that
// own the screen discard logs and the rest write to stderr.
func setupLogging(cmd *cobra.Command) error {
	level, _ := logger.ParseLevel(conf.Log.Level)
	format, _ := logger.ParseFormat(conf.Log.Format)

	var w io.Writer = os.Stderr
	switch {
	case conf.Log.File != "":
		f, err := os.OpenFile(conf.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logSink = f
		w = f
	case cmd.Annotations[annotationOwnsScreen] == "true":
		w = io.Discard
	}

	logger.Setup(w, format, level)
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
