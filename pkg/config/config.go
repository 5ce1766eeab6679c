// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads uartterm settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/Thermoquad/uartterm/pkg/codec"
	"github.com/Thermoquad/uartterm/pkg/logger"
	"github.com/Thermoquad/uartterm/pkg/session"
)

// SerialConfig holds the serial device and its frame parameters
type SerialConfig struct {
	Port     string `toml:"port"`
	BaudRate int    `toml:"baud"`
	DataBits int    `toml:"data_bits"`
	StopBits int    `toml:"stop_bits"`
	Parity   string `toml:"parity"`
}

// BridgeConfig holds the WebSocket bridge endpoint
type BridgeConfig struct {
	URL           string `toml:"url"`
	NoSSLVerify   bool   `toml:"no_ssl_verify"`
	HandshakeSecs int    `toml:"handshake_timeout"`
}

// TerminalConfig holds session and display preferences
type TerminalConfig struct {
	SendEncoding  string `toml:"send_encoding"`
	DisplayFormat string `toml:"display_format"`
	LineEnding    string `toml:"line_ending"`
	Scrollback    int    `toml:"scrollback"`
	DarkMode      bool   `toml:"dark_mode"`
}

// LogConfig holds diagnostics settings
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Config holds all application configuration
type Config struct {
	Serial   SerialConfig   `toml:"serial"`
	Bridge   BridgeConfig   `toml:"bridge"`
	Terminal TerminalConfig `toml:"terminal"`
	Log      LogConfig      `toml:"log"`
}

// Default returns the built-in configuration
func Default() Config {
	opts := session.DefaultOptions()
	return Config{
		Serial: SerialConfig{
			BaudRate: opts.BaudRate,
			DataBits: opts.DataBits,
			StopBits: opts.StopBits,
			Parity:   string(opts.Parity),
		},
		Bridge: BridgeConfig{
			HandshakeSecs: 10,
		},
		Terminal: TerminalConfig{
			SendEncoding:  string(codec.ASCII),
			DisplayFormat: string(codec.FormatAuto),
			LineEnding:    string(session.LineEndingLF),
			Scrollback:    1000,
			DarkMode:      true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: string(logger.FormatJSON),
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/uartterm/config.toml or the platform
// equivalent
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "uartterm.toml"
	}
	return filepath.Join(dir, "uartterm", "config.toml")
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	conf := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return conf, nil
		}
		return conf, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return conf, nil
}

// ConnectionOptions returns the frame parameters for the next connection
func (c Config) ConnectionOptions() (session.Options, error) {
	parity, err := session.ParseParity(c.Serial.Parity)
	if err != nil {
		return session.Options{}, err
	}
	opts := session.Options{
		BaudRate: c.Serial.BaudRate,
		DataBits: c.Serial.DataBits,
		StopBits: c.Serial.StopBits,
		Parity:   parity,
	}
	return opts, opts.Validate()
}

// Validate checks every enumerated setting
func (c Config) Validate() error {
	if _, err := c.ConnectionOptions(); err != nil {
		return err
	}
	if _, err := codec.ParseEncoding(c.Terminal.SendEncoding); err != nil {
		return err
	}
	if _, err := codec.ParseFormat(c.Terminal.DisplayFormat); err != nil {
		return err
	}
	if _, err := session.ParseLineEnding(c.Terminal.LineEnding); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := logger.ParseFormat(c.Log.Format); err != nil {
		return err
	}
	if c.Terminal.Scrollback < 0 {
		return fmt.Errorf("scrollback must not be negative, got %d", c.Terminal.Scrollback)
	}
	return nil
}
