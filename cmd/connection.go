// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"

	"github.com/Thermoquad/uartterm/pkg/codec"
	"github.com/Thermoquad/uartterm/pkg/config"
	"github.com/Thermoquad/uartterm/pkg/logger"
	"github.com/Thermoquad/uartterm/pkg/session"
)

// serialPollInterval bounds how long a serial read blocks before the read
// loop re-checks for cancellation
const serialPollInterval = 100 * time.Millisecond

// SerialChannel wraps a serial port
type SerialChannel struct {
	port serial.Port
	buf  []byte

	closeOnce sync.Once
	closeErr  error
}

// NextChunk polls the port until bytes arrive or ctx is done
func (s *SerialChannel) NextChunk(ctx context.Context) (string, error) {
	for {
		if ctx.Err() != nil {
			return "", io.EOF
		}

		n, err := s.port.Read(s.buf)
		if err != nil {
			return "", err
		}
		if n > 0 {
			return codec.Text(s.buf[:n]), nil
		}
		// n == 0 is a read timeout
	}
}

func (s *SerialChannel) Write(p []byte) error {
	for len(p) > 0 {
		n, err := s.port.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// CloseWrite waits for queued output to leave the port
func (s *SerialChannel) CloseWrite() error {
	return s.port.Drain()
}

func (s *SerialChannel) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.port.Close()
	})
	return s.closeErr
}

// serialMode converts frame parameters to the serial driver's mode
func serialMode(opts session.Options) *serial.Mode {
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	switch opts.Parity {
	case session.ParityEven:
		mode.Parity = serial.EvenParity
	case session.ParityOdd:
		mode.Parity = serial.OddParity
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	return mode
}

// SerialOpener opens a named serial port
type SerialOpener struct {
	PortName string
}

// Open opens the port with opts
func (o SerialOpener) Open(ctx context.Context, opts session.Options) (session.Channel, error) {
	if o.PortName == "" {
		return nil, errors.New("no serial port selected")
	}

	port, err := serial.Open(o.PortName, serialMode(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", o.PortName, err)
	}

	if err := port.SetReadTimeout(serialPollInterval); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", o.PortName, err)
	}

	return &SerialChannel{port: port, buf: make([]byte, 256)}, nil
}

// WebSocketChannel carries serial traffic over a WebSocket bridge. Each
// message, text or binary, is one chunk of raw bytes.
type WebSocketChannel struct {
	conn *websocket.Conn

	closeOnce sync.Once
	closeErr  error
}

// NextChunk reads the next message; cancelling ctx unblocks the read
func (w *WebSocketChannel) NextChunk(ctx context.Context) (string, error) {
	stop := context.AfterFunc(ctx, func() {
		w.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return "", io.EOF
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "", io.EOF
			}
			return "", err
		}

		if messageType != websocket.BinaryMessage && messageType != websocket.TextMessage {
			continue
		}
		if len(data) == 0 {
			continue
		}
		return codec.Text(data), nil
	}
}

func (w *WebSocketChannel) Write(p []byte) error {
	return w.conn.WriteMessage(websocket.BinaryMessage, p)
}

// CloseWrite sends a close frame so the bridge stops forwarding
func (w *WebSocketChannel) CloseWrite() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func (w *WebSocketChannel) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.conn.Close()
	})
	return w.closeErr
}

// BridgeOpener dials a WebSocket bridge. Frame parameters are advisory since
// the remote end owns the physical port.
type BridgeOpener struct {
	URL              string
	SkipSSLVerify    bool
	HandshakeTimeout time.Duration
}

// Open dials the bridge
func (o BridgeOpener) Open(ctx context.Context, opts session.Options) (session.Channel, error) {
	u, err := url.Parse(o.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %q (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: o.HandshakeTimeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: o.SkipSSLVerify,
		}
	}

	logger.Debug("dialing bridge", "url", o.URL, "frame", opts.String())

	conn, resp, err := dialer.DialContext(ctx, o.URL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketChannel{conn: conn}, nil
}

// newOpener picks the bridge when a URL is configured, the serial port
// otherwise. The description names the endpoint for display.
func newOpener(conf config.Config) (session.Opener, string, error) {
	if conf.Bridge.URL != "" {
		opener := BridgeOpener{
			URL:              conf.Bridge.URL,
			SkipSSLVerify:    conf.Bridge.NoSSLVerify,
			HandshakeTimeout: time.Duration(conf.Bridge.HandshakeSecs) * time.Second,
		}
		return opener, fmt.Sprintf("WebSocket: %s", conf.Bridge.URL), nil
	}

	if conf.Serial.Port != "" {
		return SerialOpener{PortName: conf.Serial.Port}, fmt.Sprintf("Serial: %s", conf.Serial.Port), nil
	}

	return nil, "", errors.New("either --port or --url must be specified (see 'uartterm ports')")
}
