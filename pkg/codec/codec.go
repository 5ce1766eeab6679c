// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package codec converts between the text a user types or reads and the raw
// bytes carried by the serial link.
//
// Outbound text is encoded in one of four radices (ascii, hex, binary,
// decimal). Inbound text is rendered for display in one of five formats
// (auto, ascii, hex, decimal, binary). Text inside the engine uses one rune
// per byte, so conversion in both directions is lossless.
package codec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ErrMalformedInput is returned when outbound text is not a valid token
// stream for the selected encoding.
var ErrMalformedInput = errors.New("malformed input")

// Encoding selects how outbound text is turned into bytes
type Encoding string

const (
	ASCII   Encoding = "ascii"
	Hex     Encoding = "hex"
	Binary  Encoding = "binary"
	Decimal Encoding = "decimal"
)

var encodings = []Encoding{ASCII, Hex, Binary, Decimal}

// Encodings returns all supported outbound encodings in menu order
func Encodings() []Encoding {
	out := make([]Encoding, len(encodings))
	copy(out, encodings)
	return out
}

// ParseEncoding parses a case-insensitive encoding name
func ParseEncoding(s string) (Encoding, error) {
	e := Encoding(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range encodings {
		if e == known {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown encoding %q (use ascii, hex, binary or decimal)", s)
}

// Next returns the encoding following e in menu order
func (e Encoding) Next() Encoding {
	for i, known := range encodings {
		if known == e {
			return encodings[(i+1)%len(encodings)]
		}
	}
	return ASCII
}

// Base returns the numeric base of a radix encoding, or 0 for ASCII
func (e Encoding) Base() int {
	switch e {
	case Hex:
		return 16
	case Binary:
		return 2
	case Decimal:
		return 10
	default:
		return 0
	}
}

// Format selects how received text is rendered
type Format string

const (
	FormatAuto    Format = "auto"
	FormatASCII   Format = "ascii"
	FormatHex     Format = "hex"
	FormatDecimal Format = "decimal"
	FormatBinary  Format = "binary"
)

var formats = []Format{FormatAuto, FormatASCII, FormatHex, FormatDecimal, FormatBinary}

// Formats returns all supported display formats in menu order
func Formats() []Format {
	out := make([]Format, len(formats))
	copy(out, formats)
	return out
}

// ParseFormat parses a case-insensitive display format name
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown display format %q (use auto, ascii, hex, decimal or binary)", s)
}

// Next returns the format following f in menu order
func (f Format) Next() Format {
	for i, known := range formats {
		if known == f {
			return formats[(i+1)%len(formats)]
		}
	}
	return FormatAuto
}

// Encode converts outbound text into the bytes to transmit.
//
// ASCII maps each code unit to one byte and always succeeds. The radix
// encodings expect whitespace separated tokens, each a value in 0-255.
func Encode(text string, enc Encoding) ([]byte, error) {
	base := enc.Base()
	if base == 0 {
		if enc != ASCII {
			return nil, fmt.Errorf("%w: unknown encoding %q", ErrMalformedInput, enc)
		}
		return Bytes(text), nil
	}

	tokens := strings.Fields(text)
	out := make([]byte, 0, len(tokens))
	for _, tok := range tokens {
		b, err := parseToken(tok, enc, base)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func parseToken(tok string, enc Encoding, base int) (byte, error) {
	digits := tok
	switch enc {
	case Hex:
		digits = trimPrefixFold(digits, "0x")
	case Binary:
		digits = trimPrefixFold(digits, "0b")
	}
	v, err := strconv.ParseUint(digits, base, 8)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %q exceeds 255", ErrMalformedInput, tok)
		}
		return 0, fmt.Errorf("%w: %q is not a valid %s byte", ErrMalformedInput, tok, enc)
	}
	return byte(v), nil
}

func trimPrefixFold(s, prefix string) string {
	if len(s) > len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):]
	}
	return s
}

// Decode renders received text in the given display format.
// ascii and auto return the text unchanged.
func Decode(text string, f Format) string {
	switch f {
	case FormatHex:
		return join(Bytes(text), func(b byte) string { return fmt.Sprintf("%02x", b) })
	case FormatDecimal:
		return join(Bytes(text), func(b byte) string { return strconv.Itoa(int(b)) })
	case FormatBinary:
		return join(Bytes(text), func(b byte) string { return fmt.Sprintf("%08b", b) })
	default:
		return text
	}
}

func join(data []byte, render func(byte) string) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(render(b))
	}
	return sb.String()
}

// Bytes maps text to its single-byte code units. Runes above 0xFF are outside
// the single-byte model and fall back to their UTF-8 bytes; invalid UTF-8 is
// passed through byte for byte.
func Bytes(text string) []byte {
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			out = append(out, text[i])
		case r <= 0xFF:
			out = append(out, byte(r))
		default:
			out = append(out, text[i:i+size]...)
		}
		i += size
	}
	return out
}

var latin1 = charmap.ISO8859_1

// Text decodes raw link bytes into engine text, one rune per byte
func Text(data []byte) string {
	out, err := latin1.NewDecoder().Bytes(data)
	if err != nil {
		// ISO-8859-1 maps every byte; keep the raw bytes if that ever changes
		return string(data)
	}
	return string(out)
}
