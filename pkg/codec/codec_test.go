// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// newFuzzRng creates a seeded generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// ============================================================
// Encode Tests
// ============================================================

func TestEncode_ASCIIIsIdentity(t *testing.T) {
	out, err := Encode("AT+GMR\t", ASCII)
	require.NoError(t, err)
	assert.Equal(t, []byte("AT+GMR\t"), out)
}

func TestEncode_ASCIIEmpty(t *testing.T) {
	out, err := Encode("", ASCII)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEncode_Radices(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		enc      Encoding
		expected []byte
	}{
		{"hex pair", "41 42", Hex, []byte{0x41, 0x42}},
		{"hex upper and prefix", "0xFF 0a  7E", Hex, []byte{0xFF, 0x0A, 0x7E}},
		{"hex single digit", "f", Hex, []byte{0x0F}},
		{"decimal", "0 255 16", Decimal, []byte{0, 255, 16}},
		{"decimal newline separated", "13\n10", Decimal, []byte{13, 10}},
		{"binary", "00000000 11111111 00010000", Binary, []byte{0, 255, 16}},
		{"binary short and prefix", "1 0b101", Binary, []byte{1, 5}},
		{"blank radix input", "   ", Hex, []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Encode(tt.text, tt.enc)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestEncode_MalformedInput(t *testing.T) {
	tests := []struct {
		name string
		text string
		enc  Encoding
	}{
		{"hex out of range", "100", Hex},
		{"hex bad digit", "4g", Hex},
		{"hex bare prefix", "0x", Hex},
		{"decimal out of range", "256", Decimal},
		{"decimal negative", "-1", Decimal},
		{"decimal signed", "+1", Decimal},
		{"decimal with letters", "12a", Decimal},
		{"binary bad digit", "102", Binary},
		{"binary too wide", "111111111", Binary},
		{"one bad token among good", "41 zz 42", Hex},
		{"unknown encoding", "41", Encoding("octal")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Encode(tt.text, tt.enc)
			require.ErrorIs(t, err, ErrMalformedInput)
			assert.Nil(t, out)
		})
	}
}

// ============================================================
// Decode Tests
// ============================================================

func TestDecode_KnownBytes(t *testing.T) {
	text := Text([]byte{0, 255, 16})

	assert.Equal(t, "00 ff 10", Decode(text, FormatHex))
	assert.Equal(t, "00000000 11111111 00010000", Decode(text, FormatBinary))
	assert.Equal(t, "0 255 16", Decode(text, FormatDecimal))
}

func TestDecode_AutoAndASCIIAreIdentity(t *testing.T) {
	for _, f := range []Format{FormatAuto, FormatASCII} {
		assert.Equal(t, "OK\x7f", Decode("OK\x7f", f), "format %s", f)
	}
}

func TestDecode_Empty(t *testing.T) {
	for _, f := range Formats() {
		assert.Equal(t, "", Decode("", f), "format %s", f)
	}
}

// ============================================================
// Byte/Text Mapping Tests
// ============================================================

func TestText_EveryByteIsOneRune(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	text := Text(all)
	assert.Equal(t, 256, len([]rune(text)))
	assert.Equal(t, all, Bytes(text))
}

func TestBytes_InvalidUTF8PassesThrough(t *testing.T) {
	assert.Equal(t, []byte{0x41, 0xC3}, Bytes(string([]byte{0x41, 0xC3})))
}

func TestBytes_WideRuneFallsBackToUTF8(t *testing.T) {
	assert.Equal(t, []byte("€"), Bytes("€"))
}

// ============================================================
// Round Trip Property
// ============================================================

func TestRoundTrip_RandomBytes(t *testing.T) {
	rng := newFuzzRng(t)
	pairs := []struct {
		format Format
		enc    Encoding
	}{
		{FormatHex, Hex},
		{FormatDecimal, Decimal},
		{FormatBinary, Binary},
	}

	for round := 0; round < getFuzzRounds(); round++ {
		data := make([]byte, rng.Intn(64))
		rng.Read(data)
		text := Text(data)

		for _, p := range pairs {
			rendered := Decode(text, p.format)
			back, err := Encode(rendered, p.enc)
			require.NoError(t, err, "round %d format %s rendered %q", round, p.format, rendered)
			require.Equal(t, data, back, "round %d format %s", round, p.format)
		}
	}
}

// ============================================================
// Parse Helpers
// ============================================================

func TestParseEncoding(t *testing.T) {
	enc, err := ParseEncoding(" HEX ")
	require.NoError(t, err)
	assert.Equal(t, Hex, enc)

	_, err = ParseEncoding("octal")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Binary")
	require.NoError(t, err)
	assert.Equal(t, FormatBinary, f)

	_, err = ParseFormat("utf16")
	assert.Error(t, err)
}

func TestNext_Cycles(t *testing.T) {
	enc := ASCII
	for range Encodings() {
		enc = enc.Next()
	}
	assert.Equal(t, ASCII, enc)

	f := FormatAuto
	for range Formats() {
		f = f.Next()
	}
	assert.Equal(t, FormatAuto, f)
	assert.Equal(t, FormatHex, FormatASCII.Next())
}
