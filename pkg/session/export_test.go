// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/Thermoquad/uartterm/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func exportFixture() []Entry {
	at := time.Date(2025, 1, 1, 23, 5, 9, 0, time.UTC)
	return []Entry{
		{Direction: Sent, Text: "00000001 00000010", Encoding: codec.Binary, Timestamp: at},
		{Direction: Received, Text: codec.Text([]byte{0, 255, 16}), Timestamp: at.Add(time.Second)},
		{Direction: Sent, Text: "AT", Encoding: codec.ASCII, Timestamp: at.Add(2 * time.Second)},
	}
}

func TestExport_FormatsEachEntry(t *testing.T) {
	tests := []struct {
		format   codec.Format
		received string
	}{
		{codec.FormatHex, "00 ff 10"},
		{codec.FormatDecimal, "0 255 16"},
		{codec.FormatBinary, "00000000 11111111 00010000"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Export(&buf, exportFixture(), tt.format))

			expected := "23:05:09 TX: 00000001 00000010\n" +
				"23:05:10 RX: " + tt.received + "\n" +
				"23:05:11 TX: AT\n"
			assert.Equal(t, expected, buf.String())
		})
	}
}

func TestExport_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, nil, codec.FormatAuto))
	assert.Zero(t, buf.Len())
}

func TestExport_WriteError(t *testing.T) {
	err := Export(failingWriter{}, exportFixture(), codec.FormatASCII)
	assert.ErrorContains(t, err, "disk full")
}

func TestLog_AppendOrderAndClear(t *testing.T) {
	l := NewLog()
	for _, e := range exportFixture() {
		l.Append(e)
	}
	require.Equal(t, 3, l.Len())

	snapshot := l.Entries()
	snapshot[0].Text = "mutated"
	assert.Equal(t, "00000001 00000010", l.Entries()[0].Text)

	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Entries())
}
