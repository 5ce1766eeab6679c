// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"fmt"
	"time"
)

// Statistics tracks traffic counters and rates for a session
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	BytesSent     uint64
	BytesReceived uint64
	LinesSent     uint64
	LinesReceived uint64
	Rejected      uint64 // sends refused by the codec

	// Rates (calculated)
	RxRate float64 // bytes/sec
	TxRate float64 // bytes/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics(now time.Time) Statistics {
	return Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

func (s *Statistics) received(bytes, lines int, now time.Time) {
	s.BytesReceived += uint64(bytes)
	s.LinesReceived += uint64(lines)
	s.LastUpdateTime = now
}

func (s *Statistics) sent(bytes int, now time.Time) {
	s.BytesSent += uint64(bytes)
	s.LinesSent++
	s.LastUpdateTime = now
}

// CalculateRates calculates byte rates as of now
func (s *Statistics) CalculateRates(now time.Time) {
	elapsed := now.Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.RxRate = float64(s.BytesReceived) / elapsed
		s.TxRate = float64(s.BytesSent) / elapsed
	}
}

// String returns a formatted statistics summary
func (s Statistics) String() string {
	elapsed := s.LastUpdateTime.Sub(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Bytes Sent:      %8d\n", s.BytesSent)
	result += fmt.Sprintf("Bytes Received:  %8d\n", s.BytesReceived)
	result += fmt.Sprintf("Lines Sent:      %8d\n", s.LinesSent)
	result += fmt.Sprintf("Lines Received:  %8d\n", s.LinesReceived)
	if s.Rejected > 0 {
		result += fmt.Sprintf("Rejected Sends:  %8d\n", s.Rejected)
	}
	result += fmt.Sprintf("RX Rate:         %8.1f B/s\n", s.RxRate)
	result += fmt.Sprintf("TX Rate:         %8.1f B/s\n", s.TxRate)
	result += "================================\n"

	return result
}
