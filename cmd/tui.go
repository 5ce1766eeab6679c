// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/lipgloss"
)

// theme holds the styles shared by the terminal views
type theme struct {
	title      lipgloss.Style
	header     lipgloss.Style
	statsLabel lipgloss.Style
	statsValue lipgloss.Style
	error      lipgloss.Style
	warning    lipgloss.Style
	box        lipgloss.Style
	focusedBox lipgloss.Style
	sent       lipgloss.Style
	received   lipgloss.Style
}

func newTheme(dark bool) theme {
	// Dark palette
	accent, muted, ok, bad, warn, border, titleBg := "12", "241", "10", "9", "11", "240", "235"
	if !dark {
		accent, muted, ok, bad, warn, border, titleBg = "4", "245", "2", "1", "3", "250", "254"
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Padding(0, 1)

	return theme{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(accent)).
			Background(lipgloss.Color(titleBg)).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color(muted)),
		statsLabel: lipgloss.NewStyle().
			Foreground(lipgloss.Color(accent)).
			Bold(true),
		statsValue: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ok)),
		error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(bad)).
			Bold(true),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(warn)),
		box:        box,
		focusedBox: box.BorderForeground(lipgloss.Color(accent)),
		sent: lipgloss.NewStyle().
			Foreground(lipgloss.Color(warn)).
			Bold(true),
		received: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ok)).
			Bold(true),
	}
}

// formatUptime formats a duration as a human-friendly string
func formatUptime(d time.Duration) string {
	if d < time.Second {
		return "0 seconds"
	}

	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	parts = appendUnit(parts, days, "day")
	parts = appendUnit(parts, hours, "hour")
	parts = appendUnit(parts, minutes, "minute")
	if seconds > 0 || len(parts) == 0 {
		parts = appendUnit(parts, seconds, "second")
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func appendUnit(parts []string, n int64, unit string) []string {
	switch {
	case n == 1:
		return append(parts, "1 "+unit)
	case n > 1:
		return append(parts, fmt.Sprintf("%d %ss", n, unit))
	}
	return parts
}

// printable replaces control characters so device output cannot move the
// cursor or restyle the screen
func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return '·'
		}
		return r
	}, s)
}
