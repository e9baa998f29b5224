// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides rich terminal output styling for the RegistryDeck CLI.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// RegistryDeck color palette - registry crimson over graphite
var (
	// Primary palette
	ColorCrimson       = lipgloss.Color("#CB3837") // npm crimson - brand, highlights
	ColorCrimsonBright = lipgloss.Color("#E85857") // Bright crimson - interactive elements
	ColorCrimsonDeep   = lipgloss.Color("#8F2625") // Deep crimson - borders, accents

	// Graphite palette (backgrounds, muted elements)
	ColorGraphite = lipgloss.Color("#3B4252") // Graphite - muted text, borders
	ColorCharcoal = lipgloss.Color("#2E3440") // Charcoal - deep backgrounds
	ColorAsh      = lipgloss.Color("#6B7280") // Ash - secondary text

	// Semantic colors
	ColorSuccess = lipgloss.Color("#34D399") // Green for success
	ColorWarning = lipgloss.Color("#F4D03F") // Gold/amber for warnings
	ColorError   = lipgloss.Color("#E74C3C") // Red for errors
	ColorMuted   = lipgloss.Color("#6B7280") // Ash for muted text
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	// Text styles
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	// Box styles
	Box        lipgloss.Style
	WarningBox lipgloss.Style
	ErrorBox   lipgloss.Style

	// Queue status badges
	StatusPending   lipgloss.Style
	StatusApproved  lipgloss.Style
	StatusRunning   lipgloss.Style
	StatusCompleted lipgloss.Style
	StatusFailed    lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorCrimsonBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorCrimson),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorMuted),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorCrimsonBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorCrimsonDeep).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),

	StatusPending:   lipgloss.NewStyle().Foreground(ColorAsh),
	StatusApproved:  lipgloss.NewStyle().Foreground(ColorWarning),
	StatusRunning:   lipgloss.NewStyle().Foreground(ColorCrimsonBright),
	StatusCompleted: lipgloss.NewStyle().Foreground(ColorSuccess),
	StatusFailed:    lipgloss.NewStyle().Foreground(ColorError),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconRunning Icon = "●"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
	IconLock    Icon = "⚿"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	if !IsTTY() {
		return string(i)
	}
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	case IconRunning:
		return Styles.Highlight.Render(string(i))
	default:
		return string(i)
	}
}

// IsTTY reports whether stdout is an interactive terminal.
//
// When false, all helpers degrade to plain unstyled output so that piped
// or redirected CLI output stays machine-friendly.
func IsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// StatusBadge renders a queue status name in its semantic color.
//
// Unknown statuses render unstyled; the CLI must not break when the
// connector grows a new state.
func StatusBadge(status string) string {
	if !IsTTY() {
		return status
	}
	switch status {
	case "pending":
		return Styles.StatusPending.Render(status)
	case "approved":
		return Styles.StatusApproved.Render(status)
	case "running":
		return Styles.StatusRunning.Render(status)
	case "completed":
		return Styles.StatusCompleted.Render(status)
	case "failed":
		return Styles.StatusFailed.Render(status)
	case "cancelled":
		return Styles.Muted.Render(status)
	default:
		return status
	}
}

// Title prints a styled section title.
func Title(text string) {
	if IsTTY() {
		fmt.Println(Styles.Title.Render(text))
		return
	}
	fmt.Println(text)
}

// Successf prints a success line with icon.
func Successf(format string, args ...any) {
	fmt.Printf("%s %s\n", IconSuccess.Render(), fmt.Sprintf(format, args...))
}

// Warnf prints a warning line with icon.
func Warnf(format string, args ...any) {
	fmt.Printf("%s %s\n", IconWarning.Render(), fmt.Sprintf(format, args...))
}

// Errorf prints an error line with icon to stderr.
func Errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", IconError.Render(), fmt.Sprintf(format, args...))
}

// KeyValue prints an aligned "key: value" detail line.
func KeyValue(key, value string) {
	if IsTTY() {
		fmt.Printf("  %s %s\n", Styles.Muted.Render(key+":"), value)
		return
	}
	fmt.Printf("  %s: %s\n", key, value)
}
