// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui provides the small set of colorized console helpers shared
// by every rtk subcommand: headers, labels, status lines, and dimmed
// detail text. Colors degrade to plain text when NO_COLOR is set, stdout
// isn't a terminal, or the caller passed --no-color.
package ui

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Color aliases, reassigned by InitColors to no-op variants when color
// output is disabled. Subcommands use these directly (ui.Green.Println).
var (
	Green  = color.New(color.FgGreen)
	Yellow = color.New(color.FgYellow)
	Red    = color.New(color.FgRed)
	Cyan   = color.New(color.FgCyan)
	Dim    = color.New(color.Faint)
	Bold   = color.New(color.Bold)
)

// InitColors disables all color output when noColor is true, NO_COLOR is
// set, or stdout isn't a terminal. Call once at startup before any other
// helper in this package is used.
func InitColors(noColor bool) {
	disable := noColor || os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stdout.Fd())
	if disable {
		color.NoColor = true
	}
}

// Header prints a bold section title.
func Header(title string) {
	_, _ = Bold.Println(title)
}

// SubHeader prints an indented, dim sub-section title.
func SubHeader(title string) {
	_, _ = Dim.Printf("  %s\n", title)
}

// Label renders a field name in bold for "Label: value" lines.
func Label(s string) string {
	return Bold.Sprint(s)
}

// DimText renders s in faint color for secondary detail.
func DimText(s string) string {
	return Dim.Sprint(s)
}

// CountText renders an integer count with thousands separators, in bold.
func CountText(n int) string {
	return Bold.Sprint(humanize.Comma(int64(n)))
}

// Info prints a plain informational line.
func Info(msg string) {
	fmt.Println(msg)
}

// Infof prints a formatted informational line.
func Infof(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

// Success prints msg prefixed with a green checkmark.
func Success(msg string) {
	_, _ = Green.Printf("✓ %s\n", msg)
}

// Successf formats and prints a success line.
func Successf(format string, args ...any) {
	Success(fmt.Sprintf(format, args...))
}

// Warning prints msg prefixed with a yellow warning marker.
func Warning(msg string) {
	_, _ = Yellow.Fprintf(os.Stderr, "⚠ %s\n", msg)
}

// Warningf formats and prints a warning line to stderr.
func Warningf(format string, args ...any) {
	Warning(fmt.Sprintf(format, args...))
}

// Err prints msg prefixed with a red error marker to stderr.
func Err(msg string) {
	_, _ = Red.Fprintf(os.Stderr, "✗ %s\n", msg)
}

// Errf formats and prints an error line to stderr.
func Errf(format string, args ...any) {
	Err(fmt.Sprintf(format, args...))
}
