// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Progress wraps a stderr progress bar that can be silenced wholesale
// in quiet mode (which --json also turns on) without callers needing
// to branch on every Add call.
type Progress struct {
	bar *progressbar.ProgressBar
}

// NewProgress creates a progress bar over total items. When quiet is
// true the bar writes to io.Discard, so Add/Finish remain cheap no-ops.
func NewProgress(total int, description string, quiet bool) *Progress {
	var out io.Writer = os.Stderr
	if quiet {
		out = io.Discard
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(out),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(100_000_000), // 100ms
	)
	return &Progress{bar: bar}
}

// Add advances the bar by n.
func (p *Progress) Add(n int) {
	_ = p.bar.Add(n)
}

// Finish marks the bar complete and clears it from the terminal.
func (p *Progress) Finish() {
	_ = p.bar.Finish()
}
