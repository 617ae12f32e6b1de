// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/rtk-project/rtk/internal/errors"
	"github.com/rtk-project/rtk/internal/ui"
	"github.com/rtk-project/rtk/pkg/renderer"
)

func runWatch(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	root := fs.String("root", ".", "Project root directory")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rtk watch [options]

Watches the project root recursively and rebuilds the cache (with a
~1s debounce) every time the filesystem goes quiet after a change.
Runs until interrupted (Ctrl-C).

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	eng, _ := newEngine(configPath, globals)
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := eng.Watch(ctx, projectRootFlag(*root))
	if err != nil {
		errors.FatalError(errors.NewInternalError(
			"Cannot start watcher",
			err.Error(),
			"Check that the project root exists and is readable",
			err,
		), globals.JSON)
	}

	ui.Info("Watching for changes. Press Ctrl-C to stop.")
	for ev := range events {
		if ev.Err != nil {
			ui.Warningf("rebuild failed: %v", ev.Err)
			continue
		}
		_ = renderer.WriteText(os.Stdout, ev.Response.Envelope)
	}
	ui.Info("Watcher stopped.")
}
