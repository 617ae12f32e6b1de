// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/rtk-project/rtk/internal/errors"
	"github.com/rtk-project/rtk/internal/ui"
	"github.com/rtk-project/rtk/pkg/engine"
	"github.com/rtk-project/rtk/pkg/renderer"
)

func runRefresh(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	root := fs.String("root", ".", "Project root directory")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rtk refresh [options]

Forces an unconditional cache rebuild regardless of the current
freshness state.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	eng, _ := newEngine(configPath, globals)
	defer eng.Close()

	root2 := projectRootFlag(*root)
	var bar *ui.Progress
	if !globals.Quiet {
		bar = ui.NewProgress(1, "rebuilding cache", globals.Quiet)
	}

	resp, err := eng.Refresh(context.Background(), engine.RefreshRequest{ProjectRoot: root2})
	if bar != nil {
		bar.Add(1)
		bar.Finish()
	}
	if err != nil {
		errors.FatalError(errors.NewInternalError(
			"Refresh failed",
			err.Error(),
			"Check that the project root is readable and the cache database isn't corrupted",
			err,
		), globals.JSON)
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(resp)
		return
	}
	_ = renderer.WriteText(os.Stdout, resp.Envelope)
	ui.Success("Cache refreshed.")
}
