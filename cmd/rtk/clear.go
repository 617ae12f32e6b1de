// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/rtk-project/rtk/internal/errors"
	"github.com/rtk-project/rtk/internal/ui"
)

func runClear(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	root := fs.String("root", ".", "Project root directory")
	confirm := fs.Bool("yes", false, "Confirm the clear (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rtk clear --yes [options]

WARNING: destructive. Deletes the cached artifact, edges, and cache
event history for the current project from the rtk database. The
configuration file (.rtk/project.toml) is not touched; re-run 'rtk
explore' or 'rtk refresh' afterward to rebuild the cache.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if !*confirm {
		errors.FatalError(errors.NewInputError(
			"Confirmation required",
			"The --yes flag is required to confirm this destructive operation",
			"Run 'rtk clear --yes' to confirm you want to delete all cached data for this project",
			nil,
		), false)
	}

	eng, _ := newEngine(configPath, globals)
	defer eng.Close()

	ctx := context.Background()
	projectRoot := projectRootFlag(*root)
	projectID, err := eng.Store.EnsureProject(ctx, projectRoot)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError("Cannot resolve project", err.Error(), "", err), globals.JSON)
	}
	if err := eng.Store.Clear(ctx, projectID); err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot clear cached data",
			err.Error(),
			"Check that no other rtk process holds the database lock and try again",
			err,
		), globals.JSON)
	}

	ui.Success("Cleared. All cached data for this project has been deleted.")
}
