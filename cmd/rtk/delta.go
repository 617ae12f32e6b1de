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
)

func runDelta(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("delta", flag.ExitOnError)
	root := fs.String("root", ".", "Project root directory")
	since := fs.String("since", "", "Git revision to diff against (default: diff against the stored artifact)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rtk delta [options]

Reports the (added, modified, removed) file triple since either the
previously cached artifact (default) or a named git revision
(--since). This is always computed live and never cached.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	eng, _ := newEngine(configPath, globals)
	defer eng.Close()

	resp, err := eng.Delta(context.Background(), engine.DeltaRequest{
		ProjectRoot: projectRootFlag(*root),
		Since:       *since,
	})
	if err != nil {
		errors.FatalError(errors.NewInternalError(
			"Delta failed",
			err.Error(),
			"Check that the project root is a readable git repository if using --since",
			err,
		), globals.JSON)
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(resp)
		return
	}

	digest := resp.Context.ChangeDigest
	ui.SubHeader("Change Digest")
	for _, e := range digest.Added {
		fmt.Printf("  %s %s\n", ui.Green.Sprint("+"), e.Path)
	}
	for _, e := range digest.Modified {
		fmt.Printf("  %s %s\n", ui.Yellow.Sprint("~"), e.Path)
	}
	for _, e := range digest.Removed {
		fmt.Printf("  %s %s\n", ui.Red.Sprint("-"), e.Path)
	}
	if len(digest.Added)+len(digest.Modified)+len(digest.Removed) == 0 {
		ui.Info("No changes detected.")
	}
}
