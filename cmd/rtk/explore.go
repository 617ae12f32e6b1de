// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/rtk-project/rtk/internal/errors"
	"github.com/rtk-project/rtk/internal/ui"
	"github.com/rtk-project/rtk/pkg/engine"
	"github.com/rtk-project/rtk/pkg/freshness"
	"github.com/rtk-project/rtk/pkg/renderer"
)

func runExplore(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("explore", flag.ExitOnError)
	root := fs.String("root", ".", "Project root directory")
	queryType := fs.String("query-type", "general", "general|bugfix|feature|refactor|incident")
	detail := fs.String("detail", "normal", "compact|normal|verbose")
	profile := fs.String("profile", "llm", "llm|full")
	strictFlag := fs.Bool("strict", false, "Fail instead of rebuilding on a stale/dirty cache")
	noStrict := fs.Bool("no-strict", false, "Force-disable strict mode for this call")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rtk explore [options]

Renders a layered context slice of the project: entry points and hot
paths (L0), a module index (L1), the type graph (L2), a capped API
surface (L3), the dependency manifest (L4), and the test map (L5).
Rebuilds the underlying cache first if it's stale or dirty.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	eng, _ := newEngine(configPath, globals)
	defer eng.Close()

	req := engine.ExploreRequest{
		ProjectRoot: projectRootFlag(*root),
		QueryType:   renderer.QueryType(*queryType),
		Detail:      renderer.Detail(*detail),
		Profile:     renderer.Profile(*profile),
	}
	if *strictFlag {
		t := true
		req.Strict = &t
	}
	if *noStrict {
		f := false
		req.Strict = &f
	}

	resp, err := eng.Explore(context.Background(), req)
	if err != nil {
		errors.FatalError(classifyEngineError(err), globals.JSON)
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(resp)
		return
	}

	_ = renderer.WriteText(os.Stdout, resp.Envelope)
	printContext(resp.Context)
}

// printContext writes a short human-readable summary of a rendered
// context slice; full JSON detail is reserved for --json.
func printContext(c *renderer.Context) {
	if c == nil {
		return
	}
	if c.ProjectMap != nil {
		ui.SubHeader("Project Map")
		fmt.Printf("  entry points: %v\n", c.ProjectMap.EntryPointHints)
		fmt.Printf("  hot paths:    %v\n", c.ProjectMap.HotPaths)
	}
	if len(c.ModuleIndex) > 0 {
		ui.SubHeader(fmt.Sprintf("Module Index (%d)", len(c.ModuleIndex)))
		for _, m := range c.ModuleIndex {
			fmt.Printf("  %s  %s\n", ui.DimText(m.Language), m.Path)
		}
	}
	if len(c.APISurface) > 0 {
		ui.SubHeader(fmt.Sprintf("API Surface (%d files)", len(c.APISurface)))
	}
	if len(c.TestMap) > 0 {
		ui.SubHeader(fmt.Sprintf("Test Map (%d)", len(c.TestMap)))
	}
	if c.ChangeDigest != nil {
		ui.SubHeader("Change Digest")
		fmt.Printf("  +%d ~%d -%d\n", len(c.ChangeDigest.Added), len(c.ChangeDigest.Modified), len(c.ChangeDigest.Removed))
	}
}

// classifyEngineError maps an engine error to the right CLI error
// category: a strict-mode freshness violation is a degraded/warning
// result (exit code 2), anything else is a hard failure.
func classifyEngineError(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, freshness.ErrStale) || stderrors.Is(err, freshness.ErrDirty) {
		return errors.NewDegradedError(
			"Strict-mode freshness violation",
			err.Error(),
			"Run 'rtk refresh' to rebuild the cache, or drop --strict for this call",
			err,
		)
	}
	return errors.NewInternalError(
		"Explore failed",
		err.Error(),
		"Check that the project root is readable and the cache database isn't corrupted",
		err,
	)
}
