// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// gain reports an estimated token-savings comparison between a raw,
// full-repo read and the layered explore payload for the same
// project. The raw side sums the planner's token estimator over every
// cached file; the explore side is a flat per-entry estimate of the
// rendered layers (see estimateContextTokens).
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
	"github.com/rtk-project/rtk/pkg/planner"
	"github.com/rtk-project/rtk/pkg/renderer"
)

type gainResult struct {
	ProjectRoot   string  `json:"project_root"`
	FileCount     int     `json:"file_count"`
	RawTokens     int     `json:"raw_tokens_estimate"`
	ExploreTokens int     `json:"explore_tokens_estimate"`
	SavedTokens   int     `json:"saved_tokens_estimate"`
	SavedFraction float64 `json:"saved_fraction"`
}

func runGain(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("gain", flag.ExitOnError)
	root := fs.String("root", ".", "Project root directory")
	queryType := fs.String("query-type", "general", "general|bugfix|feature|refactor|incident")
	detail := fs.String("detail", "normal", "compact|normal|verbose")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rtk gain [options]

Estimates the token savings of 'rtk explore' versus reading every
source file in full. The full read is sized with the planner's own
token estimator, the explore payload with a flat per-entry estimate.
The cache is rebuilt first if stale or dirty, exactly like explore.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	eng, _ := newEngine(configPath, globals)
	defer eng.Close()

	ctx := context.Background()
	projectRoot := projectRootFlag(*root)

	resp, err := eng.Explore(ctx, engine.ExploreRequest{
		ProjectRoot: projectRoot,
		QueryType:   renderer.QueryType(*queryType),
		Detail:      renderer.Detail(*detail),
		Profile:     renderer.ProfileFull,
	})
	if err != nil {
		errors.FatalError(errors.NewInternalError("Gain estimate failed", err.Error(), "", err), globals.JSON)
	}

	projectID, err := eng.Store.EnsureProject(ctx, projectRoot)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError("Cannot resolve project", err.Error(), "", err), globals.JSON)
	}
	art, err := eng.Store.LoadArtifact(ctx, projectID)
	if err != nil || art == nil {
		errors.FatalError(errors.NewInternalError("No cached artifact to estimate against", "", "Run 'rtk explore' first", err), globals.JSON)
	}

	var rawTokens int
	for _, fa := range art.Files {
		rawTokens += planner.EstimateTokens(fa.Path, fa.LineCount)
	}

	exploreTokens := estimateContextTokens(resp.Context)
	saved := rawTokens - exploreTokens
	fraction := 0.0
	if rawTokens > 0 {
		fraction = float64(saved) / float64(rawTokens)
	}

	result := gainResult{
		ProjectRoot:   projectRoot,
		FileCount:     len(art.Files),
		RawTokens:     rawTokens,
		ExploreTokens: exploreTokens,
		SavedTokens:   saved,
		SavedFraction: fraction,
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}

	ui.Header("Token Savings Estimate")
	fmt.Printf("  Raw repo read:   %s tokens (%s files)\n", ui.CountText(result.RawTokens), ui.CountText(result.FileCount))
	fmt.Printf("  Explore payload: %s tokens\n", ui.CountText(result.ExploreTokens))
	fmt.Printf("  Saved:           %s tokens (%.1f%%)\n", ui.CountText(result.SavedTokens), result.SavedFraction*100)
}

// estimateContextTokens sums an approximate token cost for a rendered
// context slice from flat per-entry costs: 12 per API-surface symbol,
// 8 per module-index entry, 4 per test-map entry, 20 for the project
// map and 30 for the dependency manifest. It does not call the
// planner's token estimator.
func estimateContextTokens(c *renderer.Context) int {
	if c == nil {
		return 0
	}
	total := 0
	for _, fs := range c.APISurface {
		for range fs.Symbols {
			total += 12 // one symbol signature line, roughly
		}
	}
	total += len(c.ModuleIndex) * 8
	total += len(c.TestMap) * 4
	if c.ProjectMap != nil {
		total += 20
	}
	if c.DepManifest != nil {
		total += 30
	}
	return total
}
