// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/rtk-project/rtk/internal/errors"
	"github.com/rtk-project/rtk/internal/ui"
	"github.com/rtk-project/rtk/pkg/freshness"
	"github.com/rtk-project/rtk/pkg/scanner"
	"github.com/rtk-project/rtk/pkg/store"
)

// statusResult is the JSON shape of `rtk status`.
type statusResult struct {
	ProjectID string    `json:"project_id"`
	Root      string    `json:"root"`
	DBPath    string    `json:"db_path"`
	Indexed   bool      `json:"indexed"`
	Freshness string    `json:"freshness"`
	FileCount int       `json:"file_count"`
	BuiltAt   time.Time `json:"built_at,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func runStatus(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	rootFlag := fs.String("root", ".", "Project root directory")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rtk status [options]

Reports the current project's cache freshness and size without
rebuilding anything.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	eng, cfg := newEngine(configPath, globals)
	defer eng.Close()

	ctx := context.Background()
	root := projectRootFlag(*rootFlag)
	projectID, err := eng.Store.EnsureProject(ctx, root)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError("Cannot read project status", err.Error(), "", err), globals.JSON)
	}

	art, err := eng.Store.LoadArtifact(ctx, projectID)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError("Cannot read cached artifact", err.Error(), "", err), globals.JSON)
	}

	dbPath := cfg.Store.DBPath
	if dbPath == "" {
		dbPath = store.DefaultPath("")
	}

	result := statusResult{ProjectID: projectID, Root: root, DBPath: dbPath}
	if art == nil {
		result.Indexed = false
		result.Freshness = string(freshness.Miss)
		result.Error = "Project not indexed yet. Run 'rtk explore' or 'rtk refresh' first."
	} else {
		scanResult, scanErr := scanner.Walk(ctx, root, scanner.Options{}, eng.Logger)
		class := freshness.Classification{State: freshness.Miss}
		if scanErr == nil {
			ttl := time.Duration(cfg.Store.TTLSeconds) * time.Second
			class = freshness.Classify(art, scanResult.Files, ttl, time.Now())
		}
		result.Indexed = true
		result.Freshness = string(class.State)
		result.FileCount = len(art.Files)
		result.BuiltAt = art.UpdatedAt
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}

	ui.Header("rtk Project Status")
	fmt.Printf("%s  %s\n", ui.Label("Project ID:"), result.ProjectID)
	fmt.Printf("%s        %s\n", ui.Label("Root:"), ui.DimText(result.Root))
	fmt.Printf("%s     %s\n", ui.Label("DB Path:"), ui.DimText(result.DBPath))
	fmt.Println()
	if !result.Indexed {
		ui.Warning(result.Error)
		return
	}
	ui.SubHeader("Cache:")
	fmt.Printf("  Freshness:  %s\n", result.Freshness)
	fmt.Printf("  Files:      %s\n", ui.CountText(result.FileCount))
	fmt.Printf("  Built:      %s\n", ui.DimText(result.BuiltAt.Format(time.RFC3339)))
}
