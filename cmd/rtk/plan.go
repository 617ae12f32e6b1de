// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/rtk-project/rtk/internal/errors"
	"github.com/rtk-project/rtk/internal/ui"
	"github.com/rtk-project/rtk/pkg/engine"
	"github.com/rtk-project/rtk/pkg/planner"
)

func runPlan(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	root := fs.String("root", ".", "Project root directory")
	budget := fs.Int("budget", 0, "Token budget (default: planner.token_budget_default)")
	intent := fs.String("intent", "", "Override intent classification: bugfix|feature|refactor|incident|general")
	legacy := fs.Bool("legacy", false, "Force the structural-score-plus-churn fallback pipeline")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rtk plan <task description> [options]

Assembles a token-budgeted file selection ranked against task,
combining graph-structural, semantic, and churn signals. Falls open
to a simpler ranking path on any sub-stage failure.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	task := strings.Join(fs.Args(), " ")
	if task == "" {
		errors.FatalError(errors.NewInputError(
			"Missing task description",
			"rtk plan requires a task description argument",
			`Run 'rtk plan "describe the task" [--budget N]'`,
			nil,
		), globals.JSON)
	}

	eng, _ := newEngine(configPath, globals)
	defer eng.Close()

	resp, err := eng.Plan(context.Background(), engine.PlanRequest{
		ProjectRoot: projectRootFlag(*root),
		Task:        task,
		TokenBudget: *budget,
		Intent:      planner.IntentKind(*intent),
		Legacy:      *legacy,
	})
	if err != nil {
		errors.FatalError(errors.NewInputError(
			"Plan failed",
			err.Error(),
			"Run 'rtk explore' or 'rtk refresh' first to populate the cache",
			err,
		), globals.JSON)
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(resp)
		return
	}

	plan := resp.Plan
	ui.Header(fmt.Sprintf("Plan — intent=%s pipeline=%s", plan.Intent.Kind, plan.PipelineVersion))
	ui.SubHeader(fmt.Sprintf("Selected (%d files, %d/%d tokens)", len(plan.Selected), plan.Budget.TokensUsed, plan.Budget.TokenBudget))
	for _, sel := range plan.Selected {
		over := ""
		if sel.OverBudget {
			over = ui.Yellow.Sprint(" [over budget]")
		}
		fmt.Printf("  %s  %s  %.2f%s\n", ui.DimText(fmt.Sprintf("%6d tok", sel.EstimatedTokens)), sel.Path, sel.Score, over)
	}
	if len(plan.Dropped) > 0 {
		ui.SubHeader(fmt.Sprintf("Dropped (%d)", len(plan.Dropped)))
	}
}
