// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements the rtk CLI: a project-intelligence cache
// that shields LLM coding agents from redundantly re-reading source
// repositories.
//
// Usage:
//
//	rtk explore [--query-type=...] [--detail=...] [--profile=...] [--json]
//	rtk plan <task> [--budget=N] [--json]
//	rtk delta [--since=REV] [--json]
//	rtk refresh [--json]
//	rtk watch
//	rtk status [--json]
//	rtk clear [--yes]
//	rtk gain [--json]
//	rtk serve [--port=N]
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/rtk-project/rtk/internal/ui"
)

// GlobalFlags holds the global CLI flags shared by every subcommand.
type GlobalFlags struct {
	JSON    bool
	NoColor bool
	Verbose int
	Quiet   bool
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to .rtk/project.toml (default: discovered upward from cwd)")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v for info, -vv for debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential output")
	)

	// Stop parsing at the first non-flag argument so subcommand flags
	// (e.g. "plan --budget 4000") reach the subcommand's own FlagSet.
	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `rtk - project-intelligence cache for LLM coding agents

rtk maintains a versioned, incrementally-updated cache of a
repository's structure (modules, public symbols, type graph, API
surface, dependency manifest, test map) so an agent session can read
one small, layered context slice instead of re-scanning source files
on every turn.

Usage:
  rtk <command> [options]

Commands:
  explore       Render a layered context slice, rebuilding if stale
  delta         Report (added, modified, removed) since a reference point
  refresh       Force an unconditional cache rebuild
  watch         Watch the repository and rebuild on every quiet period
  plan          Assemble a token-budgeted file selection for a task
  status        Show cache freshness and size for the current project
  clear         Delete all cached data for the current project
  gain          Estimate token savings of explore vs. a raw repo read
  serve         Run the local HTTP daemon
  init          Create .rtk/project.toml configuration
  install-hook  Install (or remove) a git post-commit refresh hook
  completion    Generate a shell completion script (bash|zsh|fish)
  config        Show the effective configuration

Global Options:
  --json            Output in JSON format
  --no-color        Disable color output (respects NO_COLOR)
  -v, --verbose     Increase verbosity (-v info, -vv debug)
  -q, --quiet       Suppress non-essential output
  -c, --config      Path to .rtk/project.toml
  -V, --version     Show version and exit

Examples:
  rtk init
  rtk explore --query-type=bugfix --detail=compact
  rtk plan "fix the nil pointer in the churn cache" --budget 6000
  rtk status --json
  rtk watch

For detailed command help: rtk <command> --help
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("rtk version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	if *quiet && *verbose > 0 {
		fmt.Fprintf(os.Stderr, "Error: cannot use --quiet and --verbose together\n")
		os.Exit(1)
	}
	// JSON mode auto-enables quiet so a stray progress bar never
	// corrupts the JSON stream on stdout.
	if *jsonOutput {
		*quiet = true
	}

	globals := GlobalFlags{JSON: *jsonOutput, NoColor: *noColor, Verbose: *verbose, Quiet: *quiet}
	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "explore":
		runExplore(cmdArgs, *configPath, globals)
	case "delta":
		runDelta(cmdArgs, *configPath, globals)
	case "refresh":
		runRefresh(cmdArgs, *configPath, globals)
	case "plan":
		runPlan(cmdArgs, *configPath, globals)
	case "watch":
		runWatch(cmdArgs, *configPath, globals)
	case "status":
		runStatus(cmdArgs, *configPath, globals)
	case "clear":
		runClear(cmdArgs, *configPath, globals)
	case "gain":
		runGain(cmdArgs, *configPath, globals)
	case "serve":
		runServe(cmdArgs, *configPath, globals)
	case "init":
		runInit(cmdArgs, globals)
	case "install-hook":
		runInstallHook(cmdArgs, globals)
	case "completion":
		runCompletion(cmdArgs, globals)
	case "config":
		runConfigShow(cmdArgs, *configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)
