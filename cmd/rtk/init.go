// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/rtk-project/rtk/internal/errors"
	"github.com/rtk-project/rtk/internal/ui"
	"github.com/rtk-project/rtk/pkg/config"
)

func runInit(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing .rtk/project.toml")
	strict := fs.Bool("strict", false, "Enable strict mode: fail instead of auto-rebuilding on a stale/dirty cache")
	hook := fs.Bool("hook", false, "Install the git post-commit refresh hook without prompting")
	noHook := fs.Bool("no-hook", false, "Skip git hook installation without prompting")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rtk init [options]

Creates .rtk/project.toml with the zero-config defaults. rtk works
without this file; init is for projects that want to commit tuned
settings (TTL, layer toggles, planner budget) to source control.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewInternalError(
			"Cannot access working directory",
			err.Error(),
			"This is unexpected; please report this issue if it persists",
			err,
		), false)
	}

	configPath := filepath.Join(cwd, configRelPath)
	if _, statErr := os.Stat(configPath); statErr == nil && !*force {
		errors.FatalError(errors.NewInputError(
			"Configuration already exists",
			fmt.Sprintf("%s already exists", configPath),
			"Use 'rtk init --force' to overwrite it",
			nil,
		), false)
	}

	cfg := config.Default()
	cfg.Features.Strict = *strict

	if err := config.Save(configPath, cfg); err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot write configuration",
			err.Error(),
			"Check directory permissions for "+filepath.Dir(configPath),
			err,
		), false)
	}
	ui.Successf("Wrote %s", configPath)

	if !*noHook {
		shouldInstall := *hook
		if !shouldInstall {
			shouldInstall = promptYesNo("Install git hook for auto-refresh on commit? (Y/n)")
		}
		if shouldInstall {
			installPostCommitHook(cwd)
		}
	}

	fmt.Println()
	ui.SubHeader("Next steps:")
	fmt.Printf("  1. Review %s if needed\n", ui.DimText(".rtk/project.toml"))
	fmt.Printf("  2. Run '%s' to build the cache\n", ui.Cyan.Sprint("rtk explore"))
	fmt.Printf("  3. Run '%s' to verify it\n", ui.Cyan.Sprint("rtk status"))
}

func promptYesNo(label string) bool {
	fmt.Printf("%s ", label)
	var answer string
	_, _ = fmt.Scanln(&answer)
	switch answer {
	case "n", "N", "no", "No":
		return false
	default:
		return true
	}
}
