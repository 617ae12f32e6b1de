// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/rtk-project/rtk/internal/errors"
	"github.com/rtk-project/rtk/internal/ui"
)

// hookMarker identifies a post-commit hook installed by rtk, so
// --uninstall only ever removes rtk's own hook and never another
// tool's.
const hookMarker = "# installed-by: rtk install-hook"

const hookScript = `#!/bin/sh
` + hookMarker + `
rtk refresh --quiet >/dev/null 2>&1 &
`

func runInstallHook(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("install-hook", flag.ExitOnError)
	uninstall := fs.Bool("uninstall", false, "Remove a previously-installed rtk post-commit hook")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rtk install-hook [--uninstall]

Writes .git/hooks/post-commit to shell out to 'rtk refresh --quiet'
in the background after every commit, incrementally warming the
cache. rtk itself only writes this sentinel file; the hook script is
a plain shell one-liner, not an rtk subprocess contract.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot access working directory", err.Error(), "", err), false)
	}
	gitDir, err := findGitDir(cwd)
	if err != nil {
		errors.FatalError(errors.NewInputError(
			"Not a git repository",
			fmt.Sprintf("No .git directory found above %s", cwd),
			"Run this inside a git-managed project, or skip the hook and call 'rtk refresh' manually",
			err,
		), false)
	}
	hookPath := filepath.Join(gitDir, "hooks", "post-commit")

	if *uninstall {
		uninstallHook(hookPath)
		return
	}
	installPostCommitHookAt(hookPath)
}

func installPostCommitHook(cwd string) {
	gitDir, err := findGitDir(cwd)
	if err != nil {
		ui.Warningf("cannot find .git directory, skipping hook install: %v", err)
		return
	}
	installPostCommitHookAt(filepath.Join(gitDir, "hooks", "post-commit"))
}

func installPostCommitHookAt(hookPath string) {
	if existing, err := os.ReadFile(hookPath); err == nil && !strings.Contains(string(existing), hookMarker) {
		ui.Warningf("%s already exists and wasn't installed by rtk; leaving it untouched", hookPath)
		return
	}
	if err := os.MkdirAll(filepath.Dir(hookPath), 0o750); err != nil {
		ui.Warningf("cannot create hooks directory: %v", err)
		return
	}
	if err := os.WriteFile(hookPath, []byte(hookScript), 0o750); err != nil {
		ui.Warningf("cannot install git hook: %v", err)
		return
	}
	ui.Successf("Git hook installed: %s", hookPath)
}

func uninstallHook(hookPath string) {
	existing, err := os.ReadFile(hookPath)
	if err != nil {
		ui.Info("No hook installed.")
		return
	}
	if !strings.Contains(string(existing), hookMarker) {
		ui.Warning("post-commit hook exists but wasn't installed by rtk; leaving it untouched")
		return
	}
	if err := os.Remove(hookPath); err != nil {
		ui.Warningf("cannot remove hook: %v", err)
		return
	}
	ui.Success("Git hook removed.")
}

// findGitDir asks `git rev-parse --git-dir` first (which handles
// worktrees); if git fails, it walks upward from dir to the first
// .git directory. The fallback walk does not follow a .git file
// (a worktree's gitdir pointer).
func findGitDir(dir string) (string, error) {
	out, err := exec.Command("git", "-C", dir, "rev-parse", "--git-dir").Output()
	if err == nil {
		gitDir := strings.TrimSpace(string(out))
		if !filepath.IsAbs(gitDir) {
			gitDir = filepath.Join(dir, gitDir)
		}
		return gitDir, nil
	}
	for {
		candidate := filepath.Join(dir, ".git")
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
