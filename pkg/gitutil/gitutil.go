// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gitutil wraps git subprocess invocations used by the
// Indexer's git-delta mode and the Planner's churn signal.
package gitutil

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner is the interface for executing git commands, allowing tests
// to substitute a fake without a real repository.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
	RepoRoot() string
}

// Executor shells out to the system `git` binary.
type Executor struct {
	repoRoot string
}

// NewExecutor discovers the git repository root containing startPath.
// Returns an error if startPath is not inside a git working tree —
// callers treat that as "git-delta mode unavailable", never as a
// fatal error for the rest of the Indexer.
func NewExecutor(ctx context.Context, startPath string) (*Executor, error) {
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return nil, fmt.Errorf("gitutil: resolve absolute path: %w", err)
	}

	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	cmd.Dir = absPath
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("gitutil: not a git repository: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("gitutil: git not available: %w", err)
	}
	root := strings.TrimSpace(string(out))
	if root == "" {
		return nil, fmt.Errorf("gitutil: could not determine repository root")
	}
	return &Executor{repoRoot: root}, nil
}

// RepoRoot returns the absolute repository root.
func (e *Executor) RepoRoot() string { return e.repoRoot }

// Run executes a git subcommand in the repository root.
func (e *Executor) Run(ctx context.Context, args ...string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("gitutil: no command specified")
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = e.repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("gitutil: git %s timed out: %w", args[0], ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("gitutil: git %s failed: %s", args[0], msg)
		}
		return "", fmt.Errorf("gitutil: git %s failed: %w", args[0], err)
	}
	return stdout.String(), nil
}

// HeadSHA resolves the current HEAD commit.
func HeadSHA(ctx context.Context, r Runner) (string, error) {
	out, err := r.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
