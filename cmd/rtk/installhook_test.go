// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInstallPostCommitHookAt_WritesHook(t *testing.T) {
	dir := t.TempDir()
	hookPath := filepath.Join(dir, "hooks", "post-commit")

	installPostCommitHookAt(hookPath)

	data, err := os.ReadFile(hookPath)
	if err != nil {
		t.Fatalf("expected hook file to be written: %v", err)
	}
	if !strings.Contains(string(data), hookMarker) {
		t.Fatal("installed hook is missing its rtk marker")
	}
}

func TestInstallPostCommitHookAt_LeavesForeignHookAlone(t *testing.T) {
	dir := t.TempDir()
	hookPath := filepath.Join(dir, "post-commit")
	if err := os.WriteFile(hookPath, []byte("#!/bin/sh\necho not rtk\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	installPostCommitHookAt(hookPath)

	data, err := os.ReadFile(hookPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), hookMarker) {
		t.Fatal("installPostCommitHookAt overwrote a hook it didn't install")
	}
}

func TestUninstallHook_RemovesOwnHookOnly(t *testing.T) {
	dir := t.TempDir()
	hookPath := filepath.Join(dir, "post-commit")
	installPostCommitHookAt(hookPath)

	uninstallHook(hookPath)

	if _, err := os.Stat(hookPath); !os.IsNotExist(err) {
		t.Fatal("expected the rtk-installed hook to be removed")
	}
}

func TestUninstallHook_LeavesForeignHookAlone(t *testing.T) {
	dir := t.TempDir()
	hookPath := filepath.Join(dir, "post-commit")
	if err := os.WriteFile(hookPath, []byte("#!/bin/sh\necho not rtk\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	uninstallHook(hookPath)

	if _, err := os.Stat(hookPath); err != nil {
		t.Fatal("uninstallHook must not remove a hook it didn't install")
	}
}

func TestFindGitDir_PlainDotGitDirectory(t *testing.T) {
	root := t.TempDir()
	gitDir := filepath.Join(root, ".git")
	if err := os.Mkdir(gitDir, 0o755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	found, err := findGitDir(nested)
	if err != nil {
		t.Fatalf("findGitDir() error = %v", err)
	}
	wantSuffix := filepath.Join(root, ".git")
	if !strings.HasSuffix(found, filepath.Base(wantSuffix)) {
		t.Fatalf("findGitDir() = %q, want a path ending in .git", found)
	}
}
