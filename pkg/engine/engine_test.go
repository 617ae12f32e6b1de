// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/rtk-project/rtk/pkg/config"
	"github.com/rtk-project/rtk/pkg/freshness"
	"github.com/rtk-project/rtk/pkg/renderer"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Store.DBPath = filepath.Join(t.TempDir(), "rtk.db")

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 100}))
	eng, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte(
		"package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte(
		"module example.com/fixture\n\ngo 1.24\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return eng, root
}

func TestExplore_BuildsOnFirstCall(t *testing.T) {
	eng, root := newTestEngine(t)
	ctx := context.Background()

	resp, err := eng.Explore(ctx, ExploreRequest{
		ProjectRoot: root,
		QueryType:   renderer.QueryGeneral,
		Detail:      renderer.DetailNormal,
		Profile:     renderer.ProfileFull,
	})
	if err != nil {
		t.Fatalf("Explore() error = %v", err)
	}
	if resp.Context == nil {
		t.Fatal("Explore() returned a nil Context")
	}
	if resp.Envelope.Stats.FileCount == 0 {
		t.Fatal("Explore() reported zero files for a two-file fixture")
	}
}

func TestExplore_SecondCallIsFresh(t *testing.T) {
	eng, root := newTestEngine(t)
	ctx := context.Background()

	req := ExploreRequest{ProjectRoot: root, QueryType: renderer.QueryGeneral, Detail: renderer.DetailNormal, Profile: renderer.ProfileFull}
	if _, err := eng.Explore(ctx, req); err != nil {
		t.Fatalf("first Explore() error = %v", err)
	}
	resp, err := eng.Explore(ctx, req)
	if err != nil {
		t.Fatalf("second Explore() error = %v", err)
	}
	t.Logf("cache status on second call: %q", resp.Envelope.CacheStatus)
	if resp.Envelope.Freshness != freshness.Fresh {
		t.Fatalf("second Explore() freshness = %q, want %q", resp.Envelope.Freshness, freshness.Fresh)
	}
}

func TestRefresh_ForcesRebuild(t *testing.T) {
	eng, root := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.Explore(ctx, ExploreRequest{ProjectRoot: root, Profile: renderer.ProfileFull}); err != nil {
		t.Fatalf("Explore() error = %v", err)
	}
	resp, err := eng.Refresh(ctx, RefreshRequest{ProjectRoot: root})
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if resp.Envelope.Stats.FileCount == 0 {
		t.Fatal("Refresh() reported zero files")
	}
}

func TestDelta_AgainstStoredArtifact(t *testing.T) {
	eng, root := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.Explore(ctx, ExploreRequest{ProjectRoot: root, Profile: renderer.ProfileFull}); err != nil {
		t.Fatalf("Explore() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "extra.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp, err := eng.Delta(ctx, DeltaRequest{ProjectRoot: root})
	if err != nil {
		t.Fatalf("Delta() error = %v", err)
	}
	if resp.Context == nil || len(resp.Context.ChangeDigest.Added) == 0 {
		t.Fatalf("Delta() expected extra.go to show up as added, got %+v", resp.Context)
	}
}

func TestPlan_ReturnsABudgetedSelection(t *testing.T) {
	eng, root := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.Explore(ctx, ExploreRequest{ProjectRoot: root, Profile: renderer.ProfileFull}); err != nil {
		t.Fatalf("Explore() error = %v", err)
	}

	resp, err := eng.Plan(ctx, PlanRequest{ProjectRoot: root, Task: "fix a bug in main", TokenBudget: 2000})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if resp.Plan == nil {
		t.Fatal("Plan() returned a nil plan result")
	}
}
