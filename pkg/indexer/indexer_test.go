// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rtk-project/rtk/pkg/artifact"
	"github.com/rtk-project/rtk/pkg/extractor"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
}

func newTestIndexer() *Indexer {
	router := extractor.NewRouter(nil, extractor.NewRegexExtractor(), nil)
	return New(router, nil)
}

func TestBuildIncrementalFirstRunHasNoPriorAndMarksEverythingAdded(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "package main\n\nfunc Run() {}\n")

	res, err := newTestIndexer().BuildIncremental(context.Background(), root, nil, Options{})
	require.NoError(t, err)
	require.Len(t, res.Artifact.Files, 1)
	require.Equal(t, 0, res.Stats.FilesReused)
	require.Equal(t, 1, res.Stats.FilesChanged)
	require.Len(t, res.Digest.Added, 1)
}

func TestBuildIncrementalReusesUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "package main\n\nfunc Run() {}\n")

	ix := newTestIndexer()
	first, err := ix.BuildIncremental(context.Background(), root, nil, Options{})
	require.NoError(t, err)

	second, err := ix.BuildIncremental(context.Background(), root, first.Artifact, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, second.Stats.FilesReused)
	require.Equal(t, 0, second.Stats.FilesChanged)
	require.Empty(t, second.Digest.Added)
	require.Empty(t, second.Digest.Modified)
}

func TestBuildIncrementalDetectsModifiedContent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "main.go")
	writeFile(t, path, "package main\n\nfunc Run() {}\n")

	ix := newTestIndexer()
	first, err := ix.BuildIncremental(context.Background(), root, nil, Options{})
	require.NoError(t, err)

	// Force a distinct mtime so the metadata-diff pass flags it changed.
	osFileTimeBump(t, path)
	writeFile(t, path, "package main\n\nfunc Run() {}\nfunc New() {}\n")

	second, err := ix.BuildIncremental(context.Background(), root, first.Artifact, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, second.Stats.FilesChanged)
	require.Len(t, second.Digest.Modified, 1)
}

func TestBuildIncrementalDetectsRemovedFiles(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doomed.go")
	writeFile(t, path, "package main\n")

	ix := newTestIndexer()
	first, err := ix.BuildIncremental(context.Background(), root, nil, Options{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	second, err := ix.BuildIncremental(context.Background(), root, first.Artifact, Options{})
	require.NoError(t, err)
	require.Empty(t, second.Artifact.Files)
	require.Len(t, second.Digest.Removed, 1)
}

func TestBuildIncrementalAppliesCascadeInvalidation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "consumer.go"), "package main\n\nimport \"widget\"\n\nfunc Run() { widget.New() }\n")
	writeFile(t, filepath.Join(root, "widget.go"), "package main\n\nfunc New() {}\n")

	ix := newTestIndexer()
	first, err := ix.BuildIncremental(context.Background(), root, nil, Options{})
	require.NoError(t, err)

	lookup := func(_ context.Context, targets []string) ([]string, error) {
		for _, target := range targets {
			if target == "widget" {
				return []string{"consumer.go"}, nil
			}
		}
		return nil, nil
	}

	osFileTimeBump(t, filepath.Join(root, "widget.go"))
	writeFile(t, filepath.Join(root, "widget.go"), "package main\n\nfunc New() { /* changed */ }\n")

	second, err := ix.BuildIncremental(context.Background(), root, first.Artifact, Options{ReverseLookup: lookup})
	require.NoError(t, err)
	require.Equal(t, 2, second.Stats.FilesChanged)
}

func TestModuleCandidatesExpandsVariants(t *testing.T) {
	candidates := moduleCandidates("pkg/widget/widget.go")
	require.Contains(t, candidates, "pkg/widget/widget")
	require.Contains(t, candidates, "widget")
	require.Contains(t, candidates, "pkg.widget.widget")
	require.Contains(t, candidates, "pkg::widget::widget")
}

func TestEdgesForFileBuildsOneEdgePerImport(t *testing.T) {
	edges := edgesForFile(artifact.FileArtifact{Path: "a.go", Imports: []string{"fmt", "context"}})
	require.Len(t, edges, 2)
	require.Equal(t, "a.go", edges[0].FromPath)
}

func TestEntryPointHintsMatchesConventionalNames(t *testing.T) {
	hints := entryPointHints([]artifact.FileArtifact{
		{Path: "pkg/util/helper.go"},
		{Path: "cmd/rtk/main.go"},
		{Path: "scripts/main.py"},
	})
	require.Equal(t, []string{"cmd/rtk/main.go", "scripts/main.py"}, hints)
}

// osFileTimeBump nudges path's mtime forward by touching it, ensuring
// the metadata-diff pass in the next build sees a real (size,mtime)
// difference even on fast filesystems with coarse mtime resolution.
func osFileTimeBump(t *testing.T, path string) string {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	newTime := info.ModTime().Add(time.Second)
	require.NoError(t, os.Chtimes(path, newTime, newTime))
	return path
}
