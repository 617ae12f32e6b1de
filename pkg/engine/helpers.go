// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rtk-project/rtk/pkg/artifact"
	"github.com/rtk-project/rtk/pkg/config"
	"github.com/rtk-project/rtk/pkg/freshness"
	"github.com/rtk-project/rtk/pkg/indexer"
	"github.com/rtk-project/rtk/pkg/renderer"
	"github.com/rtk-project/rtk/pkg/scanner"
)

// renderEnvelope builds the common envelope shape for an operation
// that just finished a full rebuild (refresh): freshness is always
// fresh immediately after a successful rebuild.
func renderEnvelope(command, root string, event artifact.CacheEventKind, art *artifact.ProjectArtifact, stats indexer.Stats) renderer.Envelope {
	return renderer.Envelope{
		Command:         command,
		ProjectRoot:     root,
		ArtifactVersion: artifact.Version,
		CacheStatus:     event,
		Freshness:       freshness.Fresh,
		Stats: renderer.Stats{
			FileCount:       len(art.Files),
			ReusedEntries:   stats.FilesReused,
			RehashedEntries: stats.FilesChanged,
		},
		BuiltAt: art.UpdatedAt,
	}
}

func canonicalRoot(root string) (string, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("engine: resolve project root %q: %w", root, err)
	}
	return abs, nil
}

// featureMask turns the config's AND-mask flags into the renderer's
// FeatureMask: a false config flag disables a layer regardless of
// query-type routing; a true entry is simply omitted since the
// renderer already defaults every layer on.
func featureMask(cfg *config.Config) renderer.FeatureMask {
	mask := renderer.FeatureMask{}
	add := func(l renderer.Layer, enabled bool) {
		if !enabled {
			mask[l] = false
		}
	}
	add(renderer.LayerProjectMap, cfg.Features.LayerProjectMap)
	add(renderer.LayerModuleIndex, cfg.Features.LayerModuleIndex)
	add(renderer.LayerTypeGraph, cfg.Features.LayerTypeGraph)
	add(renderer.LayerAPISurface, cfg.Features.LayerAPISurface)
	add(renderer.LayerDepManifest, cfg.Features.LayerDepManifest)
	add(renderer.LayerTestMap, cfg.Features.LayerTestMap)
	add(renderer.LayerChangeDigest, cfg.Features.LayerChangeDigest)
	return mask
}

func sumBytes(entries []scanner.Entry) int64 {
	var total int64
	for _, e := range entries {
		total += e.SizeBytes
	}
	return total
}

// looksLikeTestTask is a cheap heuristic for whether a plan task is
// itself about test files, which lifts the budget assembler's
// diversity cap on test files.
func looksLikeTestTask(task string) bool {
	lower := strings.ToLower(task)
	return strings.Contains(lower, "test") || strings.Contains(lower, "spec")
}

// diffDigest computes a live (added, modified, removed) triple
// between the previously stored artifact and the current scan,
// mirroring the indexer's own FS-mode digest logic but without
// running extraction: the scanner's content hash is enough to decide
// added/modified/removed, and a delta response is never cached.
func diffDigest(prior *artifact.ProjectArtifact, current []scanner.Entry) artifact.ChangeDigest {
	var priorIndex map[string]*artifact.FileArtifact
	if prior != nil {
		priorIndex = prior.FileIndex()
	}

	currentByPath := make(map[string]scanner.Entry, len(current))
	for _, e := range current {
		currentByPath[e.Path] = e
	}

	var digest artifact.ChangeDigest
	for path, entry := range currentByPath {
		fa, existed := priorIndex[path]
		hash := fmt.Sprintf("%016x", entry.ContentHash)
		switch {
		case !existed:
			digest.Added = append(digest.Added, artifact.ChangeEntry{Path: path, Kind: artifact.ChangeAdded, Hash: hash})
		case fa.ContentHash != entry.ContentHash:
			digest.Modified = append(digest.Modified, artifact.ChangeEntry{Path: path, Kind: artifact.ChangeModified, Hash: hash})
		}
	}
	for path := range priorIndex {
		if _, stillPresent := currentByPath[path]; !stillPresent {
			digest.Removed = append(digest.Removed, artifact.ChangeEntry{Path: path, Kind: artifact.ChangeRemoved})
		}
	}

	sort.Slice(digest.Added, func(i, j int) bool { return digest.Added[i].Path < digest.Added[j].Path })
	sort.Slice(digest.Modified, func(i, j int) bool { return digest.Modified[i].Path < digest.Modified[j].Path })
	sort.Slice(digest.Removed, func(i, j int) bool { return digest.Removed[i].Path < digest.Removed[j].Path })
	return digest
}
