// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package indexer implements the incremental two-pass build and
// git-delta mode.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rtk-project/rtk/pkg/artifact"
	"github.com/rtk-project/rtk/pkg/extractor"
	"github.com/rtk-project/rtk/pkg/scanner"
)

// ReverseEdgeLookup resolves the reverse-import cascade: given a set of module-path candidates, it returns the
// from_path of every file whose stored import resolves to one of
// them. Bound to a project_id by the caller (typically
// store.Store.ReverseEdges).
type ReverseEdgeLookup func(ctx context.Context, targets []string) ([]string, error)

// Options configures one incremental build.
type Options struct {
	MaxFileSize   int64
	Workers       int
	ReverseLookup ReverseEdgeLookup // nil disables the cascade pass
	Limits        extractor.Limits
}

// Stats summarizes one build for logging/status reporting.
type Stats struct {
	FilesScanned int
	FilesReused  int
	FilesChanged int
	FilesFailed  int
}

// Result is the outcome of an incremental build.
type Result struct {
	Artifact *artifact.ProjectArtifact
	Edges    []artifact.ImportEdge
	Digest   artifact.ChangeDigest
	Stats    Stats
}

// Indexer builds a ProjectArtifact from a project root, reusing as
// much of a prior artifact as the two-pass detect/cascade algorithm
// allows.
type Indexer struct {
	router *extractor.Router
	logger *slog.Logger
}

// New constructs an Indexer.
func New(router *extractor.Router, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{router: router, logger: logger}
}

// BuildIncremental runs a two-pass build against rootPath, reusing
// FileArtifact entries from prior where
// metadata is unchanged and no cascade invalidation applies.
func (ix *Indexer) BuildIncremental(ctx context.Context, rootPath string, prior *artifact.ProjectArtifact, opts Options) (*Result, error) {
	limits := opts.Limits
	if limits.MaxSymbolsPerFile == 0 {
		limits = extractor.DefaultLimits
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	scanResult, err := scanner.Walk(ctx, rootPath, scanner.Options{MaxFileSize: opts.MaxFileSize, Workers: workers}, ix.logger)
	if err != nil {
		return nil, fmt.Errorf("indexer: scan: %w", err)
	}

	var priorIndex map[string]*artifact.FileArtifact
	if prior != nil {
		priorIndex = prior.FileIndex()
	}

	// Pass 1: detect. reusable[path] stays true until pass 2 or the
	// analyze step proves otherwise.
	reusable := make(map[string]bool, len(scanResult.Files))
	scannedPaths := make(map[string]scanner.Entry, len(scanResult.Files))
	for _, entry := range scanResult.Files {
		scannedPaths[entry.Path] = entry
		prev, ok := priorIndex[entry.Path]
		reusable[entry.Path] = ok && prev.SizeBytes == entry.SizeBytes && prev.MtimeNanos == entry.MtimeNanos
	}

	// Pass 2: cascade. Any currently-reusable file whose import
	// target resolves to a changed file is demoted to changed,
	// regardless of its own metadata.
	if opts.ReverseLookup != nil {
		changedPaths := make([]string, 0)
		for path, ok := range reusable {
			if !ok {
				changedPaths = append(changedPaths, path)
			}
		}
		if len(changedPaths) > 0 {
			targets := make(map[string]bool)
			for _, p := range changedPaths {
				for _, candidate := range moduleCandidates(p) {
					targets[candidate] = true
				}
			}
			targetList := make([]string, 0, len(targets))
			for t := range targets {
				targetList = append(targetList, t)
			}
			affected, lookupErr := opts.ReverseLookup(ctx, targetList)
			if lookupErr != nil {
				ix.logger.Warn("indexer.cascade.lookup_failed", "err", lookupErr)
			} else {
				for _, path := range affected {
					if _, known := scannedPaths[path]; known {
						reusable[path] = false
					}
				}
			}
		}
	}

	changedList := make([]scanner.Entry, 0)
	reusedList := make([]string, 0)
	for _, entry := range scanResult.Files {
		if reusable[entry.Path] {
			reusedList = append(reusedList, entry.Path)
		} else {
			changedList = append(changedList, entry)
		}
	}

	analyzed, failed, err := ix.analyze(ctx, rootPath, changedList, priorIndex, limits, workers)
	if err != nil {
		return nil, err
	}

	files := make([]artifact.FileArtifact, 0, len(scanResult.Files))
	var edges []artifact.ImportEdge
	for _, path := range reusedList {
		fa := *priorIndex[path]
		files = append(files, fa)
		edges = append(edges, edgesForFile(fa)...)
	}
	for _, fa := range analyzed {
		files = append(files, fa)
		edges = append(edges, edgesForFile(fa)...)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	digest := computeDigest(priorIndex, scannedPaths, analyzed)

	var manifest artifact.DepManifest
	manifest = mergeManifests(rootPath, scanResult.Files, ix.logger)

	result := &artifact.ProjectArtifact{
		ArtifactVersion: artifact.Version,
		UpdatedAt:       time.Now(),
		Files:           files,
		DepManifest:     manifest,
		EntryPointHints: entryPointHints(files),
	}

	return &Result{
		Artifact: result,
		Edges:    edges,
		Digest:   digest,
		Stats: Stats{
			FilesScanned: len(scanResult.Files),
			FilesReused:  len(reusedList),
			FilesChanged: len(analyzed),
			FilesFailed:  failed,
		},
	}, nil
}

// analyze runs the Extractor over changed files, parallelized across
// cores. A file whose recomputed content hash matches the
// prior stored hash short-circuits to a metadata-only update instead
// of a full re-extract.
func (ix *Indexer) analyze(ctx context.Context, rootPath string, changed []scanner.Entry, priorIndex map[string]*artifact.FileArtifact, limits extractor.Limits, workers int) ([]artifact.FileArtifact, int, error) {
	out := make([]artifact.FileArtifact, len(changed))
	ok := make([]bool, len(changed))
	var failedCount int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, entry := range changed {
		i, entry := i, entry
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			if prev, exists := priorIndex[entry.Path]; exists && prev.ContentHash == entry.ContentHash {
				fa := *prev
				fa.SizeBytes = entry.SizeBytes
				fa.MtimeNanos = entry.MtimeNanos
				out[i] = fa
				ok[i] = true
				return nil
			}

			content, readErr := os.ReadFile(entry.AbsPath) //nolint:gosec // G304: path produced by our own bounded scan
			if readErr != nil {
				ix.logger.Warn("indexer.analyze.read_failed", "path", entry.Path, "err", readErr)
				failedCount++
				return nil
			}

			extracted := ix.router.Extract(extractor.FileInput{Path: entry.Path, Content: content}, limits)
			out[i] = artifact.FileArtifact{
				Path:          entry.Path,
				Language:      extracted.Language,
				ContentHash:   entry.ContentHash,
				SizeBytes:     entry.SizeBytes,
				MtimeNanos:    entry.MtimeNanos,
				LineCount:     countLines(content),
				PubSymbols:    extracted.Symbols,
				Imports:       extracted.Imports,
				TypeRelations: extracted.TypeRelations,
			}
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("indexer: analyze: %w", err)
	}

	result := make([]artifact.FileArtifact, 0, len(changed))
	for i, included := range ok {
		if included {
			result = append(result, out[i])
		}
	}
	return result, int(failedCount), nil
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := 1
	for _, b := range content {
		if b == '\n' {
			n++
		}
	}
	return n
}

func edgesForFile(fa artifact.FileArtifact) []artifact.ImportEdge {
	edges := make([]artifact.ImportEdge, 0, len(fa.Imports))
	for _, imp := range fa.Imports {
		edges = append(edges, artifact.ImportEdge{FromPath: fa.Path, ToModule: imp, EdgeKind: "import"})
	}
	return edges
}

// moduleCandidates expands a changed file's path into the variants
// the cascade lookup should match against: basename, relative path,
// dotted, and colon-separated forms.
func moduleCandidates(path string) []string {
	noExt := strings.TrimSuffix(path, filepath.Ext(path))
	base := filepath.Base(noExt)
	dotted := strings.ReplaceAll(noExt, "/", ".")
	coloned := strings.ReplaceAll(noExt, "/", "::")
	return []string{path, noExt, base, dotted, coloned}
}

func computeDigest(priorIndex map[string]*artifact.FileArtifact, scanned map[string]scanner.Entry, analyzed []artifact.FileArtifact) artifact.ChangeDigest {
	var digest artifact.ChangeDigest
	analyzedByPath := make(map[string]artifact.FileArtifact, len(analyzed))
	for _, fa := range analyzed {
		analyzedByPath[fa.Path] = fa
	}

	for path := range scanned {
		_, existed := priorIndex[path]
		fa, wasAnalyzed := analyzedByPath[path]
		if !wasAnalyzed {
			continue // reused unchanged, not part of the digest
		}
		if !existed {
			digest.Added = append(digest.Added, artifact.ChangeEntry{Path: path, Kind: artifact.ChangeAdded, Hash: fmt.Sprintf("%016x", fa.ContentHash)})
		} else {
			digest.Modified = append(digest.Modified, artifact.ChangeEntry{Path: path, Kind: artifact.ChangeModified, Hash: fmt.Sprintf("%016x", fa.ContentHash)})
		}
	}
	for path := range priorIndex {
		if _, stillPresent := scanned[path]; !stillPresent {
			digest.Removed = append(digest.Removed, artifact.ChangeEntry{Path: path, Kind: artifact.ChangeRemoved})
		}
	}

	sort.Slice(digest.Added, func(i, j int) bool { return digest.Added[i].Path < digest.Added[j].Path })
	sort.Slice(digest.Modified, func(i, j int) bool { return digest.Modified[i].Path < digest.Modified[j].Path })
	sort.Slice(digest.Removed, func(i, j int) bool { return digest.Removed[i].Path < digest.Removed[j].Path })
	return digest
}

// entryPointNames are conventional per-language process-entry
// filenames recognized without parsing content.
var entryPointNames = map[string]bool{
	"main.go":     true,
	"main.py":     true,
	"__main__.py": true,
	"index.js":    true,
	"index.ts":    true,
	"main.rs":     true,
	"Main.java":   true,
	"app.py":      true,
	"server.go":   true,
}

// entryPointHints scans the final file list for conventional entry
// filenames, sorted for stable output.
func entryPointHints(files []artifact.FileArtifact) []string {
	var hints []string
	for _, fa := range files {
		if entryPointNames[filepath.Base(fa.Path)] {
			hints = append(hints, fa.Path)
		}
	}
	sort.Strings(hints)
	return hints
}

func mergeManifests(rootPath string, files []scanner.Entry, logger *slog.Logger) artifact.DepManifest {
	var merged artifact.DepManifest
	for _, entry := range files {
		if !extractor.IsManifestFile(entry.Path) {
			continue
		}
		content, err := os.ReadFile(entry.AbsPath) //nolint:gosec // G304: path from our own bounded scan
		if err != nil {
			logger.Warn("indexer.manifest.read_failed", "path", entry.Path, "err", err)
			continue
		}
		m := extractor.ParseManifest(entry.Path, content, logger)
		merged.Runtime = append(merged.Runtime, m.Runtime...)
		merged.Dev = append(merged.Dev, m.Dev...)
		merged.Build = append(merged.Build, m.Build...)
	}
	return merged
}
