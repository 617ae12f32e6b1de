// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scanner walks a project tree, applies gitignore-aware and
// binary-content exclusion, and computes a fast non-cryptographic
// content hash for every eligible file.
package scanner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/cespare/xxhash/v2"
)

// defaultMaxFileSize bounds ingestion to 1 MiB: larger files are
// skipped rather than hashed and parsed.
const defaultMaxFileSize = 1 << 20

// defaultExcludeDirs are always skipped regardless of .gitignore
// contents.
var defaultExcludeDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".rtk":         true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	".venv":        true,
	"__pycache__":  true,
}

// Options configures a Walk.
type Options struct {
	// MaxFileSize is the largest file, in bytes, eligible for hashing.
	// Zero means use defaultMaxFileSize.
	MaxFileSize int64
	// Workers bounds hashing parallelism. Zero means GOMAXPROCS.
	Workers int
	// ExtraExcludeGlobs are additional glob patterns excluded on top of
	// .gitignore and defaultExcludeDirs.
	ExtraExcludeGlobs []string
}

// Entry is one eligible file discovered under the project root.
type Entry struct {
	Path        string // project-relative, slash-separated
	AbsPath     string
	SizeBytes   int64
	MtimeNanos  int64
	ContentHash uint64
}

// SkipReason classifies why a candidate path was excluded, for
// diagnostics.
type SkipReason string

const (
	SkipIgnored   SkipReason = "ignored"
	SkipBinary    SkipReason = "binary"
	SkipTooLarge  SkipReason = "too_large"
	SkipSymlink   SkipReason = "symlink"
	SkipUnreadable SkipReason = "unreadable"
)

// Result is the outcome of a Walk.
type Result struct {
	Files     []Entry
	SkipCounts map[SkipReason]int
}

// Walk traverses root, applying gitignore-aware filtering, and returns
// the eligible file set with content hashes computed. It never
// returns a partial failure for a single unreadable file: such files
// are counted in SkipCounts and logged instead.
func Walk(ctx context.Context, root string, opts Options, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = defaultMaxFileSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	matcher, err := buildMatcher(root, opts.ExtraExcludeGlobs)
	if err != nil {
		return nil, fmt.Errorf("scanner: build ignore matcher: %w", err)
	}

	type candidate struct {
		relPath string
		absPath string
		info    fs.FileInfo
	}
	var candidates []candidate
	skips := make(map[SkipReason]int)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			skips[SkipUnreadable]++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		relSlash := filepath.ToSlash(rel)

		if d.IsDir() {
			base := filepath.Base(path)
			if defaultExcludeDirs[base] || matcher.MatchesPath(relSlash+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if matcher.MatchesPath(relSlash) {
			skips[SkipIgnored]++
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			skips[SkipUnreadable]++
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			skips[SkipSymlink]++
			return nil
		}
		if info.Size() > maxSize {
			skips[SkipTooLarge]++
			return nil
		}

		candidates = append(candidates, candidate{relPath: relSlash, absPath: path, info: info})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("scanner: walk %s: %w", root, walkErr)
	}

	entries := make([]Entry, len(candidates))
	binarySkips := make([]bool, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			isBin, hash, err := hashFile(c.absPath)
			if err != nil {
				logger.Warn("scanner.hash.failed", "path", c.relPath, "err", err)
				binarySkips[i] = true
				return nil
			}
			if isBin {
				binarySkips[i] = true
				return nil
			}
			entries[i] = Entry{
				Path:        c.relPath,
				AbsPath:     c.absPath,
				SizeBytes:   c.info.Size(),
				MtimeNanos:  c.info.ModTime().UnixNano(),
				ContentHash: hash,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scanner: hash files: %w", err)
	}

	out := make([]Entry, 0, len(entries))
	for i, e := range entries {
		if binarySkips[i] {
			skips[SkipBinary]++
			continue
		}
		if e.Path == "" {
			skips[SkipUnreadable]++
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	return &Result{Files: out, SkipCounts: skips}, nil
}

// sniffSize bounds the binary-detection read window.
const sniffSize = 8192

// hashFile reports whether the file looks binary (NUL byte in the
// first 8 KiB) and, if not, its streamed 64-bit non-cryptographic
// content hash.
func hashFile(path string) (isBinary bool, hash uint64, err error) {
	f, err := os.Open(path) //nolint:gosec // G304: path from a bounded repository walk
	if err != nil {
		return false, 0, err
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64*1024)
	sniff, peekErr := br.Peek(sniffSize)
	if peekErr != nil && peekErr != io.EOF && peekErr != bufio.ErrBufferFull {
		return false, 0, peekErr
	}
	if bytes.IndexByte(sniff, 0x00) >= 0 {
		return true, 0, nil
	}

	h := xxhash.New()
	if _, err := io.Copy(h, br); err != nil {
		return false, 0, err
	}
	return false, h.Sum64(), nil
}

// buildMatcher compiles .gitignore (root + nested), .git/info/exclude,
// and any extra globs into one matcher. defaultExcludeDirs are not
// part of it; Walk checks them separately.
func buildMatcher(root string, extra []string) (*gitignore.GitIgnore, error) {
	var lines []string
	lines = append(lines, extra...)

	addFile := func(path string) {
		data, err := os.ReadFile(path) //nolint:gosec // G304: fixed well-known repo-relative names
		if err != nil {
			return
		}
		for _, l := range splitLines(data) {
			if l != "" && !commentOrBlank(l) {
				lines = append(lines, l)
			}
		}
	}

	addFile(filepath.Join(root, ".gitignore"))
	addFile(filepath.Join(root, ".git", "info", "exclude"))

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if filepath.Base(path) == ".gitignore" && filepath.Dir(path) != root {
			rel, relErr := filepath.Rel(root, filepath.Dir(path))
			if relErr != nil {
				return nil
			}
			data, readErr := os.ReadFile(path) //nolint:gosec // G304: matched by a fixed basename during our own walk
			if readErr != nil {
				return nil
			}
			prefix := filepath.ToSlash(rel)
			for _, l := range splitLines(data) {
				if l != "" && !commentOrBlank(l) {
					lines = append(lines, prefix+"/"+l)
				}
			}
		}
		return nil
	})

	return gitignore.CompileIgnoreLines(lines...)
}

func commentOrBlank(line string) bool {
	return len(line) > 0 && line[0] == '#'
}

func splitLines(data []byte) []string {
	var lines []string
	for _, raw := range bytes.Split(data, []byte("\n")) {
		lines = append(lines, string(bytes.TrimRight(raw, "\r")))
	}
	return lines
}
