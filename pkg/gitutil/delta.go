// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package gitutil

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
)

// emptyTreeSHA is git's well-known hash of the empty tree, used to
// diff a revision against "nothing" for an initial build.
const emptyTreeSHA = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// Delta is the added/modified/removed/renamed file set between two
// revisions.
type Delta struct {
	BaseSHA  string
	HeadSHA  string
	Added    []string
	Modified []string
	Removed  []string
	Renamed  map[string]string // old path -> new path
}

// All returns the sorted union of every path touched by the delta,
// including both sides of a rename.
func (d *Delta) All() []string {
	set := make(map[string]bool)
	for _, p := range d.Added {
		set[p] = true
	}
	for _, p := range d.Modified {
		set[p] = true
	}
	for _, p := range d.Removed {
		set[p] = true
	}
	for old, new := range d.Renamed {
		set[old] = true
		set[new] = true
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Detect runs `git diff --name-status -M base..head` (empty base
// means "against the empty tree", i.e. every file is added) and
// classifies the result.
func Detect(ctx context.Context, r Runner, baseRev, headRev string) (*Delta, error) {
	if headRev == "" {
		headRev = "HEAD"
	}
	resolvedHead, err := resolveRev(ctx, r, headRev)
	if err != nil {
		return nil, fmt.Errorf("gitutil: resolve head: %w", err)
	}

	resolvedBase := emptyTreeSHA
	if baseRev != "" {
		resolvedBase, err = resolveRev(ctx, r, baseRev)
		if err != nil {
			return nil, fmt.Errorf("gitutil: resolve base: %w", err)
		}
	}

	out, err := r.Run(ctx, "diff", "--name-status", "-M", resolvedBase, resolvedHead)
	if err != nil {
		return nil, fmt.Errorf("gitutil: diff: %w", err)
	}

	delta := &Delta{BaseSHA: resolvedBase, HeadSHA: resolvedHead, Renamed: make(map[string]string)}
	if err := parseNameStatus(out, delta); err != nil {
		return nil, err
	}
	sort.Strings(delta.Added)
	sort.Strings(delta.Modified)
	sort.Strings(delta.Removed)
	return delta, nil
}

func resolveRev(ctx context.Context, r Runner, rev string) (string, error) {
	out, err := r.Run(ctx, "rev-parse", rev)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func parseNameStatus(output string, delta *Delta) error {
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		status := parts[0]
		switch status[0] {
		case 'A':
			delta.Added = append(delta.Added, parts[1])
		case 'M':
			delta.Modified = append(delta.Modified, parts[1])
		case 'D':
			delta.Removed = append(delta.Removed, parts[1])
		case 'R':
			if len(parts) >= 3 {
				delta.Renamed[parts[1]] = parts[2]
			}
		case 'C':
			if len(parts) >= 3 {
				delta.Added = append(delta.Added, parts[2])
			}
		}
	}
	return scanner.Err()
}

// Churn computes a simple commit-frequency signal per path over the
// repository's full history, for the Planner's relevance ranker. The
// raw counts are intended to be log-normalized by the caller before
// use as a ranking feature.
func Churn(ctx context.Context, r Runner) (map[string]int, error) {
	out, err := r.Run(ctx, "log", "--all", "--name-only", "--pretty=format:")
	if err != nil {
		return nil, fmt.Errorf("gitutil: churn log: %w", err)
	}
	counts := make(map[string]int)
	scanner := bufio.NewScanner(bytes.NewBufferString(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		path := strings.TrimSpace(scanner.Text())
		if path == "" {
			continue
		}
		counts[path]++
	}
	return counts, scanner.Err()
}
